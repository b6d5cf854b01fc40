// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package differentiable

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/floats"

	"github.com/AleutianAI/oomdp/pkg/dp"
	"github.com/AleutianAI/oomdp/pkg/model"
	"github.com/AleutianAI/oomdp/pkg/policy"
	"github.com/AleutianAI/oomdp/pkg/state"
	"github.com/AleutianAI/oomdp/pkg/valuefunction"
)

var mlirlValidate = validator.New()

// MLIRLConfig configures maximum-likelihood inverse reinforcement learning.
type MLIRLConfig struct {
	// LearningRate is the gradient ascent step size.
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate" validate:"gt=0"`

	// MaxSteps caps the number of gradient steps.
	MaxSteps int `yaml:"max_steps" json:"max_steps" validate:"gte=1"`

	// Tolerance stops learning once the log likelihood changes by less.
	Tolerance float64 `yaml:"tolerance" json:"tolerance" validate:"gte=0"`

	// Beta is the inverse temperature of the demonstrator model.
	Beta float64 `yaml:"beta" json:"beta" validate:"gt=0"`
}

// DefaultMLIRLConfig returns the default learning settings.
func DefaultMLIRLConfig() MLIRLConfig {
	return MLIRLConfig{
		LearningRate: 0.1,
		MaxSteps:     100,
		Tolerance:    1e-4,
		Beta:         1,
	}
}

// MLIRLResult summarizes a learning run.
type MLIRLResult struct {
	RunID                string    `json:"run_id"`
	Steps                int       `json:"steps"`
	InitialLogLikelihood float64   `json:"initial_log_likelihood"`
	LogLikelihood        float64   `json:"log_likelihood"`
	Parameters           []float64 `json:"parameters"`
	Converged            bool      `json:"converged"`
}

// MLIRL fits the reward parameters of a VI so that a Boltzmann policy over
// its Q values maximizes the likelihood of demonstrated actions.
//
// Description:
//
//	The log likelihood of the demonstrations is
//
//	  L(θ) = Σ_(s,a) log π_θ(a|s),  π_θ(a|s) = softmax(β·Q_θ(s,·))_a
//
//	with gradient
//
//	  ∂L/∂θ = β Σ_(s,a) (∂Q(s,a)/∂θ - Σ_b π_θ(b|s) ∂Q(s,b)/∂θ)
//
//	Each step replans the VI under the current θ, evaluates L and its
//	gradient, and moves θ along the gradient.
//
// Thread Safety: Not safe for concurrent use.
type MLIRL struct {
	vi     *VI
	demos  []*policy.Episode
	cfg    MLIRLConfig
	logger *slog.Logger
}

// NewMLIRL creates a learner over the given demonstrations.
//
// Inputs:
//   - vi: Differentiable planner whose reward parameters are learned.
//   - demos: Demonstrations; only (state, action) pairs are used.
//   - cfg: Learning settings.
//
// Outputs:
//   - *MLIRL: The learner.
//   - error: ErrNoDemonstrations if no demonstration has a step,
//     ErrParameterMismatch if the reward's features do not fit θ, or a
//     wrapped dp.ErrInvalidConfig.
func NewMLIRL(vi *VI, demos []*policy.Episode, cfg MLIRLConfig) (*MLIRL, error) {
	if vi == nil {
		return nil, fmt.Errorf("%w: nil planner", dp.ErrInvalidConfig)
	}
	if err := mlirlValidate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", dp.ErrInvalidConfig, err)
	}
	steps := 0
	for _, d := range demos {
		if d == nil || d.Steps() == 0 {
			continue
		}
		if steps == 0 {
			if fc, ok := vi.RewardFunction().(featureChecker); ok {
				if _, err := fc.Features(d.States[0]); err != nil {
					return nil, err
				}
			}
		}
		steps += d.Steps()
	}
	if steps == 0 {
		return nil, ErrNoDemonstrations
	}
	return &MLIRL{
		vi:     vi,
		demos:  demos,
		cfg:    cfg,
		logger: vi.Logger().With(slog.String("learner", "mlirl")),
	}, nil
}

// featureChecker is implemented by rewards that can report a feature length
// mismatch up front, such as LinearStateRF.
type featureChecker interface {
	Features(s state.State) ([]float64, error)
}

// LogLikelihood replans under the current parameters and returns the
// demonstration log likelihood.
func (m *MLIRL) LogLikelihood(ctx context.Context) (float64, error) {
	if err := m.replan(ctx); err != nil {
		return 0, err
	}
	ll, _, err := m.evaluate(false)
	return ll, err
}

// Run performs gradient ascent until the log likelihood stops improving by
// more than the tolerance or MaxSteps is reached. The learned parameters
// are left installed in the reward function.
func (m *MLIRL) Run(ctx context.Context) (*MLIRLResult, error) {
	rf := m.vi.RewardFunction()
	res := &MLIRLResult{RunID: uuid.NewString()}

	ctx, span := m.vi.Tracer().Start(ctx, SpanMLIRL,
		attribute.String("dp.run_id", res.RunID),
		attribute.Int("dp.mlirl.parameters", rf.NumParameters()),
		attribute.Int("dp.mlirl.max_steps", m.cfg.MaxSteps),
		attribute.Float64("dp.mlirl.learning_rate", m.cfg.LearningRate),
	)
	logger := m.logger.With(slog.String("run_id", res.RunID))

	var err error
	defer func() {
		span.SetAttributes(
			attribute.Int("dp.mlirl.steps", res.Steps),
			attribute.Float64("dp.mlirl.log_likelihood", res.LogLikelihood),
			attribute.Bool("dp.mlirl.converged", res.Converged),
		)
		m.vi.Tracer().End(span, nil, err)
	}()

	if err = m.replan(ctx); err != nil {
		return nil, err
	}
	ll, grad, err := m.evaluate(true)
	if err != nil {
		return nil, err
	}
	res.InitialLogLikelihood = ll
	res.LogLikelihood = ll

	theta := rf.Parameters()
	for res.Steps < m.cfg.MaxSteps {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		floats.AddScaled(theta, m.cfg.LearningRate, grad)
		if err = rf.SetParameters(theta); err != nil {
			return nil, err
		}
		if err = m.replan(ctx); err != nil {
			return nil, err
		}
		var next float64
		next, grad, err = m.evaluate(true)
		if err != nil {
			return nil, err
		}
		res.Steps++
		change := math.Abs(next - res.LogLikelihood)
		res.LogLikelihood = next
		logger.Debug("mlirl step",
			slog.Int("step", res.Steps),
			slog.Float64("log_likelihood", next),
			slog.Float64("change", change))
		if change < m.cfg.Tolerance {
			res.Converged = true
			break
		}
	}

	res.Parameters = rf.Parameters()
	logger.Info("mlirl complete",
		slog.Int("steps", res.Steps),
		slog.Float64("initial_log_likelihood", res.InitialLogLikelihood),
		slog.Float64("log_likelihood", res.LogLikelihood),
		slog.Bool("converged", res.Converged))
	return res, nil
}

// replan makes sure every demonstrated state is in the table and sweeps
// under the current parameters.
func (m *MLIRL) replan(ctx context.Context) error {
	for _, d := range m.demos {
		if d == nil {
			continue
		}
		for t := 0; t < d.Steps(); t++ {
			if _, err := m.vi.PerformReachabilityFrom(ctx, d.States[t]); err != nil {
				return err
			}
		}
	}
	_, err := m.vi.RunPlanning(ctx)
	return err
}

// evaluate returns the log likelihood and, when withGrad is set, its
// gradient.
func (m *MLIRL) evaluate(withGrad bool) (float64, []float64, error) {
	beta := m.cfg.Beta
	var grad []float64
	if withGrad {
		grad = make([]float64, m.vi.RewardFunction().NumParameters())
	}

	ll := 0.0
	for _, d := range m.demos {
		if d == nil {
			continue
		}
		for t := 0; t < d.Steps(); t++ {
			s, a := d.States[t], d.Actions[t]
			qs, qGrads, err := m.vi.QsWithGradients(s)
			if err != nil {
				return 0, nil, err
			}
			k := actionIndex(qs, a)
			if k < 0 {
				return 0, nil, fmt.Errorf("demonstrated action %q not applicable at step %d: %w", a.Name(), t, policy.ErrNoActions)
			}

			logits := make([]float64, len(qs))
			floats.ScaleTo(logits, beta, valuefunction.Values(qs))
			lse := floats.LogSumExp(logits)
			ll += logits[k] - lse
			if !withGrad {
				continue
			}

			floats.AddScaled(grad, beta, qGrads[k])
			for j := range qs {
				floats.AddScaled(grad, -beta*math.Exp(logits[j]-lse), qGrads[j])
			}
		}
	}
	return ll, grad, nil
}

func actionIndex(qs []valuefunction.QValue, a model.Action) int {
	for i, q := range qs {
		if model.SameAction(q.A, a) {
			return i
		}
	}
	return -1
}
