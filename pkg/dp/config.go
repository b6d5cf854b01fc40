// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dp

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/oomdp/pkg/statehash"
)

// Operator names accepted by Config.Operator.
const (
	OperatorMax     = "max"
	OperatorSoftmax = "softmax"
)

// Config contains all planner settings that can be loaded from files/env.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after creation.
type Config struct {
	// Gamma is the discount factor.
	Gamma float64 `json:"gamma" yaml:"gamma" validate:"gt=0,lte=1"`

	// MaxDelta stops sweeps once no value changes by this much or more.
	MaxDelta float64 `json:"max_delta" yaml:"max_delta" validate:"gte=0"`

	// MaxIterations caps the number of sweeps per planning call.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" validate:"gte=1"`

	// InitialValue seeds every non-terminal state unless a custom
	// initializer is supplied with WithValueInitializer.
	InitialValue float64 `json:"initial_value" yaml:"initial_value"`

	// Operator selects the backup reducer for value iteration.
	Operator string `json:"operator" yaml:"operator" validate:"oneof=max softmax"`

	// SoftmaxBeta is the inverse temperature of the softmax operator.
	SoftmaxBeta float64 `json:"softmax_beta" yaml:"softmax_beta" validate:"gt=0"`

	// CacheTransitions keeps enumerated transitions of expanded states so
	// backups do not query the model again. Leave off when the model changes
	// between planning calls.
	CacheTransitions bool `json:"cache_transitions" yaml:"cache_transitions"`

	// Hashing selects state identity.
	Hashing statehash.Config `json:"hashing" yaml:"hashing"`

	// PolicyIteration contains policy iteration settings.
	PolicyIteration PolicyIterationConfig `json:"policy_iteration" yaml:"policy_iteration"`

	// Observability contains tracing settings.
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
}

// PolicyIterationConfig contains policy iteration settings.
type PolicyIterationConfig struct {
	MaxPolicyIterations int     `json:"max_policy_iterations" yaml:"max_policy_iterations" validate:"gte=1"`
	MaxDelta            float64 `json:"max_delta" yaml:"max_delta" validate:"gte=0"`
}

// ObservabilityConfig contains tracing settings.
type ObservabilityConfig struct {
	TracingEnabled bool `json:"tracing_enabled" yaml:"tracing_enabled"`
}

// DefaultConfig returns the default configuration.
//
// Outputs:
//   - Config: γ=0.99, maxDelta=1e-3, 1000 sweeps, max operator.
func DefaultConfig() Config {
	return Config{
		Gamma:         0.99,
		MaxDelta:      1e-3,
		MaxIterations: 1000,
		InitialValue:  0,
		Operator:      OperatorMax,
		SoftmaxBeta:   1,
		PolicyIteration: PolicyIterationConfig{
			MaxPolicyIterations: 100,
			MaxDelta:            1e-3,
		},
		Observability: ObservabilityConfig{
			TracingEnabled: true,
		},
	}
}

// LoadConfig loads configuration with priority: env > file > defaults.
//
// Inputs:
//   - configPath: Path to YAML/JSON config file (optional, can be empty).
//
// Outputs:
//   - Config: Merged configuration.
//   - error: Non-nil if the file exists but is invalid, or validation fails.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	loadConfigFromEnv(&config)

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		if jsonErr := json.Unmarshal(data, config); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadConfigFromEnv(config *Config) {
	if v := os.Getenv("OOMDP_GAMMA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Gamma = f
		}
	}
	if v := os.Getenv("OOMDP_MAX_DELTA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.MaxDelta = f
		}
	}
	if v := os.Getenv("OOMDP_MAX_ITERATIONS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.MaxIterations = i
		}
	}
	if v := os.Getenv("OOMDP_OPERATOR"); v != "" {
		config.Operator = strings.ToLower(v)
	}
	if v := os.Getenv("OOMDP_SOFTMAX_BETA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.SoftmaxBeta = f
		}
	}
	if v := os.Getenv("OOMDP_TRACING_ENABLED"); v != "" {
		config.Observability.TracingEnabled = v == "true" || v == "1"
	}
}

var configValidate = validator.New()

// Validate checks that the configuration is valid.
//
// Outputs:
//   - error: Wraps ErrInvalidConfig when any field is out of range.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// HashingFactory builds the configured state hashing factory.
func (c Config) HashingFactory() *statehash.Factory {
	return statehash.NewFactory(c.Hashing)
}

// BuildOperator builds the configured backup operator.
func (c Config) BuildOperator() Operator {
	if c.Operator == OperatorSoftmax {
		return SoftmaxOperator{Beta: c.SoftmaxBeta}
	}
	return MaxOperator{}
}
