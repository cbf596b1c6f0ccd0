// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration lets YAML carry "10m" style values for time.Duration fields.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	// Oracle selects and tunes the model backend.
	Oracle OracleConfig `yaml:"oracle"`

	// Workflow bounds a single run.
	Workflow WorkflowConfig `yaml:"workflow"`

	// DevOps points at the Azure DevOps project hosting the PRs.
	DevOps DevOpsConfig `yaml:"devops"`

	// Logging: level and optional log directory.
	Logging LoggingConfig `yaml:"logging"`
}

type OracleConfig struct {
	// Backend can be "ollama" or "openai".
	Backend     string   `yaml:"backend" validate:"oneof=ollama openai"`
	BaseURL     string   `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model       string   `yaml:"model" validate:"required"`
	Timeout     Duration `yaml:"timeout" validate:"gt=0"`
	Temperature float32  `yaml:"temperature" validate:"gte=0,lte=2"`

	// RequestsPerMinute throttles oracle calls; 0 means unlimited.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
}

type WorkflowConfig struct {
	// WorkDir holds per-run checkouts.
	WorkDir string `yaml:"work_dir" validate:"required"`

	// MaxFixIterations bounds the build-fix loop.
	MaxFixIterations int `yaml:"max_fix_iterations" validate:"gt=0,lte=50"`

	// ForceFreshClone removes an existing checkout before cloning.
	ForceFreshClone bool `yaml:"force_fresh_clone"`

	// MaxGenerateWorkers bounds concurrent oracle calls.
	MaxGenerateWorkers int `yaml:"max_generate_workers" validate:"gt=0,lte=64"`
}

type DevOpsConfig struct {
	OrganizationURL string `yaml:"organization_url" validate:"omitempty,url"`
	Project         string `yaml:"project"`

	// PAT is never read from the file; it comes from AZURE_DEVOPS_PAT.
	PAT string `yaml:"-"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Oracle: OracleConfig{
			Backend:           "ollama",
			BaseURL:           "http://localhost:11434",
			Model:             "qwen2.5-coder:14b",
			Timeout:           Duration(10 * time.Minute),
			Temperature:       0.1,
			RequestsPerMinute: 0,
		},
		Workflow: WorkflowConfig{
			WorkDir:            ".testforge/work",
			MaxFixIterations:   10,
			MaxGenerateWorkers: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
