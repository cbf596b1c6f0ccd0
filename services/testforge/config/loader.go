// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates the testforge YAML configuration.
//
// Precedence is file under defaults: Load starts from DefaultConfig,
// overlays the YAML file when one exists, then pulls the PAT from the
// environment. Command flags override on top of this in cmd/testforge.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig indicates the merged configuration failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// PATEnvVar names the environment variable holding the Azure DevOps
// personal access token. It is deliberately not a YAML key.
const PATEnvVar = "AZURE_DEVOPS_PAT"

// Load reads the config at path, overlaying it on the defaults.
//
// # Description
//
// A missing file is not an error when path is empty; the defaults are
// used as-is. An explicit path that does not exist is an error, since
// the caller asked for that exact file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.DevOps.PAT = os.Getenv(PATEnvVar)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags on cfg.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("%w: field %s failed rule %q",
				ErrInvalidConfig, first.Namespace(), first.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// WriteDefault writes the default config to path for first runs.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
