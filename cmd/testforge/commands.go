// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/testforge/pkg/logging"
	"github.com/AleutianAI/testforge/services/llm"
	"github.com/AleutianAI/testforge/services/testforge/config"
)

var (
	cfg        config.Config
	configPath string
	logLevel   string
	logDir     string
	logger     *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "testforge",
		Short: "Keeps auto-generated .NET unit tests in sync with PR source changes",
		Long: `testforge resolves the source changes of a pull request, asks an
LLM oracle to create, update or delete the matching xUnit tests,
repairs the tree until it builds, runs the suite, and publishes the
result back to the pull request.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to testforge.yaml (defaults apply when omitted)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "also write JSON logs into this directory")
}

// setup loads configuration and installs the global logger. Flags win
// over the file, the file wins over defaults.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logDir != "" {
		cfg.Logging.Dir = logDir
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger = logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		LogDir: cfg.Logging.Dir,
	})
	logger.SetGlobal()
	return nil
}

// buildOracle constructs the configured generation backend.
func buildOracle() (llm.LLMClient, error) {
	switch cfg.Oracle.Backend {
	case "openai":
		return llm.NewOpenAIClient(os.Getenv("OPENAI_API_KEY"), cfg.Oracle.Model)
	default:
		return llm.NewOllamaClient(cfg.Oracle.BaseURL, cfg.Oracle.Model, cfg.Oracle.RequestsPerMinute)
	}
}

// verifyOracle fails fast when the oracle is unreachable or the model
// is absent. A run that cannot generate anything should not clone.
func verifyOracle(cmd *cobra.Command, oracle llm.LLMClient) error {
	lister, ok := oracle.(llm.ModelLister)
	if !ok {
		return nil
	}
	models, err := lister.ListModels(cmd.Context())
	if err != nil {
		return fmt.Errorf("oracle unreachable: %w", err)
	}
	if ollama, ok := oracle.(*llm.OllamaClient); ok {
		present, err := ollama.HasModel(cmd.Context(), cfg.Oracle.Model)
		if err != nil {
			return err
		}
		if !present {
			return fmt.Errorf("model %q not available (found %d models). Please run: 'ollama pull %s'",
				cfg.Oracle.Model, len(models), cfg.Oracle.Model)
		}
	}
	return nil
}
