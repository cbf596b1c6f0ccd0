// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/testforge/services/llm"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the oracle backend is reachable and the model is available",
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	oracle, err := buildOracle()
	if err != nil {
		return err
	}

	lister, ok := oracle.(llm.ModelLister)
	if !ok {
		cmd.Printf("backend %s: no model listing support, skipping probe\n", cfg.Oracle.Backend)
		return nil
	}
	models, err := lister.ListModels(cmd.Context())
	if err != nil {
		return fmt.Errorf("oracle unreachable at %s: %w", cfg.Oracle.BaseURL, err)
	}

	cmd.Printf("backend %s reachable, %d model(s):\n", cfg.Oracle.Backend, len(models))
	for _, m := range models {
		marker := " "
		if m == cfg.Oracle.Model {
			marker = "*"
		}
		cmd.Printf("  %s %s\n", marker, m)
	}

	if err := verifyOracle(cmd, oracle); err != nil {
		return err
	}
	cmd.Printf("model %s ready\n", cfg.Oracle.Model)
	return nil
}
