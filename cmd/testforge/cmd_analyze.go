// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/testforge/services/testforge/gitops"
	"github.com/AleutianAI/testforge/services/testforge/resolve"
)

var (
	analyzeRepo   string
	analyzeTarget string
	analyzeJSON   bool

	analyzeCmd = &cobra.Command{
		Use:   "analyze",
		Short: "Resolve the current branch's changes against a target without generating anything",
		RunE:  runAnalyze,
	}
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRepo, "repo", ".", "path to the checkout")
	analyzeCmd.Flags().StringVar(&analyzeTarget, "target", "main", "target branch to diff against")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit the change set as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	root, err := filepath.Abs(analyzeRepo)
	if err != nil {
		return err
	}

	git, err := gitops.NewClient(root, gitTimeout)
	if err != nil {
		return err
	}
	changes, err := git.ChangedFiles(ctx, analyzeTarget)
	if err != nil {
		return err
	}
	rawDiff, err := git.UnifiedDiff(ctx, analyzeTarget)
	if err != nil {
		return err
	}

	set, err := resolve.NewResolver(nil).Resolve(ctx, root, changes, rawDiff)
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(set)
	}

	cmd.Printf("changes against origin/%s:\n", analyzeTarget)
	for _, rec := range set.Records {
		exists := "new"
		if rec.TestExists {
			exists = "exists"
		}
		cmd.Printf("  %-8s %s -> %s (%s)\n", rec.Kind, rec.Path, rec.TestPath, exists)
	}
	for _, u := range set.Unmapped {
		cmd.Printf("  unmapped %s: %s\n", u.Path, u.Reason)
	}
	for _, c := range set.Skipped {
		cmd.Printf("  skipped  %s\n", c.Path)
	}
	for _, c := range set.TestChanges {
		cmd.Printf("  test     %s\n", c.Path)
	}
	cmd.Printf("%d testable, %d unmapped, %d skipped, %d test, %d other\n",
		len(set.Records), len(set.Unmapped), len(set.Skipped), len(set.TestChanges), len(set.Other))
	return nil
}
