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

	"github.com/AleutianAI/testforge/services/testforge/index"
)

var (
	indexJSON bool

	indexCmd = &cobra.Command{
		Use:   "index [path]",
		Short: "Build the symbol index for a tree and print its statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIndex,
	}
)

func init() {
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "emit full index entries as JSON")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	idx, err := index.NewBuilder(nil).Build(cmd.Context(), root)
	if err != nil {
		return err
	}

	if indexJSON {
		entries := make([]*index.Entry, 0)
		for _, path := range idx.Paths() {
			if entry, ok := idx.Get(path); ok {
				entries = append(entries, entry)
			}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	stats := idx.Stats()
	cmd.Printf("indexed %s\n", root)
	cmd.Printf("  units: %d (failed: %d)\n", stats.Units, stats.FailedUnits)
	cmd.Printf("  types: %d\n", stats.Types)
	for _, path := range idx.Paths() {
		if entry, ok := idx.Get(path); ok && entry.Failed {
			cmd.Printf("  unparseable: %s (%s)\n", entry.Path, entry.Diagnostic)
		}
	}
	return nil
}
