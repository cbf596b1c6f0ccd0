// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func entryFixture() []*Entry {
	return []*Entry{
		{
			Path:      "src/Billing/Domain/Order.cs",
			Namespace: "Billing.Domain",
			TypeNames: []string{"Order", "OrderStatus"},
			References: []string{
				"PricingPolicy", "IAggregate",
			},
		},
		{
			Path:      "src/Billing/Domain/PricingPolicy.cs",
			Namespace: "Billing.Domain",
			TypeNames: []string{"PricingPolicy"},
		},
		{
			Path:       "src/Billing/Application/OrderService.cs",
			Namespace:  "Billing.Application",
			TypeNames:  []string{"OrderService"},
			References: []string{"Order", "PricingPolicy"},
		},
		{
			Path:       "src/Billing/Legacy/Broken.cs",
			Failed:     true,
			Diagnostic: "parse failed: invalid content",
		},
	}
}

func buildFixtureIndex(t *testing.T) *Index {
	t.Helper()
	idx := New()
	for _, e := range entryFixture() {
		if err := idx.Add(e); err != nil {
			t.Fatalf("Add(%s) = %v", e.Path, err)
		}
	}
	return idx
}

func TestIndexAddAndGet(t *testing.T) {
	idx := buildFixtureIndex(t)

	entry, ok := idx.Get("src/Billing/Domain/Order.cs")
	if !ok {
		t.Fatal("Get returned ok=false for indexed path")
	}
	if entry.Namespace != "Billing.Domain" {
		t.Errorf("Namespace = %q, want Billing.Domain", entry.Namespace)
	}
	if !entry.DeclaresType("OrderStatus") {
		t.Error("DeclaresType(OrderStatus) = false")
	}

	if _, ok := idx.Get("src/Nope.cs"); ok {
		t.Error("Get returned ok=true for unknown path")
	}
}

func TestIndexAddRejectsDuplicates(t *testing.T) {
	idx := buildFixtureIndex(t)

	err := idx.Add(&Entry{Path: "src/Billing/Domain/Order.cs"})
	if !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("Add duplicate = %v, want ErrDuplicateEntry", err)
	}

	err = idx.Add(&Entry{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Add empty path = %v, want ErrInvalidInput", err)
	}
}

func TestIndexDependents(t *testing.T) {
	idx := buildFixtureIndex(t)

	deps := idx.Dependents("src/Billing/Domain/PricingPolicy.cs")
	want := []string{
		"src/Billing/Application/OrderService.cs",
		"src/Billing/Domain/Order.cs",
	}
	if len(deps) != len(want) {
		t.Fatalf("Dependents returned %d entries, want %d", len(deps), len(want))
	}
	for i, d := range deps {
		if d.Path != want[i] {
			t.Errorf("Dependents[%d] = %q, want %q", i, d.Path, want[i])
		}
	}

	// A unit is never its own dependent.
	for _, d := range idx.Dependents("src/Billing/Domain/Order.cs") {
		if d.Path == "src/Billing/Domain/Order.cs" {
			t.Error("Dependents includes the unit itself")
		}
	}

	if got := idx.Dependents("src/Unknown.cs"); len(got) != 0 {
		t.Errorf("Dependents of unknown path = %d entries, want 0", len(got))
	}
}

func TestIndexDependencies(t *testing.T) {
	idx := buildFixtureIndex(t)

	deps := idx.Dependencies("src/Billing/Application/OrderService.cs")
	got := make(map[string]bool, len(deps))
	for _, d := range deps {
		got[d.Path] = true
	}
	if !got["src/Billing/Domain/Order.cs"] || !got["src/Billing/Domain/PricingPolicy.cs"] {
		t.Errorf("Dependencies = %v, want Order.cs and PricingPolicy.cs", got)
	}
}

func TestIndexStats(t *testing.T) {
	idx := buildFixtureIndex(t)

	stats := idx.Stats()
	if stats.Units != 4 {
		t.Errorf("Units = %d, want 4", stats.Units)
	}
	if stats.Types != 4 {
		t.Errorf("Types = %d, want 4", stats.Types)
	}
	if stats.FailedUnits != 1 {
		t.Errorf("FailedUnits = %d, want 1", stats.FailedUnits)
	}
}

func TestBuilderIndexesTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/Shop/Domain/Cart.cs", `
namespace Shop.Domain;

public class Cart
{
    public decimal Total(TaxPolicy policy) { return 0m; }
}
`)
	writeFile(t, root, "src/Shop/Domain/TaxPolicy.cs", `
namespace Shop.Domain;

public class TaxPolicy { }
`)
	// Build artifacts must be ignored even when they hold .cs files.
	writeFile(t, root, "src/Shop/obj/Debug/Cart.g.cs", `public class Generated { }`)

	idx, err := NewBuilder(nil).Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}

	stats := idx.Stats()
	if stats.Units != 2 {
		t.Fatalf("Units = %d, want 2 (obj/ must be skipped)", stats.Units)
	}

	entry, ok := idx.Get("src/Shop/Domain/Cart.cs")
	if !ok {
		t.Fatal("Cart.cs not indexed")
	}
	if !entry.DeclaresType("Cart") {
		t.Error("Cart.cs entry does not declare Cart")
	}
	if entry.Source == "" {
		t.Error("entry Source is empty, want raw unit content")
	}

	deps := idx.Dependents("src/Shop/Domain/TaxPolicy.cs")
	if len(deps) != 1 || deps[0].Path != "src/Shop/Domain/Cart.cs" {
		t.Errorf("Dependents(TaxPolicy.cs) = %v, want [Cart.cs]", pathsOf(deps))
	}
}

func TestBuilderDegradesOnUnreadableFile(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits do not apply when running as root")
	}
	root := t.TempDir()
	writeFile(t, root, "src/A.cs", `public class A { }`)
	bad := filepath.Join(root, "src", "B.cs")
	writeFile(t, root, "src/B.cs", `public class B { }`)
	if err := os.Chmod(bad, 0); err != nil {
		t.Fatal(err)
	}

	idx, err := NewBuilder(nil).Build(context.Background(), root)
	if err != nil {
		t.Fatalf("Build() = %v, want success with degraded entry", err)
	}

	entry, ok := idx.Get("src/B.cs")
	if !ok {
		t.Fatal("unreadable unit has no entry")
	}
	if !entry.Failed || entry.Diagnostic == "" {
		t.Errorf("entry = %+v, want Failed with diagnostic", entry)
	}
	if idx.Stats().FailedUnits != 1 {
		t.Errorf("FailedUnits = %d, want 1", idx.Stats().FailedUnits)
	}
}

func TestBuilderCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := t.TempDir()
	writeFile(t, root, "src/A.cs", `public class A { }`)

	if _, err := NewBuilder(nil).Build(ctx, root); !errors.Is(err, context.Canceled) {
		t.Errorf("Build() = %v, want context.Canceled", err)
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func pathsOf(entries []*Entry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths
}
