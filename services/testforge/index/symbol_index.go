// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/testforge/services/testforge/ast"
)

// Entry is the structural summary of one source unit.
//
// One entry exists per unit path. An entry with Failed set carries no
// symbols; the Diagnostic field explains why.
type Entry struct {
	// Path is the unit path relative to the repository root.
	Path string `json:"path"`

	// Namespace is the unit's primary namespace, or "".
	Namespace string `json:"namespace,omitempty"`

	// TypeNames are the type declarations in the unit.
	TypeNames []string `json:"type_names,omitempty"`

	// MemberSignatures are the method/constructor/property headers.
	MemberSignatures []string `json:"member_signatures,omitempty"`

	// References are the external type names the unit mentions.
	References []string `json:"references,omitempty"`

	// Source is the raw unit content at index time. Kept so the
	// generation oracle can be given full context without re-reading
	// a tree that later iterations may have modified.
	Source string `json:"-"`

	// Failed marks an entry produced from an unparseable file.
	Failed bool `json:"failed,omitempty"`

	// Diagnostic records why parsing failed or was partial.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// DeclaresType reports whether the entry declares the given type name.
func (e *Entry) DeclaresType(name string) bool {
	for _, t := range e.TypeNames {
		if t == name {
			return true
		}
	}
	return false
}

// EntryFromParse converts a parse result into an index entry.
func EntryFromParse(result *ast.ParseResult, source string) *Entry {
	entry := &Entry{
		Path:             result.FilePath,
		Namespace:        result.Namespace,
		TypeNames:        result.TypeNames(),
		MemberSignatures: result.MemberSignatures(),
		References:       result.References,
		Source:           source,
	}
	if len(result.Errors) > 0 {
		entry.Diagnostic = strings.Join(result.Errors, "; ")
	}
	return entry
}

// Stats summarizes index contents.
type Stats struct {
	// Units is the number of indexed source units.
	Units int

	// Types is the total number of declared types.
	Types int

	// FailedUnits is the number of units that failed parsing.
	FailedUnits int
}

// Index provides path-keyed lookups over unit entries and reverse
// lookups from a declared type to the units referencing it.
//
// # Thread Safety
//
// Safe for concurrent use. Writes (Add) use an exclusive lock, reads
// use a shared lock.
type Index struct {
	mu sync.RWMutex

	byPath map[string]*Entry

	// byReference maps a type name to the paths whose units mention it.
	byReference map[string][]string
}

// New creates an empty index.
func New() *Index {
	return &Index{
		byPath:      make(map[string]*Entry),
		byReference: make(map[string][]string),
	}
}

// Add inserts an entry.
//
// # Inputs
//
//   - entry: Entry to add. Must have a non-empty path.
//
// # Outputs
//
//   - error: ErrInvalidInput for a nil or pathless entry,
//     ErrDuplicateEntry if the path is already indexed.
func (x *Index) Add(entry *Entry) error {
	if entry == nil || entry.Path == "" {
		return fmt.Errorf("%w: entry must have a path", ErrInvalidInput)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.byPath[entry.Path]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, entry.Path)
	}
	x.byPath[entry.Path] = entry

	for _, ref := range entry.References {
		x.byReference[ref] = append(x.byReference[ref], entry.Path)
	}
	return nil
}

// Get returns the entry for a unit path.
//
// # Outputs
//
//   - *Entry: The entry, or nil.
//   - bool: True if found.
func (x *Index) Get(path string) (*Entry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entry, ok := x.byPath[path]
	return entry, ok
}

// Dependents returns entries for units that reference any type declared
// by the unit at path.
//
// # Description
//
// Used to give the generation oracle enough collaborator context to
// keep tests consistent: when src/A.cs declares Order, every unit
// mentioning Order is a dependent. The unit itself is excluded.
// Results are sorted by path for determinism.
//
// # Inputs
//
//   - path: Unit path whose dependents are wanted.
//
// # Outputs
//
//   - []*Entry: Dependent entries, possibly empty. Nil if the path is
//     not indexed.
func (x *Index) Dependents(path string) []*Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()

	entry, ok := x.byPath[path]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	for _, typeName := range entry.TypeNames {
		for _, depPath := range x.byReference[typeName] {
			if depPath != path {
				seen[depPath] = true
			}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	deps := make([]*Entry, 0, len(paths))
	for _, p := range paths {
		deps = append(deps, x.byPath[p])
	}
	return deps
}

// Dependencies returns entries for units declaring types that the unit
// at path references. Sorted by path.
func (x *Index) Dependencies(path string) []*Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()

	entry, ok := x.byPath[path]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	for _, ref := range entry.References {
		for p, other := range x.byPath {
			if p != path && other.DeclaresType(ref) {
				seen[p] = true
			}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	deps := make([]*Entry, 0, len(paths))
	for _, p := range paths {
		deps = append(deps, x.byPath[p])
	}
	return deps
}

// Paths returns all indexed unit paths, sorted.
func (x *Index) Paths() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	paths := make([]string, 0, len(x.byPath))
	for p := range x.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Stats returns counts over the index contents.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s := Stats{Units: len(x.byPath)}
	for _, e := range x.byPath {
		s.Types += len(e.TypeNames)
		if e.Failed {
			s.FailedUnits++
		}
	}
	return s
}
