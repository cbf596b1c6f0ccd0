// Package ast provides structural parsing of C# source units.
//
// This package defines the data structures used throughout TestForge for
// representing parsed code symbols, their locations, and the type names
// they reference. The parser is grammar-driven (tree-sitter) and
// error-tolerant: syntactically invalid files produce partial results
// with recorded diagnostics rather than hard failures.
//
// Design principles:
//   - Timestamps as int64 UnixMilli per project conventions
//   - No map[string]interface{} - concrete types only
//   - Symbols are immutable once produced
package ast

import (
	"fmt"
	"strings"
)

// SymbolKind represents the type of code symbol extracted from C# source.
type SymbolKind int

const (
	// SymbolKindUnknown indicates an unrecognized or unparseable symbol.
	SymbolKindUnknown SymbolKind = iota

	// SymbolKindNamespace represents a namespace declaration, including
	// file-scoped namespaces.
	SymbolKindNamespace

	// SymbolKindClass represents a class declaration.
	SymbolKindClass

	// SymbolKindInterface represents an interface declaration.
	SymbolKindInterface

	// SymbolKindStruct represents a struct declaration.
	SymbolKindStruct

	// SymbolKindRecord represents a record or record struct declaration.
	SymbolKindRecord

	// SymbolKindEnum represents an enum declaration.
	SymbolKindEnum

	// SymbolKindMethod represents a method declaration.
	SymbolKindMethod

	// SymbolKindConstructor represents a constructor declaration.
	SymbolKindConstructor

	// SymbolKindProperty represents a property declaration.
	SymbolKindProperty

	// SymbolKindField represents a field declaration.
	SymbolKindField

	// SymbolKindUsing represents a using directive.
	SymbolKindUsing
)

// String returns the lowercase name of the kind for logging and JSON.
func (k SymbolKind) String() string {
	switch k {
	case SymbolKindNamespace:
		return "namespace"
	case SymbolKindClass:
		return "class"
	case SymbolKindInterface:
		return "interface"
	case SymbolKindStruct:
		return "struct"
	case SymbolKindRecord:
		return "record"
	case SymbolKindEnum:
		return "enum"
	case SymbolKindMethod:
		return "method"
	case SymbolKindConstructor:
		return "constructor"
	case SymbolKindProperty:
		return "property"
	case SymbolKindField:
		return "field"
	case SymbolKindUsing:
		return "using"
	default:
		return "unknown"
	}
}

// IsType reports whether the kind declares a type usable as a test target.
func (k SymbolKind) IsType() bool {
	switch k {
	case SymbolKindClass, SymbolKindInterface, SymbolKindStruct,
		SymbolKindRecord, SymbolKindEnum:
		return true
	default:
		return false
	}
}

// Symbol is one declaration extracted from a source unit.
//
// Symbols MUST NOT be mutated after being handed to the index.
type Symbol struct {
	// ID uniquely identifies the symbol: "path:line:Name".
	ID string `json:"id"`

	// Name is the declared identifier (no namespace qualification).
	Name string `json:"name"`

	// Kind classifies the declaration.
	Kind SymbolKind `json:"kind"`

	// FilePath is the unit path relative to the repository root,
	// forward slashes.
	FilePath string `json:"file_path"`

	// Namespace is the enclosing namespace, or "" at file level.
	Namespace string `json:"namespace,omitempty"`

	// Parent is the name of the enclosing type for members, or "".
	Parent string `json:"parent,omitempty"`

	// Signature is the declaration header as written in source
	// (modifiers, return type, name, parameter list).
	Signature string `json:"signature,omitempty"`

	// StartLine and EndLine are 1-based inclusive.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Validate checks the symbol for internal consistency.
func (s *Symbol) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("symbol has empty ID")
	}
	if s.Name == "" {
		return fmt.Errorf("symbol %s has empty name", s.ID)
	}
	if s.FilePath == "" {
		return fmt.Errorf("symbol %s has empty file path", s.ID)
	}
	if s.StartLine < 1 || s.EndLine < s.StartLine {
		return fmt.Errorf("symbol %s has invalid line range %d-%d", s.ID, s.StartLine, s.EndLine)
	}
	return nil
}

// QualifiedName returns "Namespace.Name" or just Name for the global
// namespace.
func (s *Symbol) QualifiedName() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "." + s.Name
}

// GenerateID builds the canonical symbol ID from its location.
func GenerateID(filePath string, line int, name string) string {
	return fmt.Sprintf("%s:%d:%s", filePath, line, name)
}

// ParseResult is the structural summary of one source unit.
type ParseResult struct {
	// FilePath is the unit path relative to the repository root.
	FilePath string `json:"file_path"`

	// Language is always "csharp" for this parser.
	Language string `json:"language"`

	// Hash is the hex sha256 of the parsed content.
	Hash string `json:"hash"`

	// ParsedAtMilli is the parse timestamp (UnixMilli).
	ParsedAtMilli int64 `json:"parsed_at_milli"`

	// Namespace is the first namespace declared in the unit, or "".
	Namespace string `json:"namespace,omitempty"`

	// Symbols are all extracted declarations, in source order.
	Symbols []*Symbol `json:"symbols"`

	// Usings are the namespaces imported via using directives.
	Usings []string `json:"usings"`

	// References are the simple type names this unit mentions in base
	// lists, member signatures, and object creation expressions.
	// Deduplicated, source order.
	References []string `json:"references"`

	// Errors are non-fatal diagnostics recorded during parsing.
	Errors []string `json:"errors,omitempty"`
}

// TypeNames returns the names of types declared in this unit.
func (r *ParseResult) TypeNames() []string {
	var names []string
	for _, s := range r.Symbols {
		if s.Kind.IsType() {
			names = append(names, s.Name)
		}
	}
	return names
}

// MemberSignatures returns the signatures of methods, constructors, and
// properties declared in this unit.
func (r *ParseResult) MemberSignatures() []string {
	var sigs []string
	for _, s := range r.Symbols {
		switch s.Kind {
		case SymbolKindMethod, SymbolKindConstructor, SymbolKindProperty:
			if s.Signature != "" {
				sigs = append(sigs, s.Signature)
			}
		}
	}
	return sigs
}

// ReferencesType reports whether the unit mentions the given type name.
func (r *ParseResult) ReferencesType(name string) bool {
	for _, ref := range r.References {
		if ref == name {
			return true
		}
	}
	return false
}

// Validate checks every symbol in the result.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return fmt.Errorf("parse result has empty file path")
	}
	for i, s := range r.Symbols {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("symbol[%d]: %w", i, err)
		}
	}
	return nil
}

// normalizeTypeName strips generic arity, nullability markers, and
// array suffixes so "List<Order>" and "Order[]" both count as
// references to their element types.
func normalizeTypeName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.TrimSuffix(name, "?")
	name = strings.TrimSuffix(name, "[]")
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
