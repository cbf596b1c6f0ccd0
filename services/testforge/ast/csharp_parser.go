package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

// File size constants for input validation.
const (
	// DefaultMaxFileSize is the maximum file size the parser accepts (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// Parser errors.
var (
	// ErrFileTooLarge is returned when content exceeds the maximum file size.
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrInvalidContent is returned when content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid file content")
)

// CSharpParserOption configures a CSharpParser instance.
type CSharpParserOption func(*CSharpParser)

// WithMaxFileSize sets the maximum file size the parser will accept.
func WithMaxFileSize(bytes int64) CSharpParserOption {
	return func(p *CSharpParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// CSharpParser extracts structural symbols from C# source units.
//
// Description:
//
//	CSharpParser uses tree-sitter to parse C# source files and extract
//	namespaces, type declarations, member signatures, and referenced
//	type names. The parser is error-tolerant: syntactically invalid
//	code yields partial results with recorded diagnostics.
//
// Thread Safety:
//
//	CSharpParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser internally.
//
// Example:
//
//	parser := NewCSharpParser()
//	result, err := parser.Parse(ctx, content, "src/Orders/Order.cs")
//	if err != nil {
//	    return err
//	}
//	for _, sym := range result.Symbols {
//	    fmt.Printf("%s: %s\n", sym.Kind, sym.Name)
//	}
type CSharpParser struct {
	maxFileSize int64
}

// NewCSharpParser creates a parser with the given options.
func NewCSharpParser(opts ...CSharpParserOption) *CSharpParser {
	p := &CSharpParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns the canonical language name for this parser.
func (p *CSharpParser) Language() string { return "csharp" }

// Extensions returns the file extensions this parser handles.
func (p *CSharpParser) Extensions() []string { return []string{".cs"} }

// Parse extracts symbols from C# source code.
//
// # Description
//
// Parses the provided source and extracts all declarations into a
// ParseResult. Syntax errors are recorded in ParseResult.Errors and do
// not fail the call; only size, encoding, and context errors do.
//
// # Inputs
//
//   - ctx: Context for cancellation. Checked before and after parsing;
//     tree-sitter cannot be interrupted mid-parse.
//   - content: Raw C# source bytes. Must be valid UTF-8 (a UTF-8 BOM
//     is tolerated and stripped).
//   - filePath: Unit path relative to the repository root, forward
//     slashes. Used for ID generation and diagnostics.
//
// # Outputs
//
//   - *ParseResult: Extracted symbols and metadata. Never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a context error.
func (p *CSharpParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	if int64(len(content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	// C# tooling commonly writes a UTF-8 BOM.
	content = stripBOM(content)

	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(csharp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "csharp",
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Symbols:       make([]*Symbol, 0),
		Usings:        make([]string, 0),
		References:    make([]string, 0),
	}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	ext := &extractor{content: content, filePath: filePath, result: result}
	ext.walkScope(root, "", "")
	ext.collectReferences(root)

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("result validation failed: %w", err)
	}
	return result, nil
}

// stripBOM removes a leading UTF-8 byte order mark.
func stripBOM(content []byte) []byte {
	if len(content) >= 3 && content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		return content[3:]
	}
	return content
}

// extractor holds per-parse state so the walk methods stay small.
type extractor struct {
	content  []byte
	filePath string
	result   *ParseResult
	refSeen  map[string]bool
}

func (e *extractor) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(e.content[n.StartByte():n.EndByte()])
}

// walkScope extracts declarations, tracking the enclosing namespace and
// parent type.
func (e *extractor) walkScope(node *sitter.Node, namespace, parent string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "using_directive":
			e.addUsing(child)

		case "namespace_declaration", "file_scoped_namespace_declaration":
			name := e.text(child.ChildByFieldName("name"))
			e.addSymbol(child, name, SymbolKindNamespace, namespace, "", "")
			ns := name
			if namespace != "" {
				ns = namespace + "." + name
			}
			if e.result.Namespace == "" {
				e.result.Namespace = ns
			}
			e.walkScope(child, ns, parent)

		case "class_declaration":
			e.addTypeDecl(child, SymbolKindClass, namespace, parent)
		case "interface_declaration":
			e.addTypeDecl(child, SymbolKindInterface, namespace, parent)
		case "struct_declaration":
			e.addTypeDecl(child, SymbolKindStruct, namespace, parent)
		case "record_declaration", "record_struct_declaration":
			e.addTypeDecl(child, SymbolKindRecord, namespace, parent)
		case "enum_declaration":
			e.addTypeDecl(child, SymbolKindEnum, namespace, parent)

		case "method_declaration":
			name := e.text(child.ChildByFieldName("name"))
			e.addSymbol(child, name, SymbolKindMethod, namespace, parent, e.headerText(child))
		case "constructor_declaration":
			name := e.text(child.ChildByFieldName("name"))
			e.addSymbol(child, name, SymbolKindConstructor, namespace, parent, e.headerText(child))
		case "property_declaration":
			name := e.text(child.ChildByFieldName("name"))
			e.addSymbol(child, name, SymbolKindProperty, namespace, parent, e.headerText(child))
		case "field_declaration":
			e.addFields(child, namespace, parent)

		case "declaration_list":
			e.walkScope(child, namespace, parent)
		}
	}
}

// addTypeDecl records a type declaration and recurses into its body.
func (e *extractor) addTypeDecl(node *sitter.Node, kind SymbolKind, namespace, parent string) {
	name := e.text(node.ChildByFieldName("name"))
	e.addSymbol(node, name, kind, namespace, parent, e.headerText(node))
	e.walkScope(node, namespace, name)
}

// addFields records one symbol per declarator in a field declaration.
func (e *extractor) addFields(node *sitter.Node, namespace, parent string) {
	decl := findChildOfType(node, "variable_declaration")
	if decl == nil {
		return
	}
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		c := decl.NamedChild(i)
		if c.Type() != "variable_declarator" {
			continue
		}
		name := e.text(c.ChildByFieldName("name"))
		if name == "" {
			// Older grammar versions expose the name as the first child.
			name = e.text(c.NamedChild(0))
		}
		e.addSymbol(node, name, SymbolKindField, namespace, parent, "")
	}
}

func (e *extractor) addUsing(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		switch c.Type() {
		case "qualified_name", "identifier":
			e.result.Usings = append(e.result.Usings, e.text(c))
			return
		}
	}
}

func (e *extractor) addSymbol(node *sitter.Node, name string, kind SymbolKind, namespace, parent, signature string) {
	if name == "" {
		e.result.Errors = append(e.result.Errors,
			fmt.Sprintf("%s: %s declaration at line %d has no name", e.filePath, kind, node.StartPoint().Row+1))
		return
	}

	e.result.Symbols = append(e.result.Symbols, &Symbol{
		ID:        GenerateID(e.filePath, int(node.StartPoint().Row+1), name),
		Name:      name,
		Kind:      kind,
		FilePath:  e.filePath,
		Namespace: namespace,
		Parent:    parent,
		Signature: signature,
		StartLine: int(node.StartPoint().Row + 1),
		EndLine:   int(node.EndPoint().Row + 1),
	})
}

// headerText returns the declaration text up to its body, with
// whitespace collapsed. For "void Pay(Order o) { ... }" it returns
// "void Pay(Order o)".
func (e *extractor) headerText(node *sitter.Node) string {
	end := node.EndByte()
	if body := node.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	} else if acc := findChildOfType(node, "accessor_list"); acc != nil {
		end = acc.StartByte()
	} else if arrow := findChildOfType(node, "arrow_expression_clause"); arrow != nil {
		end = arrow.StartByte()
	}
	header := string(e.content[node.StartByte():end])
	return strings.Join(strings.Fields(header), " ")
}

// collectReferences walks the whole tree gathering type names mentioned
// in base lists, member signatures, and object creation expressions.
func (e *extractor) collectReferences(root *sitter.Node) {
	e.refSeen = make(map[string]bool)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "base_list":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				e.addReference(e.text(n.NamedChild(i)))
			}
		case "object_creation_expression":
			e.addReference(e.text(n.ChildByFieldName("type")))
		case "parameter", "property_declaration", "field_declaration",
			"variable_declaration", "method_declaration":
			if t := n.ChildByFieldName("type"); t != nil {
				e.addReference(e.text(t))
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
}

var builtinTypes = map[string]bool{
	"void": true, "int": true, "long": true, "short": true, "byte": true,
	"bool": true, "string": true, "char": true, "double": true,
	"float": true, "decimal": true, "object": true, "var": true,
	"uint": true, "ulong": true, "ushort": true, "sbyte": true,
	"dynamic": true, "Task": true, "List": true, "Dictionary": true,
	"IEnumerable": true, "IList": true, "ICollection": true,
}

func (e *extractor) addReference(raw string) {
	name := normalizeTypeName(raw)
	if name == "" || builtinTypes[name] || e.refSeen[name] {
		return
	}
	// Declared-in-this-unit types are not external references.
	for _, s := range e.result.Symbols {
		if s.Kind.IsType() && s.Name == name {
			return
		}
	}
	e.refSeen[name] = true
	e.result.References = append(e.result.References, name)
}

// findChildOfType returns the first named child of the given type.
func findChildOfType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		if c.Type() == nodeType {
			return c
		}
	}
	return nil
}
