package ast

import (
	"context"
	"strings"
	"testing"
)

const orderSource = `using System;
using OrderManagement.Domain.Events;

namespace OrderManagement.Domain
{
    public class Order : IAggregate
    {
        private readonly List<OrderLine> _lines = new List<OrderLine>();

        public Guid Id { get; set; }

        public Order(Guid id)
        {
            Id = id;
        }

        public decimal Total(PricingPolicy policy)
        {
            return policy.Apply(_lines);
        }
    }

    public enum OrderStatus
    {
        Pending,
        Shipped
    }
}
`

func TestCSharpParser_Parse(t *testing.T) {
	parser := NewCSharpParser()
	result, err := parser.Parse(context.Background(), []byte(orderSource), "src/OrderManagement.Domain/Order.cs")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if result.Language != "csharp" {
		t.Errorf("Language = %q, want csharp", result.Language)
	}
	if result.Namespace != "OrderManagement.Domain" {
		t.Errorf("Namespace = %q, want OrderManagement.Domain", result.Namespace)
	}
	if result.Hash == "" {
		t.Error("Hash is empty")
	}

	byName := map[string]*Symbol{}
	for _, s := range result.Symbols {
		byName[s.Kind.String()+"/"+s.Name] = s
	}

	order, ok := byName["class/Order"]
	if !ok {
		t.Fatalf("class Order not found; symbols: %v", symbolNames(result))
	}
	if order.Namespace != "OrderManagement.Domain" {
		t.Errorf("Order namespace = %q", order.Namespace)
	}
	if !strings.Contains(order.Signature, "public class Order") {
		t.Errorf("Order signature = %q", order.Signature)
	}

	if _, ok := byName["enum/OrderStatus"]; !ok {
		t.Errorf("enum OrderStatus not found; symbols: %v", symbolNames(result))
	}

	total, ok := byName["method/Total"]
	if !ok {
		t.Fatalf("method Total not found; symbols: %v", symbolNames(result))
	}
	if total.Parent != "Order" {
		t.Errorf("Total parent = %q, want Order", total.Parent)
	}
	if !strings.Contains(total.Signature, "Total(PricingPolicy policy)") {
		t.Errorf("Total signature = %q", total.Signature)
	}

	ctor, ok := byName["constructor/Order"]
	if !ok {
		t.Fatalf("constructor Order not found")
	}
	if ctor.Kind != SymbolKindConstructor {
		t.Errorf("ctor kind = %v", ctor.Kind)
	}

	if _, ok := byName["property/Id"]; !ok {
		t.Errorf("property Id not found")
	}
}

func TestCSharpParser_Usings(t *testing.T) {
	parser := NewCSharpParser()
	result, err := parser.Parse(context.Background(), []byte(orderSource), "Order.cs")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []string{"System", "OrderManagement.Domain.Events"}
	if len(result.Usings) != len(want) {
		t.Fatalf("Usings = %v, want %v", result.Usings, want)
	}
	for i := range want {
		if result.Usings[i] != want[i] {
			t.Errorf("Usings[%d] = %q, want %q", i, result.Usings[i], want[i])
		}
	}
}

func TestCSharpParser_References(t *testing.T) {
	parser := NewCSharpParser()
	result, err := parser.Parse(context.Background(), []byte(orderSource), "Order.cs")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	for _, want := range []string{"PricingPolicy", "IAggregate", "OrderLine"} {
		if !result.ReferencesType(want) {
			t.Errorf("References missing %q; got %v", want, result.References)
		}
	}

	// Types declared in the unit are not external references.
	if result.ReferencesType("Order") {
		t.Errorf("Order should not be an external reference: %v", result.References)
	}
	// Builtins are filtered.
	if result.ReferencesType("string") || result.ReferencesType("List") {
		t.Errorf("builtin leaked into references: %v", result.References)
	}
}

func TestCSharpParser_FileScopedNamespace(t *testing.T) {
	src := "namespace Billing.Application;\n\npublic class InvoiceService\n{\n    public void Send() { }\n}\n"
	parser := NewCSharpParser()
	result, err := parser.Parse(context.Background(), []byte(src), "InvoiceService.cs")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Namespace != "Billing.Application" {
		t.Errorf("Namespace = %q, want Billing.Application", result.Namespace)
	}
	found := false
	for _, s := range result.Symbols {
		if s.Kind == SymbolKindClass && s.Name == "InvoiceService" {
			found = true
			if s.Namespace != "Billing.Application" {
				t.Errorf("class namespace = %q", s.Namespace)
			}
		}
	}
	if !found {
		t.Errorf("InvoiceService not found; symbols: %v", symbolNames(result))
	}
}

func TestCSharpParser_MalformedSourceIsPartial(t *testing.T) {
	src := "namespace Broken {\n    public class Half {\n        public void M( {\n}\n"
	parser := NewCSharpParser()
	result, err := parser.Parse(context.Background(), []byte(src), "Broken.cs")
	if err != nil {
		t.Fatalf("Parse should tolerate syntax errors, got: %v", err)
	}
	if len(result.Errors) == 0 {
		t.Error("expected recorded syntax diagnostics")
	}
}

func TestCSharpParser_BOMIsStripped(t *testing.T) {
	src := append([]byte{0xEF, 0xBB, 0xBF}, []byte("namespace A;\npublic class B { }\n")...)
	parser := NewCSharpParser()
	result, err := parser.Parse(context.Background(), src, "B.cs")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Namespace != "A" {
		t.Errorf("Namespace = %q, want A", result.Namespace)
	}
}

func TestCSharpParser_FileTooLarge(t *testing.T) {
	parser := NewCSharpParser(WithMaxFileSize(16))
	_, err := parser.Parse(context.Background(), []byte(orderSource), "Order.cs")
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestCSharpParser_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	parser := NewCSharpParser()
	if _, err := parser.Parse(ctx, []byte(orderSource), "Order.cs"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestNormalizeTypeName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Order", "Order"},
		{"List<Order>", "List"},
		{"Order[]", "Order"},
		{"Order?", "Order"},
		{"Domain.Orders.Order", "Order"},
		{"  Order ", "Order"},
	}
	for _, tt := range tests {
		if got := normalizeTypeName(tt.raw); got != tt.want {
			t.Errorf("normalizeTypeName(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func symbolNames(r *ParseResult) []string {
	var names []string
	for _, s := range r.Symbols {
		names = append(names, s.Kind.String()+"/"+s.Name)
	}
	return names
}
