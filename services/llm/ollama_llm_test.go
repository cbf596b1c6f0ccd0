package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaGenerate(t *testing.T) {
	var gotReq ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    gotReq.Model,
			Response: "public class FooTests { }",
			Done:     true,
		})
	}))
	defer srv.Close()

	client, err := NewOllamaClient(srv.URL, "qwen2.5-coder:14b", 0)
	if err != nil {
		t.Fatalf("NewOllamaClient() = %v", err)
	}

	out, err := client.Generate(context.Background(), "write tests", DeterministicParams())
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if out != "public class FooTests { }" {
		t.Errorf("Generate() = %q", out)
	}
	if gotReq.Model != "qwen2.5-coder:14b" {
		t.Errorf("request model = %q", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("request asked for streaming")
	}
	if temp, ok := gotReq.Options["temperature"].(float64); !ok || temp > 0.2 {
		t.Errorf("temperature = %v, want low deterministic value", gotReq.Options["temperature"])
	}
}

func TestOllamaGenerateModelMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": `model "nope" not found`})
	}))
	defer srv.Close()

	client, err := NewOllamaClient(srv.URL, "nope", 0)
	if err != nil {
		t.Fatalf("NewOllamaClient() = %v", err)
	}

	_, err = client.Generate(context.Background(), "p", GenerationParams{})
	if err == nil || !strings.Contains(err.Error(), "ollama pull") {
		t.Errorf("Generate() = %v, want pull hint", err)
	}
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.Write([]byte(`{"models":[{"name":"qwen2.5-coder:14b"},{"name":"llama3:latest"}]}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient(srv.URL, "qwen2.5-coder:14b", 0)
	if err != nil {
		t.Fatalf("NewOllamaClient() = %v", err)
	}

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("ListModels() returned %d models, want 2", len(models))
	}

	ok, err := client.HasModel(context.Background(), "llama3")
	if err != nil || !ok {
		t.Errorf("HasModel(llama3) = %v, %v, want true", ok, err)
	}
	ok, err = client.HasModel(context.Background(), "mistral")
	if err != nil || ok {
		t.Errorf("HasModel(mistral) = %v, %v, want false", ok, err)
	}
}

func TestOllamaListModelsUnreachable(t *testing.T) {
	client, err := NewOllamaClient("http://127.0.0.1:1", "m", 0)
	if err != nil {
		t.Fatalf("NewOllamaClient() = %v", err)
	}
	if _, err := client.ListModels(context.Background()); err == nil {
		t.Error("ListModels() = nil error for unreachable daemon")
	}
}

func TestNewOllamaClientValidation(t *testing.T) {
	if _, err := NewOllamaClient("", "m", 0); err == nil {
		t.Error("NewOllamaClient with empty URL succeeded")
	}
}
