package embedding

import (
	"math"
	"testing"

	"github.com/memkeep/memkeep/internal/config"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b Vector
		want float64
	}{
		{"identical", Vector{1, 2, 3}, Vector{1, 2, 3}, 1},
		{"orthogonal", Vector{1, 0}, Vector{0, 1}, 0},
		{"opposite", Vector{1, 0}, Vector{-1, 0}, -1},
		{"scaled", Vector{1, 2}, Vector{2, 4}, 1},
		{"mismatched dims", Vector{1, 2}, Vector{1, 2, 3}, 0},
		{"empty", Vector{}, Vector{}, 0},
		{"zero vector", Vector{0, 0}, Vector{1, 1}, 0},
	}
	for _, tc := range cases {
		if got := CosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: got %f, want %f", tc.name, got, tc.want)
		}
	}
}

func TestNewFactory(t *testing.T) {
	if e := New(config.SemanticConfig{Enabled: false, Provider: "ollama"}); e != nil {
		t.Error("disabled semantic config must yield no embedder")
	}
	if e := New(config.SemanticConfig{Enabled: true, Provider: ""}); e != nil {
		t.Error("missing provider must yield no embedder")
	}

	e := New(config.SemanticConfig{Enabled: true, Provider: "ollama", TimeoutSeconds: 5})
	if e == nil || e.Name() != "ollama" {
		t.Fatalf("expected ollama embedder, got %v", e)
	}
	if e.Dims() != 768 {
		t.Errorf("expected default 768 dims, got %d", e.Dims())
	}

	e = New(config.SemanticConfig{
		Enabled: true, Provider: "ollama",
		Ollama: config.OllamaConfig{Model: "all-minilm"},
	})
	if e.Dims() != 384 {
		t.Errorf("expected 384 dims for all-minilm, got %d", e.Dims())
	}

	e = New(config.SemanticConfig{Enabled: true, Provider: "openai"})
	if e == nil || e.Name() != "openai" {
		t.Fatalf("expected openai embedder, got %v", e)
	}
	if e.Dims() != 1536 {
		t.Errorf("expected default 1536 dims, got %d", e.Dims())
	}
}
