package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/config"
)

func TestOllamaEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		embeddings := make([][]float64, len(req.Input))
		for i := range embeddings {
			embeddings[i] = []float64{float64(i), 1}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	defer server.Close()

	e := NewOllamaEmbedder("nomic-embed-text", server.URL, 5*time.Second)
	got, err := e.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 || got[1][0] != 1 {
		t.Errorf("unexpected embeddings: %v", got)
	}
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{1}}})
	}))
	defer server.Close()

	e := NewOllamaEmbedder("nomic-embed-text", server.URL, 5*time.Second)
	if _, err := e.Embed(context.Background(), []string{"one", "two"}); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestOpenAIEmbedRequiresKey(t *testing.T) {
	e := &OpenAIEmbedder{Model: "text-embedding-3-small"}
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("expected missing key error")
	}
}

func TestCreateEmbedderFallsBackToNil(t *testing.T) {
	t.Setenv("NYHETSAGENT_TEST_KEY", "")
	e := CreateEmbedder(config.Embedding{
		Provider:  "openai",
		APIKeyEnv: "NYHETSAGENT_TEST_KEY",
	})
	if e != nil {
		t.Error("unconfigured provider should yield a nil embedder")
	}
}

// chunkEmbedder records which texts arrive and fails chunks on demand.
type chunkEmbedder struct {
	failContaining string
}

func (c *chunkEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	for _, text := range texts {
		if c.failContaining != "" && strings.Contains(text, c.failContaining) {
			return nil, errors.New("injected failure")
		}
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text))}
	}
	return out, nil
}

func TestPrefetchPreservesOrderAcrossChunks(t *testing.T) {
	texts := make([]string, 40)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}

	p := NewPrefetcher(&chunkEmbedder{}, 0, 5*time.Second)
	got := p.Fetch(context.Background(), texts)

	if len(got) != len(texts) {
		t.Fatalf("got %d embeddings, want %d", len(got), len(texts))
	}
	for i, emb := range got {
		if len(emb) != 1 || emb[0] != float64(i+1) {
			t.Fatalf("embedding %d out of order: %v", i, emb)
		}
	}
}

func TestPrefetchDegradesFailedChunk(t *testing.T) {
	texts := make([]string, 32)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%02d", i)
	}
	// Text 20 sits in the second chunk; the whole chunk degrades.
	p := NewPrefetcher(&chunkEmbedder{failContaining: "text-20"}, 0, 5*time.Second)
	got := p.Fetch(context.Background(), texts)

	for i := 0; i < 16; i++ {
		if got[i] == nil {
			t.Fatalf("healthy chunk lost embedding %d", i)
		}
	}
	for i := 16; i < 32; i++ {
		if got[i] != nil {
			t.Fatalf("failed chunk should leave nil at %d", i)
		}
	}
}

func TestPrefetchNilEmbedder(t *testing.T) {
	p := NewPrefetcher(nil, 0, time.Second)
	got := p.Fetch(context.Background(), []string{"a", "b"})
	if len(got) != 2 || got[0] != nil || got[1] != nil {
		t.Errorf("nil embedder should yield nil embeddings, got %v", got)
	}
}
