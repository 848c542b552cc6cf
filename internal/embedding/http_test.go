package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newOpenAIServer(t *testing.T, dims int, failures int32) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"auth"}}`))
			return
		}
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		// Reply in reverse order to check the client sorts by index.
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			v := make([]float32, dims)
			v[0] = float32(i + 1)
			v[1] = 1
			data = append(data, item{Embedding: v, Index: i})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIEmbedder(t *testing.T) {
	ctx := context.Background()
	srv, _ := newOpenAIServer(t, 4, 0)
	e, err := NewOpenAIEmbedder(ctx, HTTPConfig{BaseURL: srv.URL + "/v1/", APIKey: "sk-test", Model: "m"})
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder: %v", err)
	}
	if e.Dimensions() != 4 {
		t.Errorf("probed Dimensions=%d, want 4", e.Dimensions())
	}
	out, err := e.EmbedBatch(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range out {
		if v[0] != float32(i+1) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
}

func TestOpenAIEmbedder_Normalize(t *testing.T) {
	srv, _ := newOpenAIServer(t, 2, 0)
	e, err := NewOpenAIEmbedder(context.Background(), HTTPConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Dimensions: 2, Normalize: true})
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Embed(context.Background(), "x")
	if err != nil {
		t.Fatal(err)
	}
	if n := math.Sqrt(float64(v[0]*v[0] + v[1]*v[1])); math.Abs(n-1) > 1e-6 {
		t.Errorf("norm=%v, want 1", n)
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	srv, _ := newOpenAIServer(t, 2, 0)
	_, err := NewOpenAIEmbedder(context.Background(), HTTPConfig{BaseURL: srv.URL + "/v1", APIKey: "wrong"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "bad key" {
		t.Errorf("apiErr=%+v", apiErr)
	}
	if apiErr.Retryable() {
		t.Error("401 should not be retryable")
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	srv, _ := newOpenAIServer(t, 3, 0)
	e, err := NewOpenAIEmbedder(context.Background(), HTTPConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Dimensions: 5})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error for wrong vector size")
	}
}

func TestRetryEmbedder(t *testing.T) {
	ctx := context.Background()
	srv, calls := newOpenAIServer(t, 2, 0)
	remote, err := NewOpenAIEmbedder(ctx, HTTPConfig{BaseURL: srv.URL + "/v1", APIKey: "sk-test", Dimensions: 2})
	if err != nil {
		t.Fatal(err)
	}

	failing, failingCalls := newOpenAIServer(t, 2, 2)
	remote.url = failing.URL + "/v1/embeddings"
	e := NewRetryEmbedder(remote, 3, time.Millisecond, nil)
	if _, err := e.Embed(ctx, "x"); err != nil {
		t.Fatalf("Embed after transient failures: %v", err)
	}
	if got := atomic.LoadInt32(failingCalls); got != 3 {
		t.Errorf("calls=%d, want 3", got)
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Errorf("original server should not be called")
	}
}

func TestRetryEmbedder_GivesUp(t *testing.T) {
	ctx := context.Background()
	srv, calls := newOpenAIServer(t, 2, 100)
	remote := &OpenAIEmbedder{cfg: HTTPConfig{APIKey: "sk-test", HTTPClient: srv.Client()}, url: srv.URL + "/v1/embeddings", dimensions: 2}
	e := NewRetryEmbedder(remote, 2, time.Millisecond, nil)
	_, err := e.EmbedBatch(ctx, []string{"x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("err=%v, want 503 APIError", err)
	}
	if got := atomic.LoadInt32(calls); got != 3 {
		t.Errorf("calls=%d, want 3", got)
	}
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "all-minilm" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model not found"}`))
			return
		}
		out := make([][]float32, len(req.Input))
		for i := range out {
			out[i] = []float32{3, 4, 0}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
	defer srv.Close()

	ctx := context.Background()
	e, err := NewOllamaEmbedder(ctx, HTTPConfig{BaseURL: srv.URL, Normalize: true})
	if err != nil {
		t.Fatalf("NewOllamaEmbedder: %v", err)
	}
	if e.Dimensions() != 3 {
		t.Errorf("Dimensions=%d, want 3", e.Dimensions())
	}
	out, err := e.EmbedBatch(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || math.Abs(float64(out[0][0])-0.6) > 1e-6 {
		t.Errorf("unexpected output %v", out)
	}

	_, err = NewOllamaEmbedder(ctx, HTTPConfig{BaseURL: srv.URL, Model: "missing"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "model not found" {
		t.Errorf("err=%v, want model not found APIError", err)
	}
}

func TestAPIError_Retryable(t *testing.T) {
	tests := []struct {
		err  *APIError
		want bool
	}{
		{&APIError{StatusCode: 429}, true},
		{&APIError{StatusCode: 500}, true},
		{&APIError{StatusCode: 503}, true},
		{&APIError{StatusCode: 400}, false},
		{&APIError{Err: errors.New("connection refused")}, true},
		{&APIError{Err: context.Canceled}, false},
	}
	for _, tt := range tests {
		if got := tt.err.Retryable(); got != tt.want {
			t.Errorf("%v Retryable=%v, want %v", tt.err, got, tt.want)
		}
	}
}
