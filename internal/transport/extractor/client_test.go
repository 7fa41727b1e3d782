package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/voicegate/internal/domain"
	"github.com/kailas-cloud/voicegate/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterVerificationMetrics()
	os.Exit(m.Run())
}

func newClient(url string, retries int) *Client {
	return New(&Config{
		URL:        url,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: retries,
		RetryWait:  time.Millisecond,
	})
}

func TestClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != embedPath || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SampleRate != 16000 || len(req.Samples) != 3 {
			t.Errorf("request = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}, Model: "ecapa"})
	}))
	defer server.Close()

	before := testutil.ToFloat64(metrics.ExtractorRequestsTotal.WithLabelValues("success"))
	got, err := newClient(server.URL, 0).Embed(context.Background(), []float32{0, 0.5, -0.5}, 16000)
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(got) != 3 || got[1] != 0.2 {
		t.Errorf("embedding = %v", got)
	}
	if after := testutil.ToFloat64(metrics.ExtractorRequestsTotal.WithLabelValues("success")); after != before+1 {
		t.Errorf("success counter = %v, want %v", after, before+1)
	}
}

func TestClient_Embed_RejectedClip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"clip too short"}`))
	}))
	defer server.Close()

	_, err := newClient(server.URL, 2).Embed(context.Background(), []float32{0.1}, 16000)
	if !errors.Is(err, domain.ErrInvalidAudio) {
		t.Fatalf("expected ErrInvalidAudio, got %v", err)
	}
	if errors.Is(err, domain.ErrServiceUnavailable) {
		t.Error("rejected clip must not look like an outage")
	}
}

func TestClient_Embed_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"warming up"}`))
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1}})
	}))
	defer server.Close()

	if _, err := newClient(server.URL, 3).Embed(context.Background(), []float32{0.1}, 16000); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestClient_Embed_Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newClient(server.URL, 1).Embed(context.Background(), []float32{0.1}, 16000)
	var depErr *domain.DependencyError
	if !errors.As(err, &depErr) || depErr.Dependency != "embedding extractor" {
		t.Fatalf("expected extractor DependencyError, got %v", err)
	}
}

func TestClient_Embed_EmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embedding":[]}`))
	}))
	defer server.Close()

	_, err := newClient(server.URL, 0).Embed(context.Background(), []float32{0.1}, 16000)
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestClient_Embed_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"embedding":[1]}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newClient(server.URL, 0).Embed(ctx, []float32{0.1}, 16000)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	var unhealthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	c := newClient(server.URL, 0)
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unhealthy.Store(true)
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for unhealthy extractor")
	}
}
