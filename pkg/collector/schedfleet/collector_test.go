package schedfleet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/atlas/pkg/collector"
	"mercator-hq/atlas/pkg/registry"
)

func TestCollector_FetchWorkloads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/workloads" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name": "billing", "runtime_version": "22", "replicas": 4, "status": "healthy"},
			{"name": "search", "replicas": 2, "status": "degraded"},
			{"name": "", "replicas": 1}
		]`))
	}))
	defer server.Close()

	c, err := New(Config{BaseURL: server.URL}, nil)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if snap.SourceID != registry.SourceSchedFleet {
		t.Errorf("wrong source id %q", snap.SourceID)
	}
	if len(snap.Services) != 2 {
		t.Fatalf("nameless workloads must be skipped; want 2 services, got %d", len(snap.Services))
	}
	billing := snap.Services["billing"]
	if got := billing[registry.FieldRuntimeVersion]; got.Value != "22" {
		t.Errorf("runtime_version = %q, want 22", got.Value)
	}
	if got := billing[registry.FieldReplicas]; got.Value != "4" {
		t.Errorf("replicas = %q, want 4", got.Value)
	}
	search := snap.Services["search"]
	if got := search[registry.FieldRuntimeVersion]; got.Known {
		t.Error("missing runtime version must be explicitly unknown")
	}
	if got := search[registry.FieldStatus]; got.Value != "degraded" {
		t.Errorf("status = %q, want degraded", got.Value)
	}
}

func TestCollector_AuthRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c, err := New(Config{BaseURL: server.URL, Token: "expired"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Fetch(context.Background())
	if !collector.IsAuthFailure(err) {
		t.Errorf("401 must map to AuthError, got %v", err)
	}
}

func TestCollector_WatchEmitsChangeSignals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/events" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("billing\nsearch\n"))
	}))
	defer server.Close()

	c, err := New(Config{BaseURL: server.URL, Watch: true}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go c.StartWatch(ctx)

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		got[<-c.Changes()] = true
	}
	cancel()

	if !got["billing"] || !got["search"] {
		t.Errorf("want change signals for billing and search, got %v", got)
	}
}
