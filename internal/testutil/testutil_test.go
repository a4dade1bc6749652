package testutil

import (
	"net/http"
	"testing"
)

func TestNewTestServerWiresDependencies(t *testing.T) {
	parts := NewTestServer()
	if parts.Server == nil || parts.Store == nil || parts.Engine == nil || parts.MockClient == nil {
		t.Fatal("NewTestServer left a dependency nil")
	}
	if parts.Engine.ActiveSessions() != 0 {
		t.Errorf("fresh engine should have no sessions, got %d", parts.Engine.ActiveSessions())
	}
}

func TestCreateHTTPRequestEncodesBody(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/flows", map[string]string{"name": "Teste"})
	if req.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.Method)
	}
	if req.Body == nil {
		t.Fatal("expected a request body")
	}
}

func TestSeedTestFlowIsRetrievable(t *testing.T) {
	parts := NewTestServer()
	flow := SeedTestFlow(t, parts.Store)

	saved, err := parts.Store.GetFlow(flow.ID)
	if err != nil {
		t.Fatalf("failed to load seeded flow: %v", err)
	}
	if len(saved.Steps) != 2 {
		t.Errorf("expected 2 steps, got %d", len(saved.Steps))
	}
}
