// Package testutil provides common test utilities and helpers for ZapDesk tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZapDesk/ZapDesk/internal/api"
	"github.com/ZapDesk/ZapDesk/internal/flow"
	"github.com/ZapDesk/ZapDesk/internal/messaging"
	"github.com/ZapDesk/ZapDesk/internal/models"
	"github.com/ZapDesk/ZapDesk/internal/store"
	"github.com/ZapDesk/ZapDesk/internal/whatsapp"
)

// TestServerParts exposes the dependencies behind a test server so
// tests can inspect sent messages or seed the store directly.
type TestServerParts struct {
	Server     *api.Server
	Store      store.Store
	Engine     *flow.Engine
	MockClient *whatsapp.MockClient
}

// NewTestServer creates a test API server wired to in-memory
// dependencies. This centralizes the setup used across test files.
func NewTestServer() *TestServerParts {
	mockClient := whatsapp.NewMockClient()
	msgService := messaging.NewWhatsAppService(mockClient)
	st := store.NewInMemoryStore()
	engine := flow.NewEngine(st, messaging.NewServiceSink(msgService), flow.NewSimpleTimer(), st, models.DefaultSettings())

	return &TestServerParts{
		Server:     api.NewServer(msgService, engine, st, nil, ""),
		Store:      st,
		Engine:     engine,
		MockClient: mockClient,
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes a JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with an optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SeedTestFlow saves a minimal valid flow and returns it. The flow has
// a welcome step chained into a question that records nome_cliente.
func SeedTestFlow(t *testing.T, st store.Store) *models.Flow {
	t.Helper()
	f := models.Flow{
		ID:   "flow-test",
		Name: "Atendimento",
		Steps: []models.Step{
			{
				ID:          "boas-vindas",
				Type:        models.StepTypeWelcome,
				Prompt:      "Olá! 👋",
				SkipWait:    true,
				DefaultNext: "nome",
			},
			{
				ID:          "nome",
				Type:        models.StepTypeQuestion,
				Prompt:      "Qual é o seu nome?",
				FieldName:   "nome_cliente",
				DefaultNext: models.EndTarget,
			},
		},
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("seed flow is invalid: %v", err)
	}
	if err := st.SaveFlow(f); err != nil {
		t.Fatalf("failed to save seed flow: %v", err)
	}
	return &f
}
