package engine

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelogroup/clixen/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPayload() *DeployPayload {
	return &DeployPayload{
		Name: "Order Sync",
		Nodes: []*models.Node{
			{ID: "trigger", Name: "Start", Type: "manual-trigger", TypeVersion: 1, Position: []float64{240, 300}},
		},
		Connections: map[string][][]models.Connection{},
		Active:      true,
	}
}

func TestClient_CreateWorkflow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/workflows", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("X-N8N-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		payload := &DeployPayload{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(payload))
		assert.Equal(t, "Order Sync", payload.Name)
		assert.True(t, payload.Active)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Workflow{ID: "wf-123", Active: true})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key", testLogger())

	workflow, err := client.CreateWorkflow(t.Context(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, "wf-123", workflow.ID)
	assert.True(t, workflow.Active)
}

func TestClient_CreateWorkflowMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Workflow{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())

	_, err := client.CreateWorkflow(t.Context(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing the workflow id")
}

func TestClient_CreateWorkflowJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"name already taken"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())

	_, err := client.CreateWorkflow(t.Context(), testPayload())
	require.Error(t, err)

	apiErr := &APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "name already taken", apiErr.Message)
}

func TestClient_CreateWorkflowNonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())

	_, err := client.CreateWorkflow(t.Context(), testPayload())
	require.Error(t, err)

	apiErr := &APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream exploded", apiErr.Message)
}

func TestClient_CreateWorkflowUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "", testLogger())

	_, err := client.CreateWorkflow(t.Context(), testPayload())
	require.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestClient_DeleteWorkflow(t *testing.T) {
	deleted := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/workflows/wf-123", r.URL.Path)

		deleted = true

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())

	require.NoError(t, client.DeleteWorkflow(t.Context(), "wf-123"))
	assert.True(t, deleted)
}

func TestClient_DeleteUnknownWorkflowIsIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())

	assert.NoError(t, client.DeleteWorkflow(t.Context(), "gone"))
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())

	assert.NoError(t, client.Health(t.Context()))
}

func TestClient_HealthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", testLogger())

	assert.Error(t, client.Health(t.Context()))
}
