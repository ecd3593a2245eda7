package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpadronm90/simple-chatbot-platform/internal/domain"
)

func TestClientDispatchSendsEnvelope(t *testing.T) {
	var got domain.DispatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`[{"id":"a1"}]`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL+"/", "tok").Dispatch(context.Background(), domain.ActionGetAgents, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a1"}]`, string(out))
	assert.Equal(t, domain.ActionGetAgents, got.Action)
}

func TestClientReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"run already in progress for thread"}`))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	err := NewClient(srv.URL, "").StreamRun(context.Background(), domain.RunAssistantRequest{ThreadID: "t1", AssistantID: "a1"}, &buf)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "run already in progress for thread", apiErr.Message)
	assert.Empty(t, buf.String())
}

func TestClientStreamRunCopiesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		var req domain.DispatchRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		var run domain.RunAssistantRequest
		assert.NoError(t, json.Unmarshal(req.Data, &run))
		assert.True(t, run.Stream)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("Hello"))
		w.Write([]byte(" there"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	err := NewClient(srv.URL, "tok").StreamRun(context.Background(), domain.RunAssistantRequest{ThreadID: "t1", AssistantID: "a1"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", buf.String())
}
