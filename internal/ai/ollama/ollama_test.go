package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{}"}}`))
	}))
	defer srv.Close()

	out, err := New(srv.URL, time.Second).Chat(context.Background(), ChatRequest{Model: "llama3", Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	assert.Equal(t, "json", got["format"])
	assert.Equal(t, false, got["stream"])
	assert.Len(t, got["messages"], 1)
}

func TestChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Chat(context.Background(), ChatRequest{Prompt: "p"})
	assert.EqualError(t, err, "ollama status 502")
}
