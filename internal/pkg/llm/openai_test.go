package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, reply string, capture *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}

		choices := []map[string]interface{}{}
		if reply != "" {
			choices = append(choices, map[string]interface{}{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"model":   "test-model",
			"choices": choices,
		})
	}))
}

func TestOpenAIClient_Generate(t *testing.T) {
	var body map[string]interface{}
	srv := newTestServer(t, "Take fewer credits.", &body)
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model", MaxTokens: 64}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "test-model", client.Model())

	got, err := client.Generate(context.Background(), "be an advisor", "what now?")
	require.NoError(t, err)
	assert.Equal(t, "Take fewer credits.", got)

	assert.Equal(t, "test-model", body["model"])
	messages, ok := body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "what now?", messages[1].(map[string]interface{})["content"])
}

func TestOpenAIClient_EmptyCompletion(t *testing.T) {
	srv := newTestServer(t, "", nil)
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "s", "p")
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1"}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "s", "p")
	assert.Error(t, err)
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{}, zerolog.Nop())
	assert.Error(t, err)
}
