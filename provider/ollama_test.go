package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rustyorb/auto-chat/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOllama(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1"})
	require.NoError(t, err)
	return p
}

func TestOllamaProviderImplementsInterface(t *testing.T) {
	var _ model.Provider = (*OllamaProvider)(nil)
}

func TestOllamaGenerateRequestShape(t *testing.T) {
	var received map[string]any
	p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &received))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"  Hello there.  "},"done":true}`))
	})

	reply, err := p.Generate(context.Background(), model.Request{
		System:  "You are Alice.",
		History: []model.ChatMessage{{Role: "user", Content: "Hi Alice"}},
		Prompt:  "Hi Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", reply)

	assert.Equal(t, "llama3.1", received["model"])
	assert.Equal(t, false, received["stream"])
	messages, ok := received["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 3)
	first := messages[0].(map[string]any)
	last := messages[2].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "You are Alice.", first["content"])
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "Hi Alice", last["content"])
}

func TestOllamaGenerateErrors(t *testing.T) {
	t.Run("model not set", func(t *testing.T) {
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		p.SetModel("")
		_, err := p.Generate(context.Background(), model.Request{Prompt: "hi"})
		assert.True(t, model.IsConfigurationError(err))
	})

	t.Run("non-2xx status", func(t *testing.T) {
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
		})
		_, err := p.Generate(context.Background(), model.Request{Prompt: "hi"})
		var reqErr *model.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
		assert.Contains(t, reqErr.Body, "model not found")
		assert.False(t, reqErr.Retryable())
	})

	t.Run("missing message field", func(t *testing.T) {
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"done":true}`))
		})
		_, err := p.Generate(context.Background(), model.Request{Prompt: "hi"})
		var fmtErr *model.ResponseFormatError
		assert.ErrorAs(t, err, &fmtErr)
	})

	t.Run("server unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		p, err := NewOllamaProvider(Config{BaseURL: url, Model: "llama3.1"})
		require.NoError(t, err)
		_, err = p.Generate(context.Background(), model.Request{Prompt: "hi"})
		var reqErr *model.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, 0, reqErr.StatusCode)
		assert.True(t, reqErr.Retryable())
	})
}

func TestOllamaGenerateStream(t *testing.T) {
	var received map[string]any
	p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &received))
		_, _ = w.Write([]byte(
			`{"message":{"content":"Hel"},"done":false}` + "\n" +
				`not json` + "\n" +
				`{"message":{"content":"lo"},"done":true}` + "\n"))
	})

	stream, err := p.GenerateStream(context.Background(), model.Request{Prompt: "hi"})
	require.NoError(t, err)
	text, err := Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, true, received["stream"])
}

func TestOllamaListModels(t *testing.T) {
	t.Run("returns names", func(t *testing.T) {
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:latest"},{"name":"mistral:7b"}]}`))
		})
		assert.Equal(t, []string{"llama3.1:latest", "mistral:7b"}, p.ListModels(context.Background()))
	})

	t.Run("failure yields empty list", func(t *testing.T) {
		p := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		models := p.ListModels(context.Background())
		assert.NotNil(t, models)
		assert.Empty(t, models)
	})
}
