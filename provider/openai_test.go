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

func newTestCompat(t *testing.T, providerType ProviderType, apiKey string, handler http.HandlerFunc) *CompatProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewCompatProvider(Config{
		Type:    providerType,
		BaseURL: server.URL + "/v1",
		APIKey:  apiKey,
		Model:   "test-model",
	})
	require.NoError(t, err)
	return p
}

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "test-model",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "  Hi Bob!  "}, "finish_reason": "stop"}]
}`

func TestCompatProviderImplementsInterface(t *testing.T) {
	var _ model.Provider = (*CompatProvider)(nil)
}

func TestCompatGenerate(t *testing.T) {
	var received map[string]any
	var auth string
	p := newTestCompat(t, ProviderTypeOpenRouter, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	})

	reply, err := p.Generate(context.Background(), model.Request{System: "sys", Prompt: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Bob!", reply)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "test-model", received["model"])
	assert.InDelta(t, 0.7, received["temperature"], 1e-9)
	assert.EqualValues(t, 2000, received["max_tokens"])

	messages := received["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
}

func TestCompatGenerateErrors(t *testing.T) {
	t.Run("key required but unset", func(t *testing.T) {
		p := newTestCompat(t, ProviderTypeOpenAI, "", func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		_, err := p.Generate(context.Background(), model.Request{Prompt: "hi"})
		assert.True(t, model.IsConfigurationError(err))
	})

	t.Run("lmstudio needs no key", func(t *testing.T) {
		p := newTestCompat(t, ProviderTypeLMStudio, "", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(completionBody))
		})
		reply, err := p.Generate(context.Background(), model.Request{Prompt: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "Hi Bob!", reply)
	})

	t.Run("model not set", func(t *testing.T) {
		p := newTestCompat(t, ProviderTypeOpenAI, "sk", func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		p.SetModel("")
		_, err := p.Generate(context.Background(), model.Request{Prompt: "hi"})
		assert.True(t, model.IsConfigurationError(err))
	})

	t.Run("server error keeps status", func(t *testing.T) {
		p := newTestCompat(t, ProviderTypeOpenAI, "sk", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
		})
		_, err := p.Generate(context.Background(), model.Request{Prompt: "hi"})
		var reqErr *model.RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
		assert.True(t, reqErr.Retryable())
	})

	t.Run("empty choices", func(t *testing.T) {
		p := newTestCompat(t, ProviderTypeOpenAI, "sk", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`))
		})
		_, err := p.Generate(context.Background(), model.Request{Prompt: "hi"})
		var fmtErr *model.ResponseFormatError
		assert.ErrorAs(t, err, &fmtErr)
	})
}

func TestCompatGenerateStream(t *testing.T) {
	var received map[string]any
	p := newTestCompat(t, ProviderTypeOpenRouter, "sk-test", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &received))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n" +
				"data: not-json\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n" +
				"data: [DONE]\n\n"))
	})

	stream, err := p.GenerateStream(context.Background(), model.Request{Prompt: "hi"})
	require.NoError(t, err)
	text, err := Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, true, received["stream"])
	assert.Equal(t, "test-model", received["model"])
}

func TestCompatGenerateStreamStatusError(t *testing.T) {
	p := newTestCompat(t, ProviderTypeOpenRouter, "sk", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	_, err := p.GenerateStream(context.Background(), model.Request{Prompt: "hi"})
	var reqErr *model.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	assert.Equal(t, "unauthorized", reqErr.Body)
}

const modelsBody = `{"object":"list","data":[
  {"id":"whisper-1","object":"model","created":1,"owned_by":"openai"},
  {"id":"gpt-4o","object":"model","created":1,"owned_by":"openai"},
  {"id":"gpt-3.5-turbo","object":"model","created":1,"owned_by":"openai"}
]}`

func TestCompatListModels(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(modelsBody))
	}

	t.Run("openai filters and sorts", func(t *testing.T) {
		p := newTestCompat(t, ProviderTypeOpenAI, "sk", handler)
		assert.Equal(t, []string{"gpt-3.5-turbo", "gpt-4o"}, p.ListModels(context.Background()))
	})

	t.Run("lmstudio keeps server order", func(t *testing.T) {
		p := newTestCompat(t, ProviderTypeLMStudio, "", handler)
		assert.Equal(t, []string{"whisper-1", "gpt-4o", "gpt-3.5-turbo"}, p.ListModels(context.Background()))
	})

	t.Run("missing key yields empty list", func(t *testing.T) {
		p := newTestCompat(t, ProviderTypeOpenRouter, "", func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		assert.Empty(t, p.ListModels(context.Background()))
	})

	t.Run("failure yields empty list", func(t *testing.T) {
		p := newTestCompat(t, ProviderTypeOpenAI, "sk", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		})
		models := p.ListModels(context.Background())
		assert.NotNil(t, models)
		assert.Empty(t, models)
	})
}
