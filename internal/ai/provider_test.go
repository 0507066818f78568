package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s Stream) ([]string, error) {
	t.Helper()
	defer s.Close()
	var out []string
	for {
		d, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
}

func TestOpenAIProvider_StreamChat(t *testing.T) {
	var got struct {
		Model    string    `json:"model"`
		Stream   bool      `json:"stream"`
		Messages []Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{"I'm ", "", "fine."} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "")
	s, err := p.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	deltas, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"I'm ", "fine."}, deltas)
	assert.Equal(t, "o4-mini", got.Model)
	assert.True(t, got.Stream)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}}, got.Messages)
}

func TestOpenAIProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "gpt-test")
	reply, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", reply)
}

func TestOpenAIProvider_StreamStartFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL, "")
	_, err := p.StreamChat(context.Background(), nil)
	require.Error(t, err)
}

func TestOllamaProvider_StreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"a"},"done":false}`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"b"},"done":true}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"ignored"},"done":false}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3:latest")
	s, err := p.StreamChat(context.Background(), nil)
	require.NoError(t, err)

	deltas, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, deltas)
}

func TestOllamaProvider_StreamErrorLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"error":"model crashed"}`)
	}))
	defer srv.Close()

	s, err := NewOllamaProvider(srv.URL, "").StreamChat(context.Background(), nil)
	require.NoError(t, err)

	deltas, err := drain(t, s)
	assert.Equal(t, []string{"a"}, deltas)
	assert.EqualError(t, err, "model crashed")
}

func TestOllamaProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"pong"}}`)
	}))
	defer srv.Close()

	reply, err := NewOllamaProvider(srv.URL, "").Chat(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)
}

func TestOpenRouterProvider_StreamChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "app", r.Header.Get("X-Title"))
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"y\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "key", "openrouter/auto", "", "app")
	s, err := p.StreamChat(context.Background(), nil)
	require.NoError(t, err)

	deltas, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, deltas)
}

func TestOpenRouterProvider_RequiresKey(t *testing.T) {
	p := NewOpenRouterProvider("", "", "m", "", "")
	_, err := p.StreamChat(context.Background(), nil)
	assert.EqualError(t, err, "openrouter: api key is required")
	_, err = p.Chat(context.Background(), nil)
	assert.EqualError(t, err, "openrouter: api key is required")
}

func TestOpenRouterProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "key", "m", "", "")
	_, err := p.StreamChat(context.Background(), nil)
	assert.EqualError(t, err, "openrouter: rate limited")
}

func TestRegistry_Get(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Ollama ", func(ctx context.Context, model string) (Provider, error) {
		return NewOllamaProvider("", model), nil
	})

	p, err := reg.Get(context.Background(), "OLLAMA", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", p.(*OllamaProvider).Model)
	assert.Equal(t, []string{"ollama"}, reg.Names())

	_, err = reg.Get(context.Background(), "nope", "")
	assert.EqualError(t, err, "unknown ai provider: nope")
}
