package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/freightdoc/internal/retry"
)

func TestStripCodeBlock(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{}\n```", "{}"},
		{"  {\"a\": 1}  ", `{"a": 1}`},
		{"prefix ```json {} ```", "prefix ```json {} ```"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripCodeBlock(tt.in))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...", Truncate("abc", 2))
	assert.Equal(t, "é...", Truncate("éé", 1))
}

func TestAnthropicClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "be strict", req.System)
		assert.Equal(t, 500, req.MaxTokens)
		if assert.NotNil(t, req.Temperature) {
			assert.InDelta(t, 0.1, *req.Temperature, 1e-9)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"The rate is "},{"type":"text","text":"$3,575.00"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("key-1", "test-model", time.Second)
	c.url = srv.URL
	defer c.Close()

	out, err := c.Generate(context.Background(), Request{System: "be strict", Prompt: "q", Temperature: 0.1, MaxTokens: 500})
	require.NoError(t, err)
	assert.Equal(t, "The rate is $3,575.00", out)
	assert.Equal(t, "test-model", c.Model())
}

func TestAnthropicClientErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"error":{"type":"x","message":"y"}}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("k", "m", time.Second)
	c.url = srv.URL

	_, err := c.Generate(context.Background(), Request{Prompt: "q"})
	assert.True(t, retry.IsRetryable(err), "429 should be retryable: %v", err)

	status = http.StatusBadRequest
	_, err = c.Generate(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.False(t, retry.IsRetryable(err))
}

func TestOpenAIClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
		}
		if assert.NotNil(t, req.Temperature) {
			assert.Zero(t, *req.Temperature)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"rate\": 3575}"}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(OpenAIConfig{APIKey: "sk", BaseURL: srv.URL})
	require.NoError(t, err)
	defer c.Close()

	out, err := c.Generate(context.Background(), Request{System: "s", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, `{"rate": 3575}`, out)
	assert.Equal(t, DefaultOpenAIModel, c.Model())
}

func TestOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{})
	assert.Error(t, err)
}

type scriptedGenerator struct {
	errs  []error
	calls int
}

func (s *scriptedGenerator) Model() string { return "scripted" }

func (s *scriptedGenerator) Generate(context.Context, Request) (string, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "ok", nil
}

func TestInstrumentedRetriesAndRecords(t *testing.T) {
	inner := &scriptedGenerator{errs: []error{&retry.RetryableError{StatusCode: 529}, nil}}
	g := NewInstrumented(inner, 0, nil)
	g.wait = func(int) time.Duration { return 0 }

	out, err := g.Generate(context.Background(), Request{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, inner.calls)

	snap := g.Stats()
	assert.Equal(t, "scripted", snap.Model)
	assert.Equal(t, 1, snap.Calls)
	assert.Zero(t, snap.Failures)
}

func TestInstrumentedPermanentFailure(t *testing.T) {
	inner := &scriptedGenerator{errs: []error{errors.New("bad request")}}
	g := NewInstrumented(inner, 10, nil)

	_, err := g.Generate(context.Background(), Request{Prompt: "q"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, g.Stats().Failures)
}

func TestInstrumentedHonorsCancelledContext(t *testing.T) {
	g := NewInstrumented(&scriptedGenerator{}, 0.001, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, Request{Prompt: "q"})
	assert.Error(t, err)
}
