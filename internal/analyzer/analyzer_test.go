package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/travel-extract/internal/cache"
	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

func writeCompletion(w http.ResponseWriter, content string) {
	resp := openai.ChatCompletionResponse{
		ID:      "chatcmpl-123",
		Object:  "chat.completion",
		Created: 1677652288,
		Model:   DefaultModel,
		Choices: []openai.ChatCompletionChoice{
			{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: content,
				},
				FinishReason: openai.FinishReasonStop,
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeAPIError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error": {"message": "upstream trouble", "type": "server_error"}}`))
}

func newTestModel(t *testing.T, url string) *OpenAIModel {
	t.Helper()
	m, err := NewOpenAIModel(Config{
		APIKey:     "test-key",
		BaseURL:    url,
		Timeout:    2 * time.Second,
		RetryDelay: time.Millisecond,
		Referer:    "https://travel.example.com",
		Title:      "travel-extract",
	}, nil)
	require.NoError(t, err)
	return m
}

func TestGenerateSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://travel.example.com", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "travel-extract", r.Header.Get("X-Title"))

		var req openai.ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.False(t, req.Stream)
		if assert.Len(t, req.Messages, 1) {
			assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[0].Role)
			assert.Equal(t, "extract this", req.Messages[0].Content)
		}

		writeCompletion(w, `{"documentType":"flight"}`)
	}))
	defer server.Close()

	reply, err := newTestModel(t, server.URL).Generate(context.Background(), "extract this")
	require.NoError(t, err)
	assert.Equal(t, `{"documentType":"flight"}`, reply)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerateRetriesOnce(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
	}{
		{name: "5xx then ok", statuses: []int{http.StatusBadGateway, http.StatusOK}, wantCalls: 2},
		{name: "429 then ok", statuses: []int{http.StatusTooManyRequests, http.StatusOK}, wantCalls: 2},
		{name: "5xx twice", statuses: []int{http.StatusInternalServerError, http.StatusInternalServerError}, wantCalls: 2, wantErr: true},
		{name: "4xx is final", statuses: []int{http.StatusBadRequest}, wantCalls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				status := http.StatusOK
				if n < len(tt.statuses) {
					status = tt.statuses[n]
				}
				if status != http.StatusOK {
					writeAPIError(w, status)
					return
				}
				writeCompletion(w, "{}")
			}))
			defer server.Close()

			reply, err := newTestModel(t, server.URL).Generate(context.Background(), "p")
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, utils.KindUpstreamService, utils.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "{}", reply)
		})
	}
}

func TestGenerateNoChoicesIsFinal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestModel(t, server.URL).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindUpstreamService))
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerateCanceledContextIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeCompletion(w, "{}")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestModel(t, server.URL).Generate(ctx, "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.EqualValues(t, 0, calls.Load())
}

func TestNewOpenAIModelRequiresKey(t *testing.T) {
	_, err := NewOpenAIModel(Config{}, nil)
	assert.Error(t, err)
}

func TestCachedModel(t *testing.T) {
	var calls int
	replies := map[string]string{"a": `{"x":"1"}`, "blank": "  "}
	next := ModelFunc(func(ctx context.Context, p string) (string, error) {
		calls++
		if p == "boom" {
			return "", utils.NewUpstreamError("down", nil)
		}
		return replies[p], nil
	})

	m := NewCachedModel(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		reply, err := m.Generate(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, `{"x":"1"}`, reply)
	}
	assert.Equal(t, 1, calls)

	_, err := m.Generate(ctx, "boom")
	require.Error(t, err)
	_, err = m.Generate(ctx, "boom")
	require.Error(t, err)
	assert.Equal(t, 3, calls, "errors are not cached")

	_, _ = m.Generate(ctx, "blank")
	_, _ = m.Generate(ctx, "blank")
	assert.Equal(t, 5, calls, "blank replies are not cached")
}

func TestCachedModelSkipsRejectedReplies(t *testing.T) {
	replies := []string{"sorry, I cannot help", `{"Airline":"United Airlines"}`}
	var calls int
	next := ModelFunc(func(ctx context.Context, p string) (string, error) {
		reply := replies[calls]
		calls++
		return reply, nil
	})
	hasObject := func(reply string) bool { return strings.Contains(reply, "{") }

	m := NewCachedModel(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, hasObject, nil)
	ctx := context.Background()

	reply, err := m.Generate(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "sorry, I cannot help", reply)

	reply, err = m.Generate(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, `{"Airline":"United Airlines"}`, reply)
	assert.Equal(t, 2, calls, "rejected reply reaches the provider again")

	reply, err = m.Generate(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, `{"Airline":"United Airlines"}`, reply)
	assert.Equal(t, 2, calls)
}

func TestCachedModelForget(t *testing.T) {
	var calls int
	next := ModelFunc(func(ctx context.Context, p string) (string, error) {
		calls++
		return `{"x":"1"}`, nil
	})
	m := NewCachedModel(next, cache.NewMemoryCache(time.Minute, time.Minute), time.Minute, nil, nil)
	ctx := context.Background()

	_, _ = m.Generate(ctx, "p")
	_, _ = m.Generate(ctx, "p")
	assert.Equal(t, 1, calls)

	m.Forget("p")
	_, _ = m.Generate(ctx, "p")
	assert.Equal(t, 2, calls)
}
