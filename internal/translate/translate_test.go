package translate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackzampolin/clickread/internal/book"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func googleServer(t *testing.T, handler func(w http.ResponseWriter, form url.Values)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		handler(w, r.PostForm)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeTranslation(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]any{
			"translations": []map[string]string{{"translatedText": text}},
		},
	})
}

func TestGoogleTranslateSuccess(t *testing.T) {
	var got url.Values
	server := googleServer(t, func(w http.ResponseWriter, form url.Values) {
		got = form
		writeTranslation(w, "貓")
	})

	client := NewGoogleClient(GoogleConfig{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Target:  "zh-TW",
		Logger:  quietLogger(),
	})

	assert.Equal(t, "貓", client.Translate(context.Background(), "cat"))
	assert.Equal(t, "cat", got.Get("q"))
	assert.Equal(t, "zh-TW", got.Get("target"))
	assert.Equal(t, "text", got.Get("format"))
	assert.Equal(t, "test-key", got.Get("key"))
}

func TestGoogleTranslateFailSoft(t *testing.T) {
	tests := []struct {
		name    string
		handler func(w http.ResponseWriter, form url.Values)
	}{
		{"bad request", func(w http.ResponseWriter, _ url.Values) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": {"message": "Invalid Value"}}`))
		}},
		{"missing translation", func(w http.ResponseWriter, _ url.Values) {
			_, _ = w.Write([]byte(`{"data": {"translations": []}}`))
		}},
		{"not json", func(w http.ResponseWriter, _ url.Values) {
			_, _ = w.Write([]byte(`<html>oops</html>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := googleServer(t, tt.handler)
			client := NewGoogleClient(GoogleConfig{
				APIKey:     "k",
				BaseURL:    server.URL,
				MaxRetries: 2,
				RetryDelay: time.Millisecond,
				Logger:     quietLogger(),
			})
			assert.Equal(t, "the cat sat", client.Translate(context.Background(), "the cat sat"), "source text on failure")
		})
	}
}

func TestGoogleTranslateTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client := NewGoogleClient(GoogleConfig{
		APIKey:     "k",
		BaseURL:    baseURL,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Logger:     quietLogger(),
	})
	assert.Equal(t, "cat", client.Translate(context.Background(), "cat"))
}

func TestGoogleTranslateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := googleServer(t, func(w http.ResponseWriter, _ url.Values) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			writeTranslation(w, "狗")
		}
	})

	client := NewGoogleClient(GoogleConfig{
		APIKey:     "k",
		BaseURL:    server.URL,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Limiter:    NewRateLimiter(6000),
		Logger:     quietLogger(),
	})

	out, err := client.TranslateText(context.Background(), "dog")
	require.NoError(t, err)
	assert.Equal(t, "狗", out)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGoogleTranslateDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := googleServer(t, func(w http.ResponseWriter, _ url.Values) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	client := NewGoogleClient(GoogleConfig{
		APIKey:     "k",
		BaseURL:    server.URL,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Logger:     quietLogger(),
	})

	_, err := client.TranslateText(context.Background(), "dog")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.EqualValues(t, 1, calls.Load(), "client errors are not retried")
}

func TestGoogleTranslateEmptyText(t *testing.T) {
	client := NewGoogleClient(GoogleConfig{APIKey: "k", BaseURL: "http://127.0.0.1:0"})
	out, err := client.TranslateText(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "  ", out)
}

func TestOpenAITranslate(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &payload))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": " 月亮 "}}]
}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		Target:  "zh-TW",
		BaseURL: server.URL,
		Logger:  quietLogger(),
	})

	assert.Equal(t, "月亮", client.Translate(context.Background(), "moon"))
	assert.Equal(t, "gpt-4o-mini", payload["model"])
	messages, _ := payload["messages"].([]any)
	assert.Len(t, messages, 2, "system and user messages")
}

func TestOpenAITranslateFailSoft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{
		APIKey:     "bad",
		BaseURL:    server.URL,
		MaxRetries: 1,
		Logger:     quietLogger(),
	})

	assert.Equal(t, "moon", client.Translate(context.Background(), "moon"))
	_, err := client.TranslateText(context.Background(), "moon")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{"none", Config{Provider: "none"}, ProviderNone, false},
		{"empty provider", Config{}, ProviderNone, false},
		{"google without key", Config{Provider: "google"}, ProviderNone, false},
		{"google", Config{Provider: "google", Google: GoogleConfig{APIKey: "k"}}, ProviderGoogle, false},
		{"openai", Config{Provider: "OpenAI", OpenAI: OpenAIConfig{APIKey: "k"}}, ProviderOpenAI, false},
		{"unknown", Config{Provider: "deepl"}, "", true},
		{"bad target", Config{Provider: "none", Target: "not a language!"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Logger = quietLogger()
			client, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, client.Name())
		})
	}
}

func TestLimiterStatus(t *testing.T) {
	assert.Nil(t, LimiterStatus(Noop{}), "noop client has no limiter")

	client, err := New(Config{Provider: "google", RateLimit: 30, Google: GoogleConfig{APIKey: "k"}, Logger: quietLogger()})
	require.NoError(t, err)
	st := LimiterStatus(client)
	require.NotNil(t, st, "google client reports its limiter")
	assert.Equal(t, 30, st.TokensLimit)
	assert.Equal(t, 30, st.TokensAvailable, "full bucket")

	assert.Nil(t, LimiterStatus(NewOpenAIClient(OpenAIConfig{APIKey: "k"})), "client built without a limiter")
}

func TestRegistryReload(t *testing.T) {
	reg := NewRegistry(quietLogger())
	require.Equal(t, ProviderNone, reg.Client().Name(), "noop client before reload")

	require.NoError(t, reg.Reload(Config{Provider: "google", Google: GoogleConfig{APIKey: "k"}}))
	assert.Equal(t, ProviderGoogle, reg.Client().Name())

	assert.Error(t, reg.Reload(Config{Provider: "deepl"}))
	assert.Equal(t, ProviderGoogle, reg.Client().Name(), "failed reload keeps the previous client")

	reg.Set(nil)
	require.NotNil(t, reg.Client())
	assert.Equal(t, ProviderNone, reg.Client().Name(), "Set(nil) installs the noop client")
}

func TestNormalizeTarget(t *testing.T) {
	got, err := NormalizeTarget("zh-tw")
	require.NoError(t, err)
	assert.Equal(t, "zh-TW", got)

	got, err = NormalizeTarget("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTarget, got)
}

func TestRateLimiterWait(t *testing.T) {
	rl := NewRateLimiter(60)
	for i := 0; i < 60; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.DeadlineExceeded, "empty bucket")
	assert.EqualValues(t, 60, rl.Status().TotalConsumed)
}

type fakeClient struct {
	fail map[string]bool
}

func (f fakeClient) Name() string { return "fake" }

func (f fakeClient) Translate(ctx context.Context, text string) string {
	out, err := f.TranslateText(ctx, text)
	if err != nil {
		return text
	}
	return out
}

func (f fakeClient) TranslateText(_ context.Context, text string) (string, error) {
	if f.fail[text] {
		return "", errors.New("boom")
	}
	return "<" + text + ">", nil
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	translated := write("a.json", `[
  {"Text": "cat", "Category": "Word", "Image": "p1", "X1": 0, "Y1": 0, "X2": 1, "Y2": 1, "id": "1"},
  {"text": "dog", "category": "Word", "image": "p1", "X1": 0, "Y1": 0, "X2": 1, "Y2": 1, "中文翻譯": "<dog>", "id": "2"},
  {"Text": "bird", "Category": "Word", "Image": "p1", "X1": 0, "Y1": 0, "X2": 1, "Y2": 1, "id": "3"}
]`)
	unchanged := write("b.json", `[
  {"Text": "sun", "Category": "Word", "Image": "p1", "X1": 0, "Y1": 0, "X2": 1, "Y2": 1, "中文翻譯": "<sun>"}
]`)
	write("c.json", `{"not": "a book"}`)
	write("notes.txt", "ignored")

	before, err := os.ReadFile(unchanged)
	require.NoError(t, err)

	results, err := Batch(context.Background(), dir, fakeClient{fail: map[string]bool{"bird": true}}, BatchOptions{}, quietLogger())
	require.NoError(t, err)
	require.Len(t, results, 3)

	a := results[0]
	assert.True(t, a.Saved)
	assert.Equal(t, 1, a.Translated)
	assert.Equal(t, 1, a.Failed)
	assert.Equal(t, 3, a.Regions)
	b, err := book.Load(translated, quietLogger())
	require.NoError(t, err)
	els := b.Store.Elements()
	assert.Equal(t, "<cat>", els[0].Translation)
	assert.Empty(t, els[2].Translation, "failed translation must not store the source text")

	assert.False(t, results[1].Saved, "unchanged book must not be saved")
	assert.Zero(t, results[1].Translated)
	after, err := os.ReadFile(unchanged)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "unchanged book was rewritten")

	assert.NotEmpty(t, results[2].Error, "c.json is skipped with an error")
	assert.Equal(t, "c.json", filepath.Base(results[2].Path))
}

func TestBatchSkipTranslated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"Text": "cat", "Category": "Word", "Image": "p1", "X1": 0, "Y1": 0, "X2": 1, "Y2": 1, "中文翻譯": "貓"}
]`), 0o644))

	results, err := Batch(context.Background(), dir, fakeClient{}, BatchOptions{SkipTranslated: true}, quietLogger())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Translated)
	assert.False(t, results[0].Saved)
}

func TestBatchMissingDir(t *testing.T) {
	_, err := Batch(context.Background(), filepath.Join(t.TempDir(), "nope"), Noop{}, BatchOptions{}, quietLogger())
	assert.Error(t, err)
}
