package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 1000, req.MaxTokens)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[0].Content, "from English to Japanese")
		assert.Equal(t, "Hello", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" こんにちは \n"}}]}`))
	}))
	defer srv.Close()

	p := &OpenAIProvider{BaseURL: srv.URL, APIKey: "secret", Model: "gpt-test", HTTPClient: srv.Client()}
	got, err := p.Translate(context.Background(), "Hello", "en", "ja")
	require.NoError(t, err)
	assert.Equal(t, "こんにちは", got)
}

func TestOpenAIProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non 2xx", http.StatusTooManyRequests, `{"error":"slow down"}`},
		{"malformed", http.StatusOK, `{"choices":`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := &OpenAIProvider{BaseURL: srv.URL, APIKey: "k", HTTPClient: srv.Client()}
			_, err := p.Translate(context.Background(), "Hello", "en", "ja")
			assert.Error(t, err)
		})
	}
}

func TestLibreProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/translate", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Hello", body["q"])
		assert.Equal(t, "en", body["source"])
		assert.Equal(t, "pt", body["target"])

		w.Write([]byte(`{"translatedText":"Olá"}`))
	}))
	defer srv.Close()

	p := &LibreProvider{BaseURL: srv.URL, HTTPClient: srv.Client()}
	got, err := p.Translate(context.Background(), "Hello", "en-US", "pt-BR")
	require.NoError(t, err)
	assert.Equal(t, "Olá", got)
}

func TestMyMemoryProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get", r.URL.Path)
		assert.Equal(t, "Hello", r.URL.Query().Get("q"))
		assert.Equal(t, "en|es", r.URL.Query().Get("langpair"))
		w.Write([]byte(`{"responseData":{"translatedText":"Hola"},"responseStatus":200}`))
	}))
	defer srv.Close()

	p := &MyMemoryProvider{BaseURL: srv.URL, HTTPClient: srv.Client()}
	got, err := p.Translate(context.Background(), "Hello", "en", "es")
	require.NoError(t, err)
	assert.Equal(t, "Hola", got)
}

func TestMyMemoryProviderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"responseData":{"translatedText":"QUOTA EXCEEDED"},"responseStatus":"403"}`))
	}))
	defer srv.Close()

	p := &MyMemoryProvider{BaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := p.Translate(context.Background(), "Hello", "en", "es")
	assert.Error(t, err)
}

func TestGoogleProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate_a/single", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "gtx", q.Get("client"))
		assert.Equal(t, "en", q.Get("sl"))
		assert.Equal(t, "de", q.Get("tl"))
		w.Write([]byte(`[[["Hallo ","Hello ",null,null,1],["Welt","world",null,null,1]],null,"en"]`))
	}))
	defer srv.Close()

	p := &GoogleProvider{BaseURL: srv.URL, HTTPClient: srv.Client()}
	got, err := p.Translate(context.Background(), "Hello world", "en", "de")
	require.NoError(t, err)
	assert.Equal(t, "Hallo Welt", got)
}

func TestGoogleProviderMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["unexpected"]`))
	}))
	defer srv.Close()

	p := &GoogleProvider{BaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := p.Translate(context.Background(), "Hello", "en", "de")
	assert.Error(t, err)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		{"日本語", 4, "日..."}, // 3-byte runes: byte 4 is inside the second rune
		{"日本語", 6, "日本..."},
		{"é", 1, "..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		assert.Equal(t, tt.want, got, "truncate(%q, %d)", tt.in, tt.n)
		assert.True(t, utf8.ValidString(got))
	}
}
