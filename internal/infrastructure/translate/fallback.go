package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// LibreProvider calls a LibreTranslate instance.
type LibreProvider struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (p *LibreProvider) Name() string { return "libretranslate" }

func (p *LibreProvider) Translate(ctx context.Context, text, from, to string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"q":      text,
		"source": baseCode(from),
		"target": baseCode(to),
		"format": "text",
	})
	if err != nil {
		return "", fmt.Errorf("libretranslate: marshal request: %w", err)
	}

	u := strings.TrimRight(p.BaseURL, "/") + "/translate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("libretranslate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := doJSON(p.HTTPClient, req, &out); err != nil {
		return "", fmt.Errorf("libretranslate: %w", err)
	}
	if strings.TrimSpace(out.TranslatedText) == "" {
		return "", fmt.Errorf("libretranslate: %w", ErrEmptyTranslation)
	}
	return strings.TrimSpace(out.TranslatedText), nil
}

// MyMemoryProvider calls the MyMemory public API.
type MyMemoryProvider struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (p *MyMemoryProvider) Name() string { return "mymemory" }

func (p *MyMemoryProvider) Translate(ctx context.Context, text, from, to string) (string, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", from+"|"+to)

	u := strings.TrimRight(p.BaseURL, "/") + "/get?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("mymemory: build request: %w", err)
	}

	var out struct {
		ResponseData struct {
			TranslatedText string `json:"translatedText"`
		} `json:"responseData"`
		// The API reports the status as a number or a string.
		ResponseStatus json.RawMessage `json:"responseStatus"`
	}
	if err := doJSON(p.HTTPClient, req, &out); err != nil {
		return "", fmt.Errorf("mymemory: %w", err)
	}
	if status := strings.Trim(string(out.ResponseStatus), `"`); status != "" && status != "200" {
		return "", fmt.Errorf("mymemory: response status %s", status)
	}
	if strings.TrimSpace(out.ResponseData.TranslatedText) == "" {
		return "", fmt.Errorf("mymemory: %w", ErrEmptyTranslation)
	}
	return strings.TrimSpace(out.ResponseData.TranslatedText), nil
}

// GoogleProvider calls the keyless translate_a/single endpoint.
type GoogleProvider struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Translate(ctx context.Context, text, from, to string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", from)
	q.Set("tl", to)
	q.Set("dt", "t")
	q.Set("q", text)

	u := strings.TrimRight(p.BaseURL, "/") + "/translate_a/single?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("google: build request: %w", err)
	}

	var out []any
	if err := doJSON(p.HTTPClient, req, &out); err != nil {
		return "", fmt.Errorf("google: %w", err)
	}

	result, err := parseGoogleSegments(out)
	if err != nil {
		return "", fmt.Errorf("google: %w", err)
	}
	return result, nil
}

// parseGoogleSegments joins the translated sentence fragments found in the
// first element of the response: [[["translated","original",...],...],...].
func parseGoogleSegments(out []any) (string, error) {
	if len(out) == 0 {
		return "", ErrEmptyTranslation
	}
	segments, ok := out[0].([]any)
	if !ok {
		return "", fmt.Errorf("unexpected response shape")
	}

	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}

	result := strings.TrimSpace(b.String())
	if result == "" {
		return "", ErrEmptyTranslation
	}
	return result, nil
}
