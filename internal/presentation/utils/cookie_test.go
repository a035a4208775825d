package utils

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateClientIDPrefersHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderClientID, "tab-1")
	r.AddCookie(&http.Cookie{Name: CookieNameClientID, Value: base64.StdEncoding.EncodeToString([]byte("cookie-1"))})
	w := httptest.NewRecorder()

	assert.Equal(t, "tab-1", GetOrCreateClientID(w, r, false))
	assert.Empty(t, w.Result().Cookies())
}

func TestGetOrCreateClientIDReadsCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieNameClientID, Value: base64.StdEncoding.EncodeToString([]byte("cookie-1"))})
	w := httptest.NewRecorder()

	assert.Equal(t, "cookie-1", GetOrCreateClientID(w, r, false))
}

func TestGetOrCreateClientIDMintsSessionCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	id := GetOrCreateClientID(w, r, false)
	require.NotEmpty(t, id)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieNameClientID, cookies[0].Name)
	assert.True(t, cookies[0].Expires.IsZero(), "session cookie must not expire")
	assert.Zero(t, cookies[0].MaxAge)

	decoded, err := base64.StdEncoding.DecodeString(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, id, string(decoded))
}

func TestGetOrCreateClientIDPersistentCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	GetOrCreateClientID(w, r, true)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.False(t, cookies[0].Expires.IsZero())
	assert.Equal(t, int(persistentCookieTTL.Seconds()), cookies[0].MaxAge)
}

func TestOversizedClientIDIsIgnored(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderClientID, strings.Repeat("x", maxClientIDLength+1))
	w := httptest.NewRecorder()

	id := GetOrCreateClientID(w, r, false)
	assert.NotEqual(t, strings.Repeat("x", maxClientIDLength+1), id)
	assert.Len(t, w.Result().Cookies(), 1)
}
