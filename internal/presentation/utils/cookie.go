package utils

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/hilthontt/parley/internal/infrastructure/identity"
)

const (
	CookieNameClientID = "client_id"
	HeaderClientID     = "X-Client-ID"

	persistentCookieTTL = 30 * 24 * time.Hour
	maxClientIDLength   = 64
)

// GetOrCreateClientID returns the caller's client id, minting one and setting
// the cookie when the request carries none.
func GetOrCreateClientID(w http.ResponseWriter, r *http.Request, persistent bool) string {
	if id := GetClientIDFromRequest(r); id != "" {
		return id
	}
	newID := identity.NewClientID()
	SetClientIDCookie(newID, persistent, w)
	return newID
}

func GetClientIDFromRequest(r *http.Request) string {
	// First try header (tab scoped id kept by the page)
	if id := sanitize(r.Header.Get(HeaderClientID)); id != "" {
		return id
	}

	// Fall back to cookie
	return GetClientIDFromCookie(r)
}

func GetClientIDFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieNameClientID)
	if err != nil {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}
	return sanitize(string(decoded))
}

// SetClientIDCookie stores id in a session cookie, or a 30 day cookie when
// persistent is set.
func SetClientIDCookie(id string, persistent bool, w http.ResponseWriter) {
	cookie := &http.Cookie{
		Name:     CookieNameClientID,
		Value:    base64.StdEncoding.EncodeToString([]byte(id)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if persistent {
		cookie.Expires = time.Now().Add(persistentCookieTTL)
		cookie.MaxAge = int(persistentCookieTTL.Seconds())
	}
	http.SetCookie(w, cookie)
}

func sanitize(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > maxClientIDLength {
		return ""
	}
	return id
}
