// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/fellowhub/fellowhub/internal/auth"
)

// Cookie names.
const (
	AccessCookie  = "fh_auth"
	RefreshCookie = "fh_refresh"
)

// CookieConfig sets the attributes of the token cookies.
type CookieConfig struct {
	// Secure must be true whenever the site is served over HTTPS.
	Secure bool
	Domain string
}

func (h *Handler) tokenCookie(name, value string, expiresAt time.Time) *http.Cookie {
	maxAge := int(expiresAt.Sub(h.now()).Seconds())
	if maxAge < 1 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cfg.Cookies.Domain,
		MaxAge:   maxAge,
		Secure:   h.cfg.Cookies.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// setTokenCookies stores both tokens. The refresh cookie lives as long as
// the refresh token, which already reflects remember-me.
func (h *Handler) setTokenCookies(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, h.tokenCookie(AccessCookie, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, h.tokenCookie(RefreshCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (h *Handler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := h.tokenCookie(name, "", time.Time{})
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
