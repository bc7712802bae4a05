// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fellowhub/fellowhub/internal/auth"
	"github.com/fellowhub/fellowhub/internal/auth/authtest"
	"github.com/fellowhub/fellowhub/internal/httpapi"
	"github.com/fellowhub/fellowhub/internal/observability"
	"github.com/fellowhub/fellowhub/pkg/errutil"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct horse battery"
)

type apiFixture struct {
	h       *authtest.Harness
	handler *httpapi.Handler
	routes  http.Handler
	metrics *observability.Metrics
}

func newFixture(t *testing.T, opts ...authtest.HarnessOption) *apiFixture {
	t.Helper()
	h := authtest.NewHarness(t, opts...)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	handler := httpapi.NewHandler(h.Service, httpapi.Config{Cookies: httpapi.CookieConfig{Secure: true}},
		httpapi.WithClock(h.Clock.Now),
		httpapi.WithMetrics(metrics))
	return &apiFixture{h: h, handler: handler, routes: handler.Routes(), metrics: metrics}
}

type request struct {
	method  string
	path    string
	body    any
	cookies []*http.Cookie
	bearer  string
}

func (f *apiFixture) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	switch b := req.body.(type) {
	case nil:
	case string:
		body.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&body).Encode(b))
	}
	r := httptest.NewRequest(req.method, req.path, &body)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/130.0")
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	if req.bearer != "" {
		r.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	rec := httptest.NewRecorder()
	f.routes.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())
	body := decode[errorResponse](t, rec)
	assert.Equal(t, code, body.Error.Code)
	return body
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

// login signs up (once) and logs in over HTTP, returning the token cookies.
func (f *apiFixture) login(t *testing.T, email string, rememberMe bool) []*http.Cookie {
	t.Helper()
	rec := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]any{
		"email": email, "password": testPassword, "remember_me": rememberMe,
	}})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	return rec.Result().Cookies()
}

func TestSignup(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, request{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
		"email": " Ada@Example.com ", "name": "Ada", "password": testPassword,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	body := decode[struct {
		User auth.UserView `json:"user"`
	}](t, rec)
	assert.Equal(t, testEmail, body.User.Email)
	assert.Equal(t, auth.RolePublic, body.User.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	t.Run("duplicate email", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
			"email": testEmail, "name": "Other", "password": testPassword,
		}})
		assertError(t, rec, http.StatusConflict, "EMAIL_ALREADY_IN_USE")
	})

	t.Run("short password", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
			"email": "grace@example.com", "name": "Grace", "password": "short",
		}})
		body := assertError(t, rec, http.StatusBadRequest, "INVALID_INPUT")
		assert.Contains(t, body.Error.Message, "at least 8 characters")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: "/auth/signup", body: `{"email":`})
		assertError(t, rec, http.StatusBadRequest, "INVALID_INPUT")
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: "/auth/signup", body: `{"email":"x@example.com","role":"admin"}`})
		assertError(t, rec, http.StatusBadRequest, "INVALID_INPUT")
	})
}

func TestLogin_SetsCookies(t *testing.T) {
	f := newFixture(t)
	f.h.SignUp(t, testEmail, testPassword)

	rec := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email": testEmail, "password": testPassword,
	}})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	cookies := cookiesByName(rec)
	access, refresh := cookies[httpapi.AccessCookie], cookies[httpapi.RefreshCookie]
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	for _, c := range []*http.Cookie{access, refresh} {
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
	}
	assert.Equal(t, int(auth.DefaultAccessTTL.Seconds()), access.MaxAge)
	assert.Equal(t, int(auth.DefaultRefreshTTL.Seconds()), refresh.MaxAge)

	body := decode[struct {
		User         auth.UserView `json:"user"`
		AccessToken  string        `json:"access_token"`
		RefreshToken string        `json:"refresh_token"`
		RememberMe   bool          `json:"remember_me"`
	}](t, rec)
	assert.Equal(t, access.Value, body.AccessToken)
	assert.Equal(t, refresh.Value, body.RefreshToken)
	assert.Equal(t, testEmail, body.User.Email)
	assert.False(t, body.RememberMe)

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("/auth/login", "200")), 0)
}

func TestLogin_RememberMeExtendsRefreshCookie(t *testing.T) {
	f := newFixture(t)
	f.h.SignUp(t, testEmail, testPassword)

	rec := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]any{
		"email": testEmail, "password": testPassword, "remember_me": true,
	}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int(auth.DefaultRememberMeTTL.Seconds()), cookiesByName(rec)[httpapi.RefreshCookie].MaxAge)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.h.SignUp(t, testEmail, testPassword)

	wrong := request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email": testEmail, "password": "wrong password",
	}}
	unknown := request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email": "nobody@example.com", "password": "wrong password",
	}}

	a := assertError(t, f.do(t, wrong), http.StatusUnauthorized, "INVALID_CREDENTIALS")
	b := assertError(t, f.do(t, unknown), http.StatusUnauthorized, "INVALID_CREDENTIALS")
	assert.Equal(t, a, b, "unknown and wrong-password logins must look the same")

	for range auth.DefaultLockoutThreshold - 1 {
		f.do(t, wrong)
	}
	assertError(t, f.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email": testEmail, "password": testPassword,
	}}), http.StatusLocked, "ACCOUNT_LOCKED")
}

func TestLogin_InternalErrorIsOpaque(t *testing.T) {
	f := newFixture(t)
	f.h.Store.FailOn("users.GetByEmail", errors.New("pq: relation users does not exist"))

	rec := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
		"email": testEmail, "password": testPassword,
	}})
	body := assertError(t, rec, http.StatusInternalServerError, "INTERNAL_ERROR")
	assert.Equal(t, "internal server error", body.Error.Message)
	errutil.AssertNoSecret(t, rec.Body.String(), "relation users")
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	f.h.SignUp(t, testEmail, testPassword)
	cookies := f.login(t, testEmail, false)

	t.Run("cookie", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodGet, path: "/auth/me", cookies: cookies})
		require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
		body := decode[struct {
			User    auth.UserView `json:"user"`
			Session struct {
				Device string `json:"device"`
			} `json:"session"`
		}](t, rec)
		assert.Equal(t, testEmail, body.User.Email)
		assert.Equal(t, "Firefox on Linux", body.Session.Device)
	})

	t.Run("bearer", func(t *testing.T) {
		var access string
		for _, c := range cookies {
			if c.Name == httpapi.AccessCookie {
				access = c.Value
			}
		}
		rec := f.do(t, request{method: http.MethodGet, path: "/auth/me", bearer: access})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		var refresh string
		for _, c := range cookies {
			if c.Name == httpapi.RefreshCookie {
				refresh = c.Value
			}
		}
		assertError(t, f.do(t, request{method: http.MethodGet, path: "/auth/me", bearer: refresh}),
			http.StatusUnauthorized, "UNAUTHORIZED")
	})

	t.Run("anonymous", func(t *testing.T) {
		assertError(t, f.do(t, request{method: http.MethodGet, path: "/auth/me"}), http.StatusUnauthorized, "UNAUTHORIZED")
	})

	t.Run("expired", func(t *testing.T) {
		f.h.Clock.Advance(auth.DefaultAccessTTL + time.Second)
		assertError(t, f.do(t, request{method: http.MethodGet, path: "/auth/me", cookies: cookies}),
			http.StatusUnauthorized, "UNAUTHORIZED")
	})
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	f.h.SignUp(t, testEmail, testPassword)
	cookies := f.login(t, testEmail, true)

	rec := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookies: cookies})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	rotated := cookiesByName(rec)
	require.NotNil(t, rotated[httpapi.RefreshCookie])
	assert.Equal(t, int(auth.DefaultRememberMeTTL.Seconds()), rotated[httpapi.RefreshCookie].MaxAge)
	assert.True(t, decode[struct {
		RememberMe bool `json:"remember_me"`
	}](t, rec).RememberMe)

	t.Run("old refresh token is spent", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookies: cookies})
		assertError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
		assert.Equal(t, -1, cookiesByName(rec)[httpapi.AccessCookie].MaxAge)
	})

	t.Run("body token", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: "/auth/refresh", body: map[string]string{
			"refresh_token": rotated[httpapi.RefreshCookie].Value,
		}})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		assertError(t, f.do(t, request{method: http.MethodPost, path: "/auth/refresh"}), http.StatusUnauthorized, "UNAUTHORIZED")
	})
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.h.SignUp(t, testEmail, testPassword)
	laptop := f.login(t, testEmail, false)
	phone := f.login(t, testEmail, false)

	t.Run("session scope keeps other devices", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: "/auth/logout?scope=session", cookies: phone})
		require.Equal(t, http.StatusNoContent, rec.Code)
		for _, c := range rec.Result().Cookies() {
			assert.Equal(t, -1, c.MaxAge, "cookie %s not cleared", c.Name)
		}

		assert.Equal(t, http.StatusUnauthorized, f.do(t, request{method: http.MethodGet, path: "/auth/me", cookies: phone}).Code)
		assert.Equal(t, http.StatusOK, f.do(t, request{method: http.MethodGet, path: "/auth/me", cookies: laptop}).Code)
	})

	t.Run("default scope revokes everything", func(t *testing.T) {
		desktop := f.login(t, testEmail, false)
		rec := f.do(t, request{method: http.MethodPost, path: "/auth/logout", cookies: laptop})
		require.Equal(t, http.StatusNoContent, rec.Code)

		assert.Equal(t, http.StatusUnauthorized, f.do(t, request{method: http.MethodGet, path: "/auth/me", cookies: laptop}).Code)
		assert.Equal(t, http.StatusUnauthorized, f.do(t, request{method: http.MethodGet, path: "/auth/me", cookies: desktop}).Code)
	})

	t.Run("requires auth", func(t *testing.T) {
		assertError(t, f.do(t, request{method: http.MethodPost, path: "/auth/logout"}), http.StatusUnauthorized, "UNAUTHORIZED")
	})
}

func TestPasswordRecovery(t *testing.T) {
	f := newFixture(t)
	user := f.h.SignUp(t, testEmail, testPassword)
	session := f.login(t, testEmail, false)

	known := f.do(t, request{method: http.MethodPost, path: "/auth/forgot-password", body: map[string]string{"email": testEmail}})
	unknown := f.do(t, request{method: http.MethodPost, path: "/auth/forgot-password", body: map[string]string{"email": "nobody@example.com"}})
	assert.Equal(t, http.StatusAccepted, known.Code)
	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	mail, ok := f.h.Mailer.Last("password_reset")
	require.True(t, ok)

	newPassword := "a brand new passphrase"
	rec := f.do(t, request{method: http.MethodPost, path: "/auth/reset-password", body: map[string]string{
		"user_id": user.ID, "token": mail.Token, "new_password": newPassword,
	}})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, f.do(t, request{method: http.MethodGet, path: "/auth/me", cookies: session}).Code,
		"reset must revoke existing sessions")

	t.Run("token is single use", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: "/auth/reset-password", body: map[string]string{
			"user_id": user.ID, "token": mail.Token, "new_password": "yet another passphrase",
		}})
		assertError(t, rec, http.StatusBadRequest, "INVALID_OR_EXPIRED_TOKEN")
	})

	t.Run("new password works", func(t *testing.T) {
		rec := f.do(t, request{method: http.MethodPost, path: "/auth/login", body: map[string]string{
			"email": testEmail, "password": newPassword,
		}})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestEmailVerification(t *testing.T) {
	f := newFixture(t)
	user := f.h.SignUp(t, testEmail, testPassword)

	resendKnown := f.do(t, request{method: http.MethodPost, path: "/auth/resend-verification", body: map[string]string{"email": testEmail}})
	resendUnknown := f.do(t, request{method: http.MethodPost, path: "/auth/resend-verification", body: map[string]string{"email": "nobody@example.com"}})
	assert.Equal(t, http.StatusAccepted, resendKnown.Code)
	assert.Equal(t, resendKnown.Body.String(), resendUnknown.Body.String())

	mail, ok := f.h.Mailer.Last("verification")
	require.True(t, ok)

	assertError(t, f.do(t, request{method: http.MethodPost, path: "/auth/verify-email", body: map[string]string{
		"user_id": user.ID, "token": "not-the-token",
	}}), http.StatusBadRequest, "INVALID_OR_EXPIRED_TOKEN")

	rec := f.do(t, request{method: http.MethodPost, path: "/auth/verify-email", body: map[string]string{
		"user_id": user.ID, "token": mail.Token,
	}})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	stored, ok := f.h.Store.User(1)
	require.True(t, ok)
	assert.True(t, stored.EmailVerified)
}

func TestRequireRole(t *testing.T) {
	f := newFixture(t)
	f.h.SignUp(t, testEmail, testPassword)
	f.h.SignUp(t, "root@example.com", testPassword)
	require.NoError(t, f.h.Service.ChangeRole(context.Background(), "root@example.com", auth.RoleAdmin))

	r := chi.NewRouter()
	r.With(f.handler.RequireAuth, httpapi.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin)).
		Get("/admin", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	call := func(cookies []*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assertError(t, call(f.login(t, testEmail, false)), http.StatusForbidden, "FORBIDDEN")
	assert.Equal(t, http.StatusOK, call(f.login(t, "root@example.com", false)).Code)
	assertError(t, call(nil), http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, request{method: http.MethodGet, path: "/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.RequestsTotal.WithLabelValues("unmatched", "404")), 0)
}
