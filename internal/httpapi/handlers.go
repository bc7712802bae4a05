// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/fellowhub/fellowhub/internal/auth"
)

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	RememberMe       bool      `json:"remember_me"`
}

func newTokenResponse(pair auth.TokenPair, rememberMe bool) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		RememberMe:       rememberMe,
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	view, err := h.svc.Signup(r.Context(), auth.SignupInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, r, "signup", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": view})
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type loginResponse struct {
	User auth.UserView `json:"user"`
	tokenResponse
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	res, err := h.svc.Login(r.Context(), auth.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
		RememberMe: req.RememberMe,
	})
	if err != nil {
		h.writeServiceError(w, r, "login", err)
		return
	}

	h.setTokenCookies(w, res.Tokens)
	writeJSON(w, http.StatusOK, loginResponse{
		User:          res.User,
		tokenResponse: newTokenResponse(res.Tokens, res.RememberMe),
	})
}

// logout revokes every session of the caller, or only the current one with
// ?scope=session.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	var err error
	if r.URL.Query().Get("scope") == "session" {
		err = h.svc.LogoutSession(r.Context(), identity)
	} else {
		tok, _ := r.Context().Value(accessTokenKey{}).(string)
		err = h.svc.Logout(r.Context(), tok)
	}
	if err != nil {
		h.writeServiceError(w, r, "logout", err)
		return
	}

	h.clearTokenCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	tok := cookieValue(r, RefreshCookie)
	if tok == "" {
		var req refreshRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeBadBody(w, err)
			return
		}
		tok = req.RefreshToken
	}
	if tok == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return
	}

	issued, err := h.svc.Refresh(r.Context(), tok, auth.SessionMeta{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if auth.IsKind(err, auth.KindUnauthorized) {
			h.clearTokenCookies(w)
		}
		h.writeServiceError(w, r, "refresh", err)
		return
	}

	h.setTokenCookies(w, issued.Tokens)
	writeJSON(w, http.StatusOK, newTokenResponse(issued.Tokens, issued.Session.RememberMe))
}

type sessionResponse struct {
	ID         string    `json:"id"`
	Device     string    `json:"device"`
	ExpiresAt  time.Time `json:"expires_at"`
	RememberMe bool      `json:"remember_me"`
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"user": identity.User.View(),
		"session": sessionResponse{
			ID:         identity.Session.ID.String(),
			Device:     identity.Session.Device,
			ExpiresAt:  identity.Session.ExpiresAt,
			RememberMe: identity.Session.RememberMe,
		},
	})
}
