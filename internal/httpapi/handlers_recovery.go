// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package httpapi

import (
	"net/http"

	"github.com/fellowhub/fellowhub/internal/auth"
	"github.com/fellowhub/fellowhub/pkg/errutil"
)

// Responses that must not reveal whether an account exists.
const (
	forgotPasswordMessage = "If an account exists for that email, a password reset link has been sent."
	resendMessage         = "If that email belongs to an unverified account, a new verification link has been sent."
)

type emailRequest struct {
	Email string `json:"email"`
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), req.Email, clientIP(r)); err != nil {
		errutil.LogErrorContext(r.Context(), h.logger, "forgot password failed", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": forgotPasswordMessage})
}

func (h *Handler) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	if err := h.svc.ResendVerification(r.Context(), req.Email); err != nil {
		errutil.LogErrorContext(r.Context(), h.logger, "resend verification failed", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": resendMessage})
}

type resetPasswordRequest struct {
	UserID      string `json:"user_id"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// resetPassword also clears the caller's cookies: every session of the user
// is revoked by a successful reset.
func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	err := h.svc.ResetPassword(r.Context(), auth.ResetPasswordInput{
		UserID:      req.UserID,
		Token:       req.Token,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		h.writeServiceError(w, r, "reset_password", err)
		return
	}

	h.clearTokenCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

type verifyEmailRequest struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeBadBody(w, err)
		return
	}

	if err := h.svc.VerifyEmail(r.Context(), req.UserID, req.Token); err != nil {
		h.writeServiceError(w, r, "verify_email", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}
