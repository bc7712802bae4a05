// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/samber/oops"

	"github.com/fellowhub/fellowhub/internal/auth"
	"github.com/fellowhub/fellowhub/pkg/errutil"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

type errorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type kindResponse struct {
	status  int
	code    string
	message string
}

// kindResponses maps each failure kind onto its wire form. Only
// KindInvalidInput passes the error text through.
var kindResponses = map[auth.Kind]kindResponse{
	auth.KindInvalidInput:          {http.StatusBadRequest, "INVALID_INPUT", ""},
	auth.KindInvalidOrExpiredToken: {http.StatusBadRequest, "INVALID_OR_EXPIRED_TOKEN", "invalid or expired token"},
	auth.KindInvalidCredentials:    {http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"},
	auth.KindUnauthorized:          {http.StatusUnauthorized, "UNAUTHORIZED", "authentication required"},
	auth.KindEmailNotVerified:      {http.StatusForbidden, "EMAIL_NOT_VERIFIED", "email address not verified"},
	auth.KindEmailAlreadyInUse:     {http.StatusConflict, "EMAIL_ALREADY_IN_USE", "email already in use"},
	auth.KindAccountLocked:         {http.StatusLocked, "ACCOUNT_LOCKED", "account temporarily locked"},
	auth.KindTooManyAttempts:       {http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "too many failed attempts, try again later"},
	auth.KindInternal:              {http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"},
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: apiError{Code: code, Message: message}})
}

// writeServiceError renders err by kind. Internal failures are logged with
// their oops context and never described to the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	kind := auth.KindOf(err)
	resp, ok := kindResponses[kind]
	if !ok {
		resp = kindResponses[auth.KindInternal]
	}
	message := resp.message
	if kind == auth.KindInvalidInput {
		message = err.Error()
	}
	if kind == auth.KindInternal {
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", oops.With("operation", operation).Wrap(err))
	}
	writeError(w, resp.status, resp.code, message)
}

// decodeBody reads a JSON object into dst. An empty body leaves dst zeroed.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeBadBody(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "INVALID_INPUT", "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "INVALID_INPUT", "malformed JSON body")
}
