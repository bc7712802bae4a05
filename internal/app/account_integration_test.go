// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

//go:build integration

package app_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

const password = "correct horse battery"

var emailSeq atomic.Int64

func uniqueEmail() string {
	return fmt.Sprintf("fellow%d@example.com", emailSeq.Add(1))
}

// browser is an HTTP client with its own cookie jar.
type browser struct {
	client *http.Client
}

func newBrowser() *browser {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &browser{client: &http.Client{Jar: jar}}
}

func (b *browser) post(path string, body any) (int, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	resp, err := b.client.Post(env.server.URL+path, "application/json", &buf)
	Expect(err).NotTo(HaveOccurred())
	return decodeResponse(resp)
}

func (b *browser) get(path string) (int, map[string]any) {
	resp, err := b.client.Get(env.server.URL + path)
	Expect(err).NotTo(HaveOccurred())
	return decodeResponse(resp)
}

func decodeResponse(resp *http.Response) (int, map[string]any) {
	defer resp.Body.Close()
	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func signUp(b *browser, addr string) {
	status, _ := b.post("/auth/signup", map[string]string{"email": addr, "name": "Fellow", "password": password})
	Expect(status).To(Equal(http.StatusCreated))
}

func logIn(b *browser, addr, pw string) (int, map[string]any) {
	return b.post("/auth/login", map[string]string{"email": addr, "password": pw})
}

var _ = Describe("Account lifecycle", func() {
	It("signs up, verifies, logs in, refreshes and logs out", func() {
		b := newBrowser()
		addr := uniqueEmail()
		signUp(b, addr)

		uid, tok, ok := env.outbox.lastLink(addr, "verify-email")
		Expect(ok).To(BeTrue(), "verification email not sent")
		status, _ := b.post("/auth/verify-email", map[string]string{"user_id": uid, "token": tok})
		Expect(status).To(Equal(http.StatusOK))

		status, body := b.post("/auth/verify-email", map[string]string{"user_id": uid, "token": tok})
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(errorCode(body)).To(Equal("INVALID_OR_EXPIRED_TOKEN"))

		status, _ = logIn(b, addr, password)
		Expect(status).To(Equal(http.StatusOK))

		status, body = b.get("/auth/me")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body["user"]).To(HaveKeyWithValue("email", addr))

		status, body = b.post("/auth/refresh", nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKey("access_token"))

		status, _ = b.post("/auth/logout", nil)
		Expect(status).To(Equal(http.StatusNoContent))

		status, body = b.get("/auth/me")
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(errorCode(body)).To(Equal("UNAUTHORIZED"))
	})

	It("rejects a duplicate email regardless of case", func() {
		b := newBrowser()
		addr := uniqueEmail()
		signUp(b, addr)

		status, body := b.post("/auth/signup", map[string]string{
			"email": "  " + strings.ToUpper(addr), "name": "Other", "password": password,
		})
		Expect(status).To(Equal(http.StatusConflict))
		Expect(errorCode(body)).To(Equal("EMAIL_ALREADY_IN_USE"))
	})
})

var _ = Describe("Account lockout", func() {
	It("locks after repeated failures and unlocks by operator", func() {
		b := newBrowser()
		addr := uniqueEmail()
		signUp(b, addr)

		for range 5 {
			status, body := logIn(b, addr, "wrong password")
			Expect(status).To(Equal(http.StatusUnauthorized))
			Expect(errorCode(body)).To(Equal("INVALID_CREDENTIALS"))
		}

		status, body := logIn(b, addr, password)
		Expect(status).To(Equal(http.StatusLocked))
		Expect(errorCode(body)).To(Equal("ACCOUNT_LOCKED"))

		Expect(env.app.Service().UnlockUser(env.ctx, addr)).To(Succeed())
		status, _ = logIn(b, addr, password)
		Expect(status).To(Equal(http.StatusOK))
	})
})

var _ = Describe("Password recovery", func() {
	It("resets the password and revokes existing sessions", func() {
		laptop, phone := newBrowser(), newBrowser()
		addr := uniqueEmail()
		signUp(laptop, addr)
		status, _ := logIn(laptop, addr, password)
		Expect(status).To(Equal(http.StatusOK))
		status, _ = logIn(phone, addr, password)
		Expect(status).To(Equal(http.StatusOK))

		status, known := laptop.post("/auth/forgot-password", map[string]string{"email": addr})
		Expect(status).To(Equal(http.StatusAccepted))
		_, unknown := laptop.post("/auth/forgot-password", map[string]string{"email": "nobody-" + addr})
		Expect(unknown).To(Equal(known))

		uid, tok, ok := env.outbox.lastLink(addr, "reset-password")
		Expect(ok).To(BeTrue(), "reset email not sent")

		status, _ = laptop.post("/auth/reset-password", map[string]string{
			"user_id": uid, "token": tok, "new_password": "a brand new passphrase",
		})
		Expect(status).To(Equal(http.StatusOK))

		status, _ = phone.get("/auth/me")
		Expect(status).To(Equal(http.StatusUnauthorized))

		status, _ = logIn(phone, addr, password)
		Expect(status).To(Equal(http.StatusUnauthorized))
		status, _ = logIn(phone, addr, "a brand new passphrase")
		Expect(status).To(Equal(http.StatusOK))
	})
})

var _ = Describe("Pruner", func() {
	It("runs against the live schema", func() {
		_, err := env.app.Pruner().RunOnce(env.ctx)
		Expect(err).NotTo(HaveOccurred())
	})
})
