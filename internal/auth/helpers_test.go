// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fellowhub/fellowhub/internal/auth"
	"github.com/fellowhub/fellowhub/internal/auth/authtest"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "analytical-engine-1843"
)

func newHarness(t *testing.T, opts ...authtest.HarnessOption) *authtest.Harness {
	t.Helper()
	return authtest.NewHarness(t, opts...)
}

func mustUserID(t *testing.T, view auth.UserView) int64 {
	t.Helper()
	id, err := auth.ParseUserID(view.ID)
	require.NoError(t, err)
	return id
}

// logBuffer captures JSON log lines from concurrent writers.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// entries decodes every captured line.
func (b *logBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

// find returns the first entry with msg.
func (b *logBuffer) find(t *testing.T, msg string) (map[string]any, bool) {
	t.Helper()
	for _, e := range b.entries(t) {
		if e["msg"] == msg {
			return e, true
		}
	}
	return nil, false
}

func newCapturingLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
