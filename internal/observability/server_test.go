// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestServer_Liveness(t *testing.T) {
	s := NewServer("127.0.0.1:0", func(context.Context) error { return errors.New("db down") }, nil)

	code, body := get(t, s.Handler(), "/healthz/liveness")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name    string
		checker ReadinessChecker
		want    int
	}{
		{"ready", func(context.Context) error { return nil }, http.StatusOK},
		{"not ready", func(context.Context) error { return errors.New("db down") }, http.StatusServiceUnavailable},
		{"nil checker", nil, http.StatusOK},
		{"checker has a deadline", func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				return errors.New("no deadline")
			}
			return nil
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := get(t, NewServer("127.0.0.1:0", tt.checker, nil).Handler(), "/healthz/readiness")
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestServer_MetricsExposesRequestCounters(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil)
	s.Metrics().RequestsTotal.WithLabelValues("/auth/login", "200").Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(s.Metrics().RequestsTotal.WithLabelValues("/auth/login", "200")), 0)

	code, body := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "fellowhub_http_requests_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestServer_StartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", nil, nil)

	errCh, err := s.Start()
	require.NoError(t, err)
	require.NotEmpty(t, s.Addr())

	_, err = s.Start()
	require.Error(t, err, "second start must fail")

	resp, err := http.Get("http://" + s.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	require.NoError(t, s.Stop(ctx), "stop is idempotent")

	select {
	case err, ok := <-errCh:
		assert.False(t, ok, "channel should close without error, got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("error channel not closed after shutdown")
	}
}

func TestServer_StartFailsOnBusyAddress(t *testing.T) {
	first := NewServer("127.0.0.1:0", nil, nil)
	_, err := first.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	second := NewServer(first.Addr(), nil, nil)
	_, err = second.Start()
	require.Error(t, err)

	// The failed start leaves the server stoppable.
	require.NoError(t, second.Stop(context.Background()))
}
