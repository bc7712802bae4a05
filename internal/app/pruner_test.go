// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package app_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fellowhub/fellowhub/internal/app"
	"github.com/fellowhub/fellowhub/internal/auth"
)

type fakePruneService struct {
	calls  atomic.Int32
	report auth.PruneReport
	err    error
}

func (f *fakePruneService) Prune(context.Context) (auth.PruneReport, error) {
	f.calls.Add(1)
	return f.report, f.err
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPruner_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := &fakePruneService{report: auth.PruneReport{Sessions: 2}}
	p := app.NewPruner(svc, 5*time.Millisecond, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	require.Eventually(t, func() bool { return svc.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestPruner_DisabledReturnsImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := &fakePruneService{}
	app.NewPruner(svc, 0, slog.New(slog.DiscardHandler)).Run(context.Background())
	assert.Zero(t, svc.calls.Load())
}

func TestPruner_RunOnceLogs(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewJSONHandler(&out, nil))

	t.Run("reports removed rows", func(t *testing.T) {
		svc := &fakePruneService{report: auth.PruneReport{Sessions: 3, ResetTokens: 1}}
		report, err := app.NewPruner(svc, time.Hour, logger).RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), report.Sessions)
		assert.Contains(t, out.String(), `"msg":"pruned expired records"`)
		assert.Contains(t, out.String(), `"sessions":3`)
	})

	t.Run("logs failures", func(t *testing.T) {
		svc := &fakePruneService{err: errors.New("connection reset")}
		_, err := app.NewPruner(svc, time.Hour, logger).RunOnce(context.Background())
		require.Error(t, err)
		assert.Contains(t, out.String(), "prune failed")
	})
}
