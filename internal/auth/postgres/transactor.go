// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/fellowhub/fellowhub/internal/auth"
)

// Transactor implements auth.Transactor. It stores the active pgx.Tx in the
// context so repository calls made with that context join the transaction.
type Transactor struct {
	db DB
}

// NewTransactor creates a Transactor backed by db.
func NewTransactor(db DB) *Transactor {
	return &Transactor{db: db}
}

// InTransaction begins a transaction, stores it in context, and calls fn.
// If fn returns nil the transaction is committed, otherwise it is rolled
// back and fn's error returned unchanged. A call made with a context that
// already carries a transaction runs fn inside that transaction.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := t.db.Begin(ctx)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx) //nolint:errcheck // the original error matters more
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	committed = true
	return nil
}

var _ auth.Transactor = (*Transactor)(nil)
