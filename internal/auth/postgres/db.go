// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

// Package postgres provides PostgreSQL implementations of the auth
// repositories and transactor.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// DB is the part of *pgxpool.Pool the repositories use.
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier abstracts query execution for both the pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// txFrom returns the transaction stored in ctx by Transactor, if any.
func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// conn returns the transaction in ctx, falling back to db.
func conn(ctx context.Context, db DB) querier {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db
}

// lockClause returns a row-locking suffix when running inside a transaction.
func lockClause(ctx context.Context) string {
	if _, ok := txFrom(ctx); ok {
		return " FOR UPDATE"
	}
	return ""
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// consumedOrMissing resolves a conditional update that matched no row:
// the row either exists in its final state (sentinel consumed) or does not
// exist at all (sentinel missing).
func consumedOrMissing(ctx context.Context, q querier, table, id string, consumed, missing error) error {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return oops.With("operation", "check "+table+" row").With("id", id).Wrap(err)
	}
	if exists {
		return consumed
	}
	return missing
}
