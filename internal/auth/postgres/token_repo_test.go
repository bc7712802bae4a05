// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fellowhub/fellowhub/internal/auth"
	"github.com/fellowhub/fellowhub/internal/auth/postgres"
)

func TestPasswordResetRepository_ListRedeemable(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	columns := []string{"id", "user_id", "token_hash", "expires_at", "used", "used_at", "ip_address", "created_at"}
	newer, older := ulid.Make(), ulid.Make()

	t.Run("outside a transaction rows are not locked", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`NOT used AND expires_at > \$2\s+ORDER BY created_at DESC$`).
			WithArgs(int64(7), now).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(newer.String(), int64(7), "h2", now.Add(time.Hour), false, nil, "192.0.2.1", now).
				AddRow(older.String(), int64(7), "h1", now.Add(time.Minute), false, nil, "", now.Add(-time.Minute)))

		tokens, err := postgres.NewPasswordResetRepository(mock).ListRedeemable(context.Background(), 7, now)
		require.NoError(t, err)
		require.Len(t, tokens, 2)
		assert.Equal(t, newer, tokens[0].ID)
		assert.Equal(t, "192.0.2.1", tokens[0].IPAddress)
		assert.Equal(t, older, tokens[1].ID)
	})

	t.Run("inside a transaction rows are locked", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`ORDER BY created_at DESC FOR UPDATE`).
			WithArgs(int64(7), now).
			WillReturnRows(pgxmock.NewRows(columns))
		mock.ExpectCommit()

		repo := postgres.NewPasswordResetRepository(mock)
		err := postgres.NewTransactor(mock).InTransaction(context.Background(), func(ctx context.Context) error {
			tokens, err := repo.ListRedeemable(ctx, 7, now)
			assert.Empty(t, tokens)
			return err
		})
		require.NoError(t, err)
	})
}

func TestPasswordResetRepository_MarkUsed(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND NOT used`)).
		WithArgs(id.String(), at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $1 AND NOT used`)).
		WithArgs(id.String(), at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM password_reset_tokens WHERE id = $1)`)).
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := postgres.NewPasswordResetRepository(mock)
	require.NoError(t, repo.MarkUsed(ctx, id, at))
	require.ErrorIs(t, repo.MarkUsed(ctx, id, at), auth.ErrAlreadyConsumed)
}

func TestVerificationTokenRepository_InvalidateUnused(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(`WHERE user_id = $1 AND type = $2 AND NOT used`)).
		WithArgs(int64(7), "email", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := postgres.NewVerificationTokenRepository(mock).InvalidateUnused(context.Background(), 7, auth.VerificationEmail, at)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestVerificationTokenRepository_MarkUsedMissing(t *testing.T) {
	id := ulid.Make()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mock := newMock(t)
	mock.ExpectExec(`UPDATE verification_tokens SET used = TRUE`).
		WithArgs(id.String(), at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM verification_tokens WHERE id = $1)`)).
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := postgres.NewVerificationTokenRepository(mock).MarkUsed(context.Background(), id, at)
	require.ErrorIs(t, err, auth.ErrNotFound)
}
