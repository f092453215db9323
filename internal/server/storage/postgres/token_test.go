package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/taskkeeper/internal/server/refresh"
)

func TestTokenStore_Put(t *testing.T) {
	s, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+refresh_tokens.*ON\s+CONFLICT\s+\(token_hash\)\s+DO\s+UPDATE`).
		WithArgs(refresh.HashToken("tok"), int64(5), fixedNow.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.RefreshTokens().Put(context.Background(), "tok", 5, time.Hour))
}

func TestTokenStore_Get(t *testing.T) {
	s, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)SELECT\s+user_id\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s+AND\s+expires_at\s*>\s*\$2`
	mock.ExpectQuery(q).WithArgs(refresh.HashToken("tok"), fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(5)))
	mock.ExpectQuery(q).WithArgs(refresh.HashToken("gone"), fixedNow).
		WillReturnError(sql.ErrNoRows)

	tokens := s.RefreshTokens()

	owner, err := tokens.Get(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(5), owner)

	_, err = tokens.Get(context.Background(), "gone")
	assert.ErrorIs(t, err, refresh.ErrNotFound)
}

func TestTokenStore_Consume(t *testing.T) {
	q := `(?s)DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s+RETURNING\s+user_id,\s*expires_at`

	tests := []struct {
		rows      *sqlmock.Rows
		wantErr   error
		name      string
		wantOwner int64
	}{
		{
			name:      "live token",
			rows:      sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow(int64(5), fixedNow.Add(time.Minute)),
			wantOwner: 5,
		},
		{
			name:    "expired token",
			rows:    sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow(int64(5), fixedNow),
			wantErr: refresh.ErrNotFound,
		},
		{
			name:    "unknown token",
			rows:    sqlmock.NewRows([]string{"user_id", "expires_at"}),
			wantErr: refresh.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectQuery(q).WithArgs(refresh.HashToken("tok")).WillReturnRows(tt.rows)

			owner, err := s.RefreshTokens().Consume(context.Background(), "tok")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
		})
	}
}

func TestTokenStore_DeleteAndPurge(t *testing.T) {
	s, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1`).
		WithArgs(refresh.HashToken("tok")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<=\s*\$1`).
		WithArgs(fixedNow).WillReturnResult(sqlmock.NewResult(0, 4))

	tokens := s.RefreshTokens()
	require.NoError(t, tokens.Delete(context.Background(), "tok"))

	removed, err := tokens.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
}
