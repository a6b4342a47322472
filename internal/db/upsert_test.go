package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"id", "user_id"`, quoteAndJoin([]string{"id", "user_id"}))
	assert.Equal(t, `"select"`, quoteAndJoin([]string{"select"}))
	assert.Equal(t, "", quoteAndJoin(nil))
}

func TestBulkUpsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cfg := UpsertConfig{
		Table:         "contacts",
		Columns:       []string{"id", "user_id", "email", "first_name"},
		ConflictKeys:  []string{"user_id", "email"},
		ConflictWhere: "email IS NOT NULL",
		UpdateCols:    []string{"first_name"},
	}
	rows := [][]any{{"c-1", "u-1", "ada@example.com", "ada"}}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_contacts" \(LIKE "contacts" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_contacts"}, cfg.Columns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "contacts" .+ ON CONFLICT \("user_id", "email"\) WHERE email IS NOT NULL DO UPDATE SET "first_name" = EXCLUDED\."first_name"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, cfg, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_NoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{Table: "contacts"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_RequiresColumnsAndKeys(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := [][]any{{"c-1"}}

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{Table: "contacts"}, rows)
	assert.ErrorContains(t, err, "no columns")

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{Table: "contacts", Columns: []string{"id"}}, rows)
	assert.ErrorContains(t, err, "no conflict keys")
}

func TestCopyFrom(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"contacts"}, []string{"id", "email"}).
		WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "contacts", []string{"id", "email"},
		[][]any{{"c-1", "a@example.com"}, {"c-2", "b@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_NoRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := CopyFrom(context.Background(), mock, "contacts", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
