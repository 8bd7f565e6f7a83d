package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "geocode_cache",
		Columns:      []string{"key", "location"},
		ConflictKeys: []string{"key"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "geocode_cache",
		ConflictKeys: []string{"key"},
	}, [][]any{{"k", "Nairobi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "geocode_cache",
		Columns: []string{"key", "location"},
	}, [][]any{{"k", "Nairobi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_geocode_cache" \(LIKE "geocode_cache" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_geocode_cache"}, []string{"key", "location", "latitude"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "geocode_cache" .* ON CONFLICT \("key"\) DO UPDATE SET "location" = EXCLUDED."location", "latitude" = EXCLUDED."latitude"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "geocode_cache",
		Columns:      []string{"key", "location", "latitude"},
		ConflictKeys: []string{"key"},
	}, [][]any{{"a", "Nairobi", -1.28}, {"b", "Mombasa", -4.04}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_geocode_cache"}, []string{"key", "location"}).
		WillReturnError(errors.New("copy failed"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "geocode_cache",
		Columns:      []string{"key", "location"},
		ConflictKeys: []string{"key"},
	}, [][]any{{"a", "Nairobi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_UnknownConflictKey(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "geocode_cache",
		Columns:      []string{"key", "location"},
		ConflictKeys: []string{"id"},
	}, [][]any{{"a", "Nairobi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `conflict key "id"`)
}

func TestBulkUpsert_DuplicateKeysCollapsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_geocode_cache"}, []string{"key", "location"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "geocode_cache"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "geocode_cache",
		Columns:      []string{"key", "location"},
		ConflictKeys: []string{"key"},
	}, [][]any{{"a", "Nairobi"}, {"b", "Mombasa"}, {"a", "Nairobi CBD"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupeRows(t *testing.T) {
	rows := dedupeRows([][]any{
		{"a", 1}, {"b", 2}, {"a", 3}, {"c", 4}, {"b", 5},
	}, []int{0})
	assert.Equal(t, [][]any{{"a", 3}, {"b", 5}, {"c", 4}}, rows)
}

func TestBulkUpsert_KeysOnly(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_tags"}, []string{"name"}).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("name"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "tags",
		Columns:      []string{"name"},
		ConflictKeys: []string{"name"},
	}, [][]any{{"organic"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.geocode_cache", `"public"."geocode_cache"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"key", "latitude", "longitude"})
	assert.Equal(t, `"key", "latitude", "longitude"`, result)
}
