package cache

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 17, 9, 30, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewMySQLStore(sqlx.NewDb(db, "mysql"), WithClock(func() time.Time { return fixedNow }))
	return store, mock
}

func TestMySQLStore_Get(t *testing.T) {
	query := regexp.QuoteMeta("SELECT cache_value FROM cache_entries WHERE cache_key = ? AND expires_at > ?")

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		want      []byte
		wantOK    bool
		wantErr   bool
	}{
		{
			name: "live entry",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).
					WithArgs("bitesize_sound_1_v1", fixedNow).
					WillReturnRows(sqlmock.NewRows([]string{"cache_value"}).AddRow([]byte(`{"text":"a"}`)))
			},
			want:   []byte(`{"text":"a"}`),
			wantOK: true,
		},
		{
			name: "missing or expired",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).
					WithArgs("bitesize_sound_1_v1", fixedNow).
					WillReturnRows(sqlmock.NewRows([]string{"cache_value"}))
			},
		},
		{
			name: "query error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(query).WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setupMock(mock)

			got, ok, err := store.Get(context.Background(), "bitesize_sound_1_v1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantOK, ok)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMySQLStore_Set(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cache_entries (cache_key, cache_value, expires_at, written_at) VALUES (?, ?, ?, ?)")).
		WithArgs("bitesize_sound_2_v1", []byte(`{"recorded":null}`), fixedNow.Add(15*time.Minute), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Set(context.Background(), "bitesize_sound_2_v1", []byte(`{"recorded":null}`), 15*time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cache_entries WHERE cache_key = ?")).
		WithArgs("bitesize_sound_2_v1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "bitesize_sound_2_v1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_Expiry(t *testing.T) {
	store, mock := newMockStore(t)
	expiresAt := fixedNow.Add(24 * time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT expires_at FROM cache_entries WHERE cache_key = ? AND expires_at > ?")).
		WithArgs("bitesize_sound_3_v1", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"expires_at"}).AddRow(expiresAt))

	got, ok, err := store.Expiry(context.Background(), "bitesize_sound_3_v1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, expiresAt, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

const testRegexp = `^bitesize_sound_[0-9]+_v1$`

func TestMySQLStore_List(t *testing.T) {
	columns := []string{"cache_key", "cache_value", "expires_at", "written_at"}
	base := regexp.QuoteMeta("SELECT cache_key, cache_value, expires_at, written_at FROM cache_entries " +
		"WHERE cache_key LIKE ? AND cache_key REGEXP ? AND expires_at > ? ORDER BY written_at DESC, id DESC")

	t.Run("with limit", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(base+regexp.QuoteMeta(" LIMIT ?")).
			WithArgs(`bitesize\_sound\_%\_v1`, testRegexp, fixedNow, 2).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("bitesize_sound_5_v1", []byte(`{"text":"5"}`), fixedNow.Add(time.Hour), fixedNow).
				AddRow("bitesize_sound_4_v1", []byte(`{"text":"4"}`), fixedNow.Add(time.Hour), fixedNow.Add(-time.Minute)))

		got, err := store.List(context.Background(), testMatch, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "bitesize_sound_5_v1", got[0].Key)
		assert.Equal(t, []byte(`{"text":"4"}`), got[1].Value)
		assert.Equal(t, fixedNow.Add(-time.Minute), got[1].WrittenAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("without limit", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(base+"$").
			WithArgs(`bitesize\_sound\_%\_v1`, testRegexp, fixedNow).
			WillReturnRows(sqlmock.NewRows(columns))

		got, err := store.List(context.Background(), testMatch, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQLStore_KeysAndCount(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT cache_key FROM cache_entries WHERE cache_key LIKE ? AND cache_key REGEXP ? AND expires_at > ? ORDER BY cache_key")).
		WithArgs(`bitesize\_sound\_%\_v1`, testRegexp, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"cache_key"}).AddRow("bitesize_sound_1_v1").AddRow("bitesize_sound_2_v1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cache_entries WHERE cache_key LIKE ? AND cache_key REGEXP ? AND expires_at > ?")).
		WithArgs(`bitesize\_sound\_%\_v1`, testRegexp, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(2))

	keys, err := store.Keys(context.Background(), testMatch)
	require.NoError(t, err)
	assert.Equal(t, []string{"bitesize_sound_1_v1", "bitesize_sound_2_v1"}, keys)

	count, err := store.Count(context.Background(), testMatch)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_PurgeExpired(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cache_entries WHERE expires_at <= ?")).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 4))

	removed, err := store.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_Count_WithoutDigits(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM cache_entries WHERE cache_key LIKE ? AND expires_at > ?") + "$").
		WithArgs(`bitesize\_sound\_%\_v1`, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(3))

	count, err := store.Count(context.Background(), Match{Prefix: "bitesize_sound_", Suffix: "_v1"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
