package db

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portward/internal/errors"
)

// newMockDB returns a DB backed by sqlmock. Expectations are verified on cleanup.
func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = conn.Close()
	})
	return &DB{DB: sqlx.NewDb(conn, "postgres")}, mock
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Empty(t, cfg.Database)
	assert.Empty(t, cfg.Username)
	assert.Empty(t, cfg.Password)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxIdleTime)
}

func TestConfigDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database = "portward"
	cfg.Username = "scanner"
	cfg.Password = "secret"

	assert.Equal(t,
		"host=localhost port=5432 dbname=portward user=scanner password=secret sslmode=disable",
		cfg.dsn())
}

func TestSanitizeDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"no rows", sql.ErrNoRows, errors.CodeNotFound},
		{"wrapped no rows", fmt.Errorf("get: %w", sql.ErrNoRows), errors.CodeNotFound},
		{"unique violation", &pq.Error{Code: "23505"}, errors.CodeConflict},
		{"foreign key violation", &pq.Error{Code: "23503"}, errors.CodeValidation},
		{"check violation", &pq.Error{Code: "23514"}, errors.CodeValidation},
		{"query canceled", &pq.Error{Code: "57014"}, errors.CodeCanceled},
		{"connection failure", &pq.Error{Code: "08006"}, errors.CodeDatabaseConnection},
		{"unknown sqlstate", &pq.Error{Code: "42P01"}, errors.CodeDatabaseQuery},
		{"context canceled", context.Canceled, errors.CodeCanceled},
		{"deadline", context.DeadlineExceeded, errors.CodeDatabaseTimeout},
		{"other", fmt.Errorf("password=hunter2 broke"), errors.CodeDatabaseQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sanitizeDBError("op", tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.NotContains(t, err.Error(), "hunter2")
		})
	}

	assert.NoError(t, sanitizeDBError("op", nil))
}

func TestConnectFailureIsSanitized(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 1
	cfg.Database = "portward"
	cfg.Username = "scanner"
	cfg.Password = "do-not-leak"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, &cfg)
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabaseConnection, errors.GetCode(err))
	assert.NotContains(t, err.Error(), "do-not-leak")
}

func TestDBPing(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer conn.Close()
	db := &DB{DB: sqlx.NewDb(conn, "postgres")}

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(&pq.Error{Code: "08006"})
	err = db.Ping(context.Background())
	assert.Equal(t, errors.CodeDatabaseConnection, errors.GetCode(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJSONB(t *testing.T) {
	var j JSONB
	require.NoError(t, j.Scan([]byte(`{"a":1}`)))
	assert.JSONEq(t, `{"a":1}`, string(j))

	require.NoError(t, j.Scan(`{"b":2}`))
	assert.JSONEq(t, `{"b":2}`, string(j))

	require.NoError(t, j.Scan(nil))
	assert.Nil(t, j)

	assert.Error(t, j.Scan(42))

	val, err := JSONB(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, val)

	out, err := JSONB(nil).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
