package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBreaker(t *testing.T, opts ...func(*Config)) (*DBCircuitBreaker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDBCircuitBreaker(db, opts...), mock
}

func TestDBCircuitBreaker_QueryContext(t *testing.T) {
	// Arrange
	dcb, mock := newMockBreaker(t)
	mock.ExpectQuery("SELECT title FROM watch_titles").
		WillReturnRows(sqlmock.NewRows([]string{"title"}).AddRow("Show A"))

	// Act
	rows, err := dcb.QueryContext(context.Background(), "SELECT title FROM watch_titles ORDER BY created_at")

	// Assert
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	var title string
	require.NoError(t, rows.Scan(&title))
	assert.Equal(t, "Show A", title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_ExecContext(t *testing.T) {
	dcb, mock := newMockBreaker(t)
	mock.ExpectExec("INSERT INTO dispatch_records").
		WithArgs("123").
		WillReturnResult(sqlmock.NewResult(1, 1))

	res, err := dcb.ExecContext(context.Background(), "INSERT INTO dispatch_records (entry_key) VALUES (?)", "123")

	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDBCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	// Arrange
	dcb, mock := newMockBreaker(t, func(c *Config) {
		c.Name = "database-open-test"
		c.ConsecutiveFailures = 2
		c.Timeout = time.Minute
	})
	dbErr := errors.New("connection reset by peer")
	mock.ExpectQuery("SELECT 1 FROM dispatch_records").WillReturnError(dbErr)
	mock.ExpectQuery("SELECT 1 FROM dispatch_records").WillReturnError(dbErr)

	// Act
	for i := 0; i < 2; i++ {
		_, err := dcb.QueryContext(context.Background(), "SELECT 1 FROM dispatch_records WHERE entry_key = ?", "123")
		require.ErrorIs(t, err, dbErr)
	}
	_, err := dcb.ExecContext(context.Background(), "DELETE FROM watch_titles")

	// Assert
	assert.True(t, dcb.IsOpen())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.NoError(t, mock.ExpectationsWereMet(), "the refused statement never reached the pool")
}

func TestDBCircuitBreaker_NoRowsAndCancelAreNotFailures(t *testing.T) {
	dcb, mock := newMockBreaker(t, func(c *Config) {
		c.Name = "database-benign-test"
		c.ConsecutiveFailures = 1
	})
	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT").WillReturnError(context.Canceled)

	_, err := dcb.QueryContext(context.Background(), "SELECT entry_key FROM dispatch_records")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = dcb.QueryContext(context.Background(), "SELECT entry_key FROM dispatch_records")
	assert.ErrorIs(t, err, context.Canceled)

	assert.False(t, dcb.IsOpen())
}

func TestDBCircuitBreaker_QueryRowContextBypassesBreaker(t *testing.T) {
	dcb, mock := newMockBreaker(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(7))

	var n int64
	err := dcb.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM dispatch_records").Scan(&n)

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestDBCircuitBreaker_PingContext(t *testing.T) {
	dcb, mock := newMockBreaker(t)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("database is closed"))

	assert.NoError(t, dcb.PingContext(context.Background()))
	assert.Error(t, dcb.PingContext(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBCircuitBreaker_DB(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	assert.Same(t, db, NewDBCircuitBreaker(db).DB())
}
