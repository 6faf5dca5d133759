package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	labels []string
}

func (r *recordingObserver) ObserveDBQuery(label string, _ time.Duration) {
	r.labels = append(r.labels, label)
}

func newGatewayMock(t *testing.T, opts ...Option) (*Gateway, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewGateway(sqlx.NewDb(db, "sqlmock"), opts...), mock, func() { db.Close() }
}

func TestGatewayGetReturnsErrNoRows(t *testing.T) {
	gw, mock, cleanup := newGatewayMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM subjects WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var id string
	err := gw.Get(context.Background(), &id, "SELECT id FROM subjects WHERE id = $1", "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayExecReturnsRowsAffected(t *testing.T) {
	obs := &recordingObserver{}
	gw, mock, cleanup := newGatewayMock(t, WithObserver(obs))
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subjects SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := gw.Exec(context.Background(), "UPDATE subjects SET is_active = FALSE")
	require.NoError(t, err)
	assert.EqualValues(t, 3, affected)
	assert.Equal(t, []string{"update"}, obs.labels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayWithinTxCommits(t *testing.T) {
	gw, mock, cleanup := newGatewayMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM subjects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := gw.WithinTx(context.Background(), func(ctx context.Context) error {
		assert.True(t, InTx(ctx))
		if _, err := gw.Exec(ctx, "DELETE FROM subjects WHERE id = $1", "s1"); err != nil {
			return err
		}
		// nested calls join the outer transaction
		return gw.WithinTx(ctx, func(inner context.Context) error {
			_, err := gw.Exec(inner, "INSERT INTO audit_logs (id) VALUES ($1)", "a1")
			return err
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayWithinTxRollsBackOnError(t *testing.T) {
	gw, mock, cleanup := newGatewayMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE subjects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("subject blocked")
	err := gw.WithinTx(context.Background(), func(ctx context.Context) error {
		if _, err := gw.Exec(ctx, "UPDATE subjects SET is_active = TRUE WHERE id = $1", "s1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatewayWithinTxRollsBackOnPanic(t *testing.T) {
	gw, mock, cleanup := newGatewayMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = gw.WithinTx(context.Background(), func(ctx context.Context) error {
			panic("unexpected")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatementLabel(t *testing.T) {
	assert.Equal(t, "select", statementLabel("  SELECT * FROM subjects"))
	assert.Equal(t, "unknown", statementLabel(""))
}
