package database

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateAppliesPendingVersionsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	files := fstest.MapFS{
		"migrations/002_subjects.sql": {Data: []byte("CREATE TABLE subjects (id UUID)")},
		"migrations/001_users.sql":    {Data: []byte("CREATE TABLE users (id UUID)")},
	}

	exists := regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(exists).WithArgs("001").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(exists).WithArgs("002").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE subjects (id UUID)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")).WithArgs("002").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := migrate(context.Background(), sqlxDB, files, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"002"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, "001", migrationVersion("migrations/001_users.sql"))
	assert.Equal(t, "seed", migrationVersion("migrations/seed.sql"))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2)
}

func TestSubjectHistoryIsRemovedWithSubject(t *testing.T) {
	raw, err := migrationFiles.ReadFile("migrations/002_subjects.sql")
	require.NoError(t, err)
	ddl := string(raw)

	cascades := regexp.MustCompile(`subject_id UUID NOT NULL REFERENCES subjects \(id\) ON DELETE CASCADE`)
	assert.Len(t, cascades.FindAllString(ddl, -1), 3)
	assert.NotContains(t, ddl, "REFERENCES subjects (id) ON DELETE SET NULL")
}
