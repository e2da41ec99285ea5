package postgres

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	migs, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migs)

	assert.Equal(t, "0001_create_appointments", migs[0].version)
	assert.Contains(t, migs[0].upSQL, "appointments_no_overlap")
	assert.NotContains(t, migs[0].upSQL, "DROP TABLE", "down section must be stripped")
}

func TestExtractGooseUp(t *testing.T) {
	_, err := extractGooseUp("CREATE TABLE t (id int)")
	assert.Error(t, err)

	up, err := extractGooseUp("-- +goose Up\nCREATE TABLE t (id int);\n-- +goose Down\nDROP TABLE t;\n")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t (id int);", up)

	up, err = extractGooseUp("-- +goose Up\nSELECT 1;")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;", up)
}

func TestSplitSQLStatements(t *testing.T) {
	got := splitSQLStatements("CREATE TABLE a (id int);\n\n  ;CREATE INDEX b ON a (id);  ")
	assert.Equal(t, []string{"CREATE TABLE a (id int)", "CREATE INDEX b ON a (id)"}, got)
}

func TestMigrate_AppliesPendingAndRecordsVersion(t *testing.T) {
	db, mock := newMockDB(t)

	migs, err := loadMigrations()
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock\(hashtext\('booking:migrations'\)\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	for _, m := range migs {
		mock.ExpectQuery(`SELECT count\(\*\) FROM schema_migrations WHERE version = '` + m.version + `'`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
		for _, stmt := range splitSQLStatements(m.upSQL) {
			firstLine := strings.SplitN(stmt, "\n", 2)[0]
			mock.ExpectExec(regexp.QuoteMeta(firstLine)).
				WillReturnResult(sqlmock.NewResult(0, 0))
		}
		mock.ExpectExec(`INSERT INTO schema_migrations`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_SkipsAppliedVersions(t *testing.T) {
	db, mock := newMockDB(t)

	migs, err := loadMigrations()
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	for range migs {
		mock.ExpectQuery(`SELECT count\(\*\) FROM schema_migrations`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	}
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
