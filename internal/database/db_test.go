package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "u@tcp(h:3306)/lib?charset=utf8mb4&parseTime=true&loc=UTC&time_zone=%27%2B00%3A00%27", DSN("u", "", "h", "3306", "lib"))
	assert.Equal(t, "u:p@tcp(h:3306)/lib?charset=utf8mb4&parseTime=true&loc=UTC&time_zone=%27%2B00%3A00%27", DSN("u", "p", "h", "3306", "lib"))
}

func TestWithTxCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE payments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = SQLTx{DB: db}.WithTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE payments SET status='failed'")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = SQLTx{DB: db}.WithTx(context.Background(), func(tx *sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
