package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muluken16/E-liberary/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var bookCols = []string{"id", "title", "author", "description", "category_id", "sub_category_id", "book_type",
	"language", "grade_level", "hard_price", "soft_price", "rental_price_per_week",
	"is_for_sale", "is_for_rent", "is_active", "is_featured", "views", "downloads", "seller_id",
	"created_at", "updated_at"}

func bookRow(id int64, title string) []driver.Value {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []driver.Value{id, title, "Author", nil, int64(1), nil, "both",
		"english", "beginner", "30.00", "10.00", "5.00",
		true, true, true, false, int64(0), int64(0), nil, now, now}
}

func TestBookRepoGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookRepo(db)

	mock.ExpectQuery(`SELECT .* FROM books WHERE id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(bookCols).AddRow(bookRow(7, "Fikir Eske Mekabir")...))

	b, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Fikir Eske Mekabir", b.Title)
	assert.True(t, b.HardPrice.Equal(decimal.NewFromInt(30)))
	assert.True(t, b.AvailableForRent())
	require.NotNil(t, b.CategoryID)
	assert.Equal(t, uint64(1), *b.CategoryID)
	assert.Nil(t, b.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepoGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookRepo(db)

	mock.ExpectQuery(`SELECT .* FROM books WHERE id = \?`).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(bookCols))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestBookRepoSearchFilters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookRepo(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM books WHERE is_active = 1 AND is_for_rent = 1 AND rental_price_per_week > 0 AND category_id = \? AND \(LOWER\(title\) LIKE \? OR LOWER\(author\) LIKE \?\)`).
		WithArgs(uint64(3), "%oromo%", "%oromo%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(`SELECT .* FROM books WHERE .* ORDER BY created_at DESC, id DESC LIMIT \? OFFSET \?`).
		WithArgs(uint64(3), "%oromo%", "%oromo%", 10, 10).
		WillReturnRows(sqlmock.NewRows(bookCols).AddRow(bookRow(1, "Oromo Grammar")...))

	books, total, err := repo.Search(context.Background(), BookQuery{
		AvailableFor: "rent", CategoryID: 3, Search: "Oromo", Page: 2, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, books, 1)
	assert.Equal(t, "Oromo Grammar", books[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepoCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBookRepo(db)

	mock.ExpectExec(`INSERT INTO books`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &model.Book{Title: "A", Author: "B", BookType: "hard"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPaymentRepoTransitionTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepo(db)
	ref := "CHAP_REF_TXN1"

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payments SET status = \?, gateway_reference = COALESCE\(\?, gateway_reference\)\s+WHERE id = \? AND status IN \(\?,\?\)`).
		WithArgs("completed", ref, uint64(5), "pending", "failed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payments SET status`).
		WithArgs("completed", nil, uint64(5), "pending", "failed").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	changed, err := repo.TransitionTx(context.Background(), tx, 5, "completed", []string{"pending", "failed"}, &ref)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.TransitionTx(context.Background(), tx, 5, "completed", []string{"pending", "failed"}, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepoTransitionNoSources(t *testing.T) {
	db, _ := newMock(t)
	changed, err := NewPaymentRepo(db).TransitionTx(context.Background(), nil, 1, "refunded", nil, nil)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPaymentRepoGetByTxRefNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT .* FROM payments WHERE transaction_id = \?$`).
		WithArgs("TXNmissing").
		WillReturnError(sql.ErrNoRows)

	_, err := NewPaymentRepo(db).GetByTxRef(context.Background(), "TXNmissing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestPaymentRepoFailPendingBefore(t *testing.T) {
	db, mock := newMock(t)
	cutoff := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE payments SET status = 'failed' WHERE status = 'pending' AND created_at < \?`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewPaymentRepo(db).FailPendingBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPaymentRepoCreateTxWritesUTCTimestamps(t *testing.T) {
	db, mock := newMock(t)
	local := time.FixedZone("EAT", 3*60*60)
	created := time.Date(2026, 5, 1, 15, 0, 0, 0, local)

	mock.ExpectExec(`INSERT INTO payments .*created_at, updated_at\)`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "TXN1", "pending",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			created.UTC(), created.UTC()).
		WillReturnResult(sqlmock.NewResult(9, 1))

	p := &model.Payment{TransactionID: "TXN1", Status: model.PaymentStatusPending, CreatedAt: created}
	require.NoError(t, NewPaymentRepo(db).CreateTx(context.Background(), nil, p))
	assert.Equal(t, uint64(9), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepoLatestCompletedTxNone(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM payments\s+WHERE user_id = \? AND book_id = \? AND payment_type = \? AND status = 'completed' AND id <> \?`).
		WithArgs(uint64(3), uint64(1), "purchase_soft", uint64(8)).
		WillReturnError(sql.ErrNoRows)

	p, err := NewPaymentRepo(db).LatestCompletedTx(context.Background(), nil, 3, 1, "purchase_soft", 8)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestPurchaseRepoRepointTx(t *testing.T) {
	db, mock := newMock(t)
	exp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE user_purchases SET payment_id = \?, expires_at = \? WHERE payment_id = \?`).
		WithArgs(uint64(5), exp, uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := NewPurchaseRepo(db).RepointTx(context.Background(), nil, 8, model.UserPurchase{PaymentID: 5, ExpiresAt: &exp})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPurchaseRepoUpsertKeepsExpiryWhenNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPurchaseRepo(db)

	mock.ExpectExec(`INSERT INTO user_purchases .* ON DUPLICATE KEY UPDATE\s+payment_id = VALUES\(payment_id\),\s+expires_at = COALESCE\(VALUES\(expires_at\), expires_at\)`).
		WithArgs(uint64(1), uint64(2), uint64(3), "soft", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.UpsertTx(context.Background(), nil, model.UserPurchase{UserID: 1, BookID: 2, PaymentID: 3, PurchaseType: "soft"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepoFindActive(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPurchaseRepo(db)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)

	mock.ExpectQuery(`SELECT .* FROM user_purchases\s+WHERE user_id = \? AND book_id = \? AND expires_at >= \?`).
		WithArgs(uint64(4), uint64(8), now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id", "payment_id", "purchase_type", "purchased_at", "expires_at", "updated_at"}).
			AddRow(int64(1), int64(4), int64(8), int64(12), "rental", now, exp, now))

	up, err := repo.FindActive(context.Background(), 4, 8, now)
	require.NoError(t, err)
	require.NotNil(t, up)
	assert.Equal(t, "rental", up.PurchaseType)
	require.NotNil(t, up.ExpiresAt)
	assert.True(t, exp.Equal(*up.ExpiresAt))
}

func TestPurchaseRepoFindPerpetualNone(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`expires_at IS NULL`).
		WithArgs(uint64(4), uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	up, err := NewPurchaseRepo(db).FindPerpetual(context.Background(), 4, 8)
	require.NoError(t, err)
	assert.Nil(t, up)
}

func TestPaymentEventRepoRecordTxDetectsReplay(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentEventRepo(db)
	ev := model.PaymentEvent{TxRef: "TXN1", Status: "success", Reference: "R1", Payload: `{}`}

	mock.ExpectExec(`INSERT IGNORE INTO payment_events`).
		WithArgs("TXN1", "success", "R1", `{}`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT IGNORE INTO payment_events`).
		WithArgs("TXN1", "success", "R1", `{}`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	fresh, err := repo.RecordTx(context.Background(), nil, ev)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = repo.RecordTx(context.Background(), nil, ev)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, isDuplicateKey(&mysql.MySQLError{Number: 1452}))
	assert.False(t, isDuplicateKey(errors.New("1062")))
}

func TestQuizRepoListQuestionsDecodesOptions(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`SELECT id, subject_id, question_text, options, correct_option, explain_text`).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject_id", "question_text", "options", "correct_option", "explain_text"}).
			AddRow(int64(1), int64(2), "2+2?", []byte(`["3","4"]`), "4", nil))

	qs, err := NewQuizRepo(db).ListQuestions(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, []string{"3", "4"}, qs[0].Options)
	assert.Equal(t, "4", *qs[0].CorrectOption)
	assert.Nil(t, qs[0].Explain)
}
