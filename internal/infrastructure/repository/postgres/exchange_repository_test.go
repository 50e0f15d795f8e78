package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ExchangeRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ExchangeRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestRecordExchangeInsertsRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO exchanges").
		WithArgs("ex-1", "conv-1", "where is MSCU1234567", "status", "it is in ocean", 0, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordExchange(context.Background(), domain.Exchange{
		ID:             "ex-1",
		ConversationID: "conv-1",
		Question:       "where is MSCU1234567",
		Intent:         domain.IntentStatus,
		Answer:         "it is in ocean",
		CreatedAt:      created,
	})
	if err != nil {
		t.Fatalf("RecordExchange() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByConversationScansRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "conversation_id", "question", "intent", "answer", "error_count", "created_at"}).
		AddRow("ex-2", "conv-1", "chart by carrier", "analytics", "MSC leads with 12", 0, created).
		AddRow("ex-1", "conv-1", "where is MSCU1234567", "status", "it is in ocean", 1, created.Add(-time.Minute))

	mock.ExpectQuery("SELECT id, conversation_id, question, intent, answer").
		WithArgs("conv-1", 50).
		WillReturnRows(rows)

	out, err := repo.ListByConversation(context.Background(), "conv-1", 0)
	if err != nil {
		t.Fatalf("ListByConversation() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("ListByConversation() returned %d rows, want 2", len(out))
	}
	if out[0].Intent != domain.IntentAnalytics || out[1].ErrorCount != 1 {
		t.Errorf("ListByConversation() = %+v, want analytics first and error_count 1 second", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordExchangeWrapsInsertError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO exchanges").
		WillReturnError(errors.New("connection reset"))

	err := repo.RecordExchange(context.Background(), domain.Exchange{ID: "ex-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
