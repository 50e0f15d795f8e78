package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

// ExchangeRepository persists the question/answer audit log, one row per
// handled question.
type ExchangeRepository struct {
	db *sql.DB
}

func NewExchangeRepository(db *sql.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ExchangeRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS exchanges (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	question TEXT NOT NULL,
	intent TEXT NOT NULL,
	answer TEXT NOT NULL,
	error_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exchanges_conversation ON exchanges(conversation_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ExchangeRepository) RecordExchange(ctx context.Context, exchange domain.Exchange) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO exchanges (id, conversation_id, question, intent, answer, error_count, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		exchange.ID, exchange.ConversationID, exchange.Question, string(exchange.Intent),
		exchange.Answer, exchange.ErrorCount, exchange.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// ListByConversation returns the newest exchanges first.
func (r *ExchangeRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Exchange, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, conversation_id, question, intent, answer, error_count, created_at
FROM exchanges
WHERE conversation_id = $1
ORDER BY created_at DESC
LIMIT $2
`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var out []domain.Exchange
	for rows.Next() {
		var e domain.Exchange
		var intent string
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.Question, &intent, &e.Answer, &e.ErrorCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.Intent = domain.Intent(intent)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return out, nil
}
