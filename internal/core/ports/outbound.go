package ports

import (
	"context"
	"io"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

// SearchIndex executes a retrieval plan against the document search
// backend. The plan's filter expression must be honored server-side as an
// AND-combined predicate restricting results to the authorized scope.
type SearchIndex interface {
	Search(ctx context.Context, plan domain.RetrievalPlan) ([]domain.Document, error)
}

// ChatCompleter is the stateless, single-turn chat completion backend.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []domain.ChatMessage, temperature float64) (string, error)
}

// ObjectStore downloads blobs from the shared object storage. Missing blobs
// and credential failures surface as errors.
type ObjectStore interface {
	Download(ctx context.Context, container, blob string) (io.ReadCloser, error)
}

// DatasetCache owns the daily materialized snapshot of the master dataset
// and its security-filtered, type-coerced view.
type DatasetCache interface {
	EnsureToday(ctx context.Context) (string, error)
	LoadFiltered(ctx context.Context, codes []string) (*domain.Table, error)
}

// CodeSandbox evaluates generated analytics code against the filtered view
// with no ambient filesystem, network, or import capability beyond a fixed
// whitelist. It returns the designated output binding's value.
type CodeSandbox interface {
	Run(ctx context.Context, code string, view *domain.Table) (any, error)
}

// AnalyticsRunner answers an open-ended analytic question against the
// caller's filtered view.
type AnalyticsRunner interface {
	Analyze(ctx context.Context, state *domain.RequestState) *domain.AnalyticsSummary
}

// AnswerSynthesizer merges retrieval/analytics results into the final
// answer text. It must always produce some text.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, state *domain.RequestState) string
}

// MessageQueue publishes/consumes dataset pre-warm events.
type MessageQueue interface {
	PublishDatasetPrewarm(ctx context.Context, dateKey string) error
	SubscribeDatasetPrewarm(ctx context.Context, handler func(context.Context, string) error) error
}

// ExchangeStore persists the question/answer audit log.
type ExchangeStore interface {
	RecordExchange(ctx context.Context, exchange domain.Exchange) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Exchange, error)
}
