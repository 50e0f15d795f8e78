package ports

import (
	"context"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

// QuestionService is the inbound contract for answering a caller question.
// The returned state always carries a non-empty AnswerText, even on stage
// failures.
type QuestionService interface {
	Ask(ctx context.Context, req domain.AskRequest) (*domain.RequestState, error)
}

// ConversationReader is the inbound read model for recorded exchanges.
type ConversationReader interface {
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]domain.Exchange, error)
}
