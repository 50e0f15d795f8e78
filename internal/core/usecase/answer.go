package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/ports"
)

const (
	answerContextDocs = 5

	// MsgNothingFound is returned without a collaborator call when neither
	// documents nor analytics are populated.
	MsgNothingFound = "I couldn't find any information matching your request within your authorized scope."

	// MsgSynthesisFallback is the fixed apology on collaborator failure;
	// the caller always receives some answer text.
	MsgSynthesisFallback = "I found relevant information but encountered an error while writing the summary. Please try again."
)

const answerSystemPrompt = "You are a helpful shipment Q&A assistant. " +
	"Answer the user's question using only the provided context (analytics and/or documents). " +
	"If providing analytics, summarize the key figures. " +
	"If the answer is not in the context, say you don't know. " +
	"Be concise and professional."

// AnswerUseCase merges retrieval and analytics results into a prose answer
// grounded only in the assembled context block.
type AnswerUseCase struct {
	chat        ports.ChatCompleter
	temperature float64
}

func NewAnswerUseCase(chat ports.ChatCompleter, temperature float64) *AnswerUseCase {
	return &AnswerUseCase{chat: chat, temperature: temperature}
}

func (uc *AnswerUseCase) Synthesize(ctx context.Context, state *domain.RequestState) string {
	contextBlock := buildContextBlock(state)
	if contextBlock == "" {
		return MsgNothingFound
	}

	userPrompt := fmt.Sprintf("Context:\n%s\nQuestion: %s\n\nAnswer:", contextBlock, state.QuestionRaw)
	answer, err := uc.chat.Complete(ctx, []domain.ChatMessage{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: userPrompt},
	}, uc.temperature)
	if err != nil {
		slog.Error("answer_synthesis_failed", "conversation_id", state.ConversationID, "error", err)
		state.AppendError(fmt.Sprintf("answer synthesis failed: %v", err))
		return MsgSynthesisFallback
	}
	return strings.TrimSpace(answer)
}

func buildContextBlock(state *domain.RequestState) string {
	var b strings.Builder

	if state.Analytics != nil {
		b.WriteString("--- Analytics ---\n")
		fmt.Fprintf(&b, "Rows in scope: %d\n", state.Analytics.RowCount)
		if state.Analytics.Rendered != "" {
			fmt.Fprintf(&b, "Result:\n%s\n", state.Analytics.Rendered)
		}
		// Sorted so repeated runs produce the same prompt text.
		facets := make([]string, 0, len(state.Analytics.Facets))
		for facet := range state.Analytics.Facets {
			facets = append(facets, facet)
		}
		sort.Strings(facets)
		for _, facet := range facets {
			fmt.Fprintf(&b, "%s: %v\n", facet, state.Analytics.Facets[facet])
		}
	}

	docs := state.Documents
	if len(docs) > answerContextDocs {
		docs = docs[:answerContextDocs]
	}
	for i, doc := range docs {
		fmt.Fprintf(&b, "\n--- Document %d ---\n", i+1)
		fmt.Fprintf(&b, "Content: %s\n", doc.Content)
		if doc.ContainerNumber != "" {
			fmt.Fprintf(&b, "Container: %s\n", doc.ContainerNumber)
		}
	}

	return b.String()
}
