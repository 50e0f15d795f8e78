package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/ports"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/security"
)

const declineAnswer = "I can answer questions about shipment status, arrival times, delays, " +
	"or run analytics over your shipments. Could you rephrase your question?"

// Observer receives pipeline telemetry. Implemented by the metrics package;
// a nil observer disables it.
type Observer interface {
	ObserveStage(stage string, duration time.Duration)
	QuestionHandled(intent string, satisfied bool, errorCount int)
}

// Options carries the optional collaborators of the orchestrator.
type Options struct {
	Exchanges ports.ExchangeStore
	Queue     ports.MessageQueue
	Observer  Observer
	Defaults  PlanDefaults
}

// Orchestrator threads a request state through the stage machine. Each
// stage owns its output fields; errors and notices are append-only. Stage
// failures degrade to best-effort defaults so every run reaches StageEnd
// with some answer text.
type Orchestrator struct {
	search    ports.SearchIndex
	analytics ports.AnalyticsRunner
	answers   ports.AnswerSynthesizer

	exchanges ports.ExchangeStore
	queue     ports.MessageQueue
	observer  Observer

	defaults    PlanDefaults
	checkpoints *CheckpointStore
}

func NewOrchestrator(
	search ports.SearchIndex,
	analytics ports.AnalyticsRunner,
	answers ports.AnswerSynthesizer,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		search:      search,
		analytics:   analytics,
		answers:     answers,
		exchanges:   opts.Exchanges,
		queue:       opts.Queue,
		observer:    opts.Observer,
		defaults:    opts.Defaults.normalize(),
		checkpoints: NewCheckpointStore(),
	}
}

// Ask runs the full pipeline for one question. The authorization scope is
// resolved exactly once here, before any data-touching stage, and is
// read-only afterwards. If an unfinished checkpoint exists for the same
// conversation, question, identity, and resolved scope, execution resumes
// from the last completed stage; a checkpoint left by a different caller or
// scope is discarded so no run ever proceeds under another caller's codes.
func (o *Orchestrator) Ask(ctx context.Context, req domain.AskRequest) (*domain.RequestState, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is required"))
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	state := &domain.RequestState{
		QuestionRaw:     question,
		ConversationID:  conversationID,
		AuthorizedCodes: security.ResolveScope(req.Identity, req.ScopePayload),
	}
	stage := StageNormalize

	if cp, ok := o.checkpoints.Load(conversationID); ok && cp.State != nil &&
		cp.State.QuestionRaw == question && cp.Stage != StageEnd {
		// The resolver returns codes sorted and deduplicated, so Equal is a
		// set comparison here.
		if cp.Identity == req.Identity && slices.Equal(cp.State.AuthorizedCodes, state.AuthorizedCodes) {
			slog.Info("pipeline_resume", "conversation_id", conversationID, "stage", string(cp.Stage))
			state = cp.State
			stage = cp.Stage
		} else {
			slog.Warn("checkpoint_scope_mismatch", "conversation_id", conversationID)
			o.checkpoints.Clear(conversationID)
		}
	}

	for stage != StageEnd {
		started := time.Now()
		next := o.step(ctx, stage, state)
		if o.observer != nil {
			o.observer.ObserveStage(string(stage), time.Since(started))
		}
		o.checkpoints.Save(conversationID, Checkpoint{Stage: next, Identity: req.Identity, State: state})
		stage = next
	}
	o.checkpoints.Clear(conversationID)

	if o.observer != nil {
		o.observer.QuestionHandled(string(state.Intent), state.Satisfied, len(state.Errors))
	}
	o.recordExchange(ctx, state)

	return state, nil
}

func (o *Orchestrator) step(ctx context.Context, stage Stage, state *domain.RequestState) Stage {
	switch stage {
	case StageNormalize:
		state.QuestionNormalized = Normalize(state.QuestionRaw)
		return StageExtract

	case StageExtract:
		state.Entities = ExtractEntities(state.QuestionNormalized)
		return StageClassify

	case StageClassify:
		state.Intent = ClassifyIntent(state.QuestionNormalized)
		return StageRoute

	case StageRoute:
		switch Route(state.Intent) {
		case BranchAnalytics:
			o.publishPrewarm(ctx, state)
			return StageAnalyze
		case BranchRetrieval:
			return StagePlan
		default:
			state.AnswerText = declineAnswer
			state.AppendNotice("question declined: intent " + string(state.Intent))
			return StageEnd
		}

	case StagePlan:
		state.Plan = BuildRetrievalPlan(state, o.defaults)
		return StageRetrieve

	case StageRetrieve:
		docs, err := o.search.Search(ctx, *state.Plan)
		if err != nil {
			slog.Error("retrieve_failed", "conversation_id", state.ConversationID, "error", err)
			state.AppendError(fmt.Sprintf("document search failed: %v", err))
			docs = nil
		}
		state.Documents = docs
		state.Satisfied = len(docs) > 0
		return StageAnswer

	case StageAnalyze:
		state.Analytics = o.analytics.Analyze(ctx, state)
		return StageAnswer

	case StageAnswer:
		state.AnswerText = o.answers.Synthesize(ctx, state)
		return StageEnd

	default:
		state.AppendError("unknown pipeline stage: " + string(stage))
		return StageEnd
	}
}

// publishPrewarm hints the worker to warm today's snapshot ahead of the
// synchronous load. Best effort only.
func (o *Orchestrator) publishPrewarm(ctx context.Context, state *domain.RequestState) {
	if o.queue == nil || len(state.AuthorizedCodes) == 0 {
		return
	}
	dateKey := time.Now().UTC().Format("2006-01-02")
	if err := o.queue.PublishDatasetPrewarm(ctx, dateKey); err != nil {
		slog.Warn("prewarm_publish_failed", "conversation_id", state.ConversationID, "error", err)
	}
}

func (o *Orchestrator) recordExchange(ctx context.Context, state *domain.RequestState) {
	if o.exchanges == nil {
		return
	}
	exchange := domain.Exchange{
		ID:             uuid.NewString(),
		ConversationID: state.ConversationID,
		Question:       state.QuestionRaw,
		Intent:         state.Intent,
		Answer:         state.AnswerText,
		ErrorCount:     len(state.Errors),
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.exchanges.RecordExchange(ctx, exchange); err != nil {
		slog.Warn("exchange_record_failed", "conversation_id", state.ConversationID, "error", err)
	}
}
