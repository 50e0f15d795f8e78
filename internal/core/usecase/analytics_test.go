package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

type cacheFake struct {
	loads int
	view  *domain.Table
	err   error
}

func (f *cacheFake) EnsureToday(context.Context) (string, error) { return "/tmp/master.xlsx", nil }
func (f *cacheFake) LoadFiltered(_ context.Context, codes []string) (*domain.Table, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.view, nil
}

type chatFake struct {
	prompt string
	reply  string
	err    error
}

func (f *chatFake) Complete(_ context.Context, messages []domain.ChatMessage, _ float64) (string, error) {
	if len(messages) > 0 {
		f.prompt = messages[0].Content
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type sandboxFake struct {
	code  string
	view  *domain.Table
	value any
	err   error
}

func (f *sandboxFake) Run(_ context.Context, code string, view *domain.Table) (any, error) {
	f.code = code
	f.view = view
	if f.err != nil {
		return nil, f.err
	}
	return f.value, nil
}

func testView() *domain.Table {
	return &domain.Table{
		Columns: []string{"container_number", "shipment_status", "consignee_codes"},
		Rows: []map[string]any{
			{"container_number": "ABCD1234567", "shipment_status": "DELIVERED", "consignee_codes": []string{"0002990"}},
			{"container_number": "EFGH7654321", "shipment_status": "IN_OCEAN", "consignee_codes": []string{"0002990"}},
		},
	}
}

func analyticsState() *domain.RequestState {
	return &domain.RequestState{
		QuestionRaw:        "Show me a chart of delays",
		QuestionNormalized: "show me a chart of delays",
		ConversationID:     "c-1",
		AuthorizedCodes:    []string{"0002990"},
		Intent:             domain.IntentAnalytics,
	}
}

func TestAnalyzeEmptyScopeShortCircuits(t *testing.T) {
	cache := &cacheFake{view: testView()}
	uc := NewAnalyticsUseCase(cache, &chatFake{}, &sandboxFake{}, nil)

	state := analyticsState()
	state.AuthorizedCodes = nil

	if summary := uc.Analyze(context.Background(), state); summary != nil {
		t.Fatalf("Analyze() = %+v, want nil", summary)
	}
	if cache.loads != 0 {
		t.Fatalf("empty scope must not touch the dataset, loads = %d", cache.loads)
	}
	if len(state.Errors) != 1 || !strings.Contains(state.Errors[0], "no authorized consignee codes") {
		t.Fatalf("errors = %v", state.Errors)
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	cache := &cacheFake{view: testView()}
	chat := &chatFake{reply: "```go\nrows := view.Rows()\nresult = len(rows)\n```"}
	sandbox := &sandboxFake{value: 2}
	uc := NewAnalyticsUseCase(cache, chat, sandbox, nil)

	state := analyticsState()
	summary := uc.Analyze(context.Background(), state)
	if summary == nil {
		t.Fatalf("Analyze() = nil, errors = %v", state.Errors)
	}
	if summary.RowCount != 2 || summary.Rendered != "2" {
		t.Fatalf("summary = %+v", summary)
	}
	if !state.Satisfied {
		t.Fatalf("expected satisfied state")
	}
	if !strings.Contains(sandbox.code, "result = len(rows)") {
		t.Fatalf("sandbox code = %q", sandbox.code)
	}
}

func TestAnalyzeHidesInternalColumnsFromModelAndSandbox(t *testing.T) {
	cache := &cacheFake{view: testView()}
	chat := &chatFake{reply: "```go\nresult = 1\n```"}
	sandbox := &sandboxFake{value: 1}
	uc := NewAnalyticsUseCase(cache, chat, sandbox, nil)

	uc.Analyze(context.Background(), analyticsState())

	if strings.Contains(chat.prompt, "consignee_codes") {
		t.Fatalf("scoping column leaked into the prompt")
	}
	for _, col := range sandbox.view.Columns {
		if col == "consignee_codes" {
			t.Fatalf("scoping column leaked into the sandbox view")
		}
	}
	for _, row := range sandbox.view.Rows {
		if _, ok := row["consignee_codes"]; ok {
			t.Fatalf("scoping values leaked into the sandbox view")
		}
	}
}

func TestAnalyzeLoadFailureRecordsError(t *testing.T) {
	cache := &cacheFake{err: domain.WrapError(domain.ErrCacheFetch, "ensure snapshot", errors.New("blob unreachable"))}
	uc := NewAnalyticsUseCase(cache, &chatFake{}, &sandboxFake{}, nil)

	state := analyticsState()
	if summary := uc.Analyze(context.Background(), state); summary != nil {
		t.Fatalf("expected nil summary")
	}
	if len(state.Errors) != 1 || !strings.Contains(state.Errors[0], "data load failed") {
		t.Fatalf("errors = %v", state.Errors)
	}
}

func TestAnalyzeEmptyViewAddsNoticeOnly(t *testing.T) {
	cache := &cacheFake{view: &domain.Table{Columns: []string{"shipment_status"}}}
	uc := NewAnalyticsUseCase(cache, &chatFake{}, &sandboxFake{}, nil)

	state := analyticsState()
	if summary := uc.Analyze(context.Background(), state); summary != nil {
		t.Fatalf("expected nil summary")
	}
	if len(state.Errors) != 0 {
		t.Fatalf("empty view is not an error: %v", state.Errors)
	}
	if len(state.Notices) != 1 {
		t.Fatalf("notices = %v", state.Notices)
	}
}

func TestAnalyzeExecutionFailure(t *testing.T) {
	cache := &cacheFake{view: testView()}
	chat := &chatFake{reply: "```go\nresult = bad()\n```"}
	sandbox := &sandboxFake{err: errors.New("undefined: bad")}
	uc := NewAnalyticsUseCase(cache, chat, sandbox, nil)

	state := analyticsState()
	if summary := uc.Analyze(context.Background(), state); summary != nil {
		t.Fatalf("expected nil summary")
	}
	if len(state.Errors) != 1 || !strings.Contains(state.Errors[0], "analysis failed") {
		t.Fatalf("errors = %v", state.Errors)
	}
	if state.Satisfied {
		t.Fatalf("execution failure must leave the request unsatisfied")
	}
}

func TestAnalyzeGenerationFailure(t *testing.T) {
	cache := &cacheFake{view: testView()}
	uc := NewAnalyticsUseCase(cache, &chatFake{err: errors.New("model down")}, &sandboxFake{}, nil)

	state := analyticsState()
	if summary := uc.Analyze(context.Background(), state); summary != nil {
		t.Fatalf("expected nil summary")
	}
	if len(state.Errors) != 1 || !strings.Contains(state.Errors[0], "code generation failed") {
		t.Fatalf("errors = %v", state.Errors)
	}
}

func TestExtractCodeFenceAndFallback(t *testing.T) {
	fenced := "Here you go:\n```go\nresult = 1\n```\nDone."
	if got := ExtractCode(fenced); got != "result = 1" {
		t.Fatalf("ExtractCode(fenced) = %q", got)
	}

	bare := "```\nresult = 2\n```"
	if got := ExtractCode(bare); got != "result = 2" {
		t.Fatalf("ExtractCode(bare fence) = %q", got)
	}

	// No fence: the whole reply is treated as code.
	if got := ExtractCode("  result = 3  "); got != "result = 3" {
		t.Fatalf("ExtractCode(unfenced) = %q", got)
	}
}
