package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/ports"
)

const analyticsSampleRows = 3

var codeFencePattern = regexp.MustCompile("(?s)```(?:go)?\\s*(.*?)```")

// AnalyticsUseCase answers open-ended analytic questions by generating
// data-transformation code and executing it in the sandbox against the
// caller's filtered view. The view handed to the sandbox never contains the
// internal columns, the scoping column included: generated code cannot see
// the authorization attribute at all.
type AnalyticsUseCase struct {
	cache   ports.DatasetCache
	chat    ports.ChatCompleter
	sandbox ports.CodeSandbox
	schema  domain.SchemaRegistry
}

func NewAnalyticsUseCase(
	cache ports.DatasetCache,
	chat ports.ChatCompleter,
	sandbox ports.CodeSandbox,
	schema domain.SchemaRegistry,
) *AnalyticsUseCase {
	if schema == nil {
		schema = domain.DefaultShipmentSchema()
	}
	return &AnalyticsUseCase{
		cache:   cache,
		chat:    chat,
		sandbox: sandbox,
		schema:  schema,
	}
}

// Analyze runs the generate-and-execute protocol. Failures are recorded on
// the state and degrade to a nil summary; the pipeline never crashes here.
func (uc *AnalyticsUseCase) Analyze(ctx context.Context, state *domain.RequestState) *domain.AnalyticsSummary {
	if len(state.AuthorizedCodes) == 0 {
		state.AppendError("no authorized consignee codes for analytics")
		return nil
	}

	view, err := uc.cache.LoadFiltered(ctx, state.AuthorizedCodes)
	if err != nil {
		slog.Error("analytics_data_load_failed", "conversation_id", state.ConversationID, "error", err)
		state.AppendError(fmt.Sprintf("data load failed: %v", err))
		return nil
	}
	if view.IsEmpty() {
		state.AppendNotice("filtered dataset is empty for the caller scope")
		return nil
	}

	safeView := stripInternalColumns(view)

	content, err := uc.chat.Complete(ctx, []domain.ChatMessage{
		{Role: "system", Content: uc.buildAnalystPrompt(safeView)},
		{Role: "user", Content: "Question: " + state.Question()},
	}, 0.0)
	if err != nil {
		state.AppendError(fmt.Sprintf("code generation failed: %v", err))
		return nil
	}

	code := ExtractCode(content)
	if code == "" {
		state.AppendError("model produced no code")
		return nil
	}

	value, err := uc.sandbox.Run(ctx, code, safeView)
	if err != nil {
		slog.Warn("analytics_execution_failed", "conversation_id", state.ConversationID, "error", err)
		state.AppendError(fmt.Sprintf("analysis failed: %v", err))
		state.Satisfied = false
		return nil
	}

	state.Satisfied = true
	return &domain.AnalyticsSummary{
		RowCount: view.RowCount(),
		Rendered: renderResult(value),
	}
}

// buildAnalystPrompt describes the view's schema, shape, and a small
// literal sample, under the strict contract for generated code.
func (uc *AnalyticsUseCase) buildAnalystPrompt(view *domain.Table) string {
	var b strings.Builder
	b.WriteString("You are a data analyst. You query an in-memory table of shipment rows ")
	b.WriteString("through the read-only package `view`.\n\n")

	b.WriteString("## Dataset\n")
	fmt.Fprintf(&b, "Rows: %d, Columns: %d\n", view.RowCount(), view.ColumnCount())
	b.WriteString("Columns:\n")
	for _, col := range view.Columns {
		spec, ok := uc.schema[col]
		if ok {
			fmt.Fprintf(&b, "- %s (%s): %s\n", col, spec.Type, spec.Description)
		} else {
			fmt.Fprintf(&b, "- %s (string)\n", col)
		}
	}

	if sample, err := json.MarshalIndent(view.Head(analyticsSampleRows), "", "  "); err == nil {
		b.WriteString("Sample rows:\n")
		b.Write(sample)
		b.WriteString("\n")
	}

	if hints := synonymHints(view.Columns); hints != "" {
		b.WriteString("Column synonyms: ")
		b.WriteString(hints)
		b.WriteString("\n")
	}

	b.WriteString(`
## Instructions
1. Write Go statements only: no package clause, no func main.
2. Start from rows := view.Rows() which returns []map[string]interface{}.
3. Numeric cells are float64, datetime cells are time.Time, list cells are []string; missing values are nil.
4. Assign the final answer (string, number, or slice of rows) to the variable result.
5. Only these imports are allowed: fmt, strings, strconv, sort, math, time, regexp, encoding/json.
6. Perform no input/output, networking, or filesystem access.
7. Return ONLY the code inside a ` + "```go```" + ` block. Do not explain.

## Example
Question: "How many delivered shipments?"
` + "```go" + `
rows := view.Rows()
count := 0
for _, r := range rows {
	if r["shipment_status"] == "DELIVERED" {
		count++
	}
}
result := count
` + "```\n")

	return b.String()
}

// ExtractCode pulls the generated code out of a fenced block. When no fence
// is found the whole reply is treated as code, matching the collaborator
// contract's permissive fallback.
func ExtractCode(content string) string {
	if m := codeFencePattern.FindStringSubmatch(content); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}

func stripInternalColumns(view *domain.Table) *domain.Table {
	safe := &domain.Table{}
	for _, col := range view.Columns {
		if !domain.IsInternalColumn(col) {
			safe.Columns = append(safe.Columns, col)
		}
	}
	safe.Rows = make([]map[string]any, 0, len(view.Rows))
	for _, row := range view.Rows {
		clean := make(map[string]any, len(safe.Columns))
		for _, col := range safe.Columns {
			clean[col] = row[col]
		}
		safe.Rows = append(safe.Rows, clean)
	}
	return safe
}

func synonymHints(columns []string) string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	hints := make([]string, 0, len(domain.ColumnSynonyms))
	for word, col := range domain.ColumnSynonyms {
		if present[col] {
			hints = append(hints, word+"="+col)
		}
	}
	sort.Strings(hints)
	return strings.Join(hints, ", ")
}

func renderResult(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64, float32, int, int64, bool:
		return fmt.Sprint(v)
	default:
		if raw, err := json.MarshalIndent(v, "", "  "); err == nil {
			return string(raw)
		}
		return fmt.Sprint(v)
	}
}
