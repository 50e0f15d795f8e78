package pipeline

import (
	"fmt"
	"strings"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/security"
)

// PlanDefaults are fixed retrieval limits and the backend scoping field.
// They are configuration, never derived per request.
type PlanDefaults struct {
	TopK       int
	VectorK    int
	ScopeField string
}

func (d PlanDefaults) normalize() PlanDefaults {
	if d.TopK <= 0 {
		d.TopK = 5
	}
	if d.VectorK <= 0 {
		d.VectorK = 30
	}
	if d.ScopeField == "" {
		d.ScopeField = "consignee_code_ids"
	}
	return d
}

// BuildRetrievalPlan builds the query plan for the search branch. Extracted
// identifiers take priority over free text: exact-ID lookups beat free-text
// relevance. The plan carries the row-level security filter derived from
// the request's authorized codes; the search backend applies it
// server-side.
func BuildRetrievalPlan(state *domain.RequestState, defaults PlanDefaults) *domain.RetrievalPlan {
	defaults = defaults.normalize()

	var tokens []string
	tokens = append(tokens, state.Entities[domain.EntityContainer]...)
	tokens = append(tokens, state.Entities[domain.EntityBillOfLading]...)
	tokens = append(tokens, state.Entities[domain.EntityPurchaseOrder]...)

	queryText := strings.TrimSpace(strings.Join(tokens, " "))
	if queryText == "" {
		queryText = state.Question()
	}

	return &domain.RetrievalPlan{
		QueryText: queryText,
		TopK:      defaults.TopK,
		VectorK:   defaults.VectorK,
		Filter:    security.BuildSearchFilter(state.AuthorizedCodes, defaults.ScopeField),
		Rationale: fmt.Sprintf("intent=%s ids=%t", state.Intent, len(tokens) > 0),
	}
}
