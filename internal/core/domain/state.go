package domain

import "time"

// Intent is the classified purpose of a question. It drives which pipeline
// branch executes; routing treats it as an opaque closed enum so a future
// model-based classifier can replace the keyword one without touching the
// router.
type Intent string

const (
	IntentAnalytics Intent = "analytics"
	IntentETA       Intent = "eta"
	IntentStatus    Intent = "status"
	IntentDelay     Intent = "delay"
	IntentUnknown   Intent = "unknown"
)

// EntityKind identifies the shape of an extracted shipment identifier.
type EntityKind string

const (
	EntityContainer     EntityKind = "container"
	EntityPurchaseOrder EntityKind = "purchase_order"
	EntityBillOfLading  EntityKind = "bill_of_lading"
)

// RetrievalPlan is the structured description of a document-search request.
// The filter expression is built from the caller's authorized codes and must
// be applied server-side by the search backend.
type RetrievalPlan struct {
	QueryText string `json:"query_text"`
	TopK      int    `json:"top_k"`
	VectorK   int    `json:"vector_k"`
	Filter    string `json:"filter"`
	Rationale string `json:"rationale"`
}

// Document is one retrieved search hit.
type Document struct {
	ID              string         `json:"id"`
	Content         string         `json:"content"`
	ContainerNumber string         `json:"container_number,omitempty"`
	Score           float64        `json:"score,omitempty"`
	Fields          map[string]any `json:"fields,omitempty"`
}

// AnalyticsSummary carries the outcome of an ad-hoc analytics run.
type AnalyticsSummary struct {
	RowCount int            `json:"row_count"`
	Facets   map[string]any `json:"facets,omitempty"`
	Rendered string         `json:"rendered"`
}

// ChatMessage is a single turn sent to the chat completion backend.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestState is the single mutable record threaded through the pipeline.
//
// AuthorizedCodes is resolved exactly once, before any data-touching stage,
// and is read-only afterwards; every downstream filter predicate derives
// solely from it. Errors and Notices are append-only across the run.
type RequestState struct {
	QuestionRaw        string `json:"question_raw"`
	QuestionNormalized string `json:"question_normalized"`

	ConversationID  string   `json:"conversation_id"`
	AuthorizedCodes []string `json:"authorized_codes"`

	Entities map[EntityKind][]string `json:"entities,omitempty"`
	Intent   Intent                  `json:"intent,omitempty"`

	Plan      *RetrievalPlan    `json:"retrieval_plan,omitempty"`
	Documents []Document        `json:"documents,omitempty"`
	Analytics *AnalyticsSummary `json:"analytics,omitempty"`

	AnswerText string `json:"answer_text,omitempty"`
	Satisfied  bool   `json:"satisfied"`

	Errors  []string `json:"errors,omitempty"`
	Notices []string `json:"notices,omitempty"`
}

func (s *RequestState) AppendError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func (s *RequestState) AppendNotice(msg string) {
	s.Notices = append(s.Notices, msg)
}

// Question returns the normalized question when set, the raw one otherwise.
func (s *RequestState) Question() string {
	if s.QuestionNormalized != "" {
		return s.QuestionNormalized
	}
	return s.QuestionRaw
}

// AskRequest is the inbound contract constructed by the thin entry points.
// ScopePayload is the raw, untrusted authorization payload: either a
// comma-separated string or a sequence of strings.
type AskRequest struct {
	Question       string
	ConversationID string
	Identity       string
	ScopePayload   any
}

// Exchange is one recorded question/answer round trip, persisted for audit.
type Exchange struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Question       string    `json:"question"`
	Intent         Intent    `json:"intent"`
	Answer         string    `json:"answer"`
	ErrorCount     int       `json:"error_count"`
	CreatedAt      time.Time `json:"created_at"`
}
