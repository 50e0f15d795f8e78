package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/ports"
)

const identityHeader = "X-User-Id"

type Router struct {
	questions     ports.QuestionService
	conversations ports.ConversationReader

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
}

type RouterOptions struct {
	// RateLimitRPS <= 0 disables the rate limiter.
	RateLimitRPS   float64
	RateLimitBurst int
	// MaxInFlight <= 0 disables the backpressure gate.
	MaxInFlight int
}

func NewRouter(questions ports.QuestionService, conversations ports.ConversationReader, opts RouterOptions) *Router {
	return &Router{
		questions:      questions,
		conversations:  conversations,
		rateLimitRPS:   opts.RateLimitRPS,
		rateLimitBurst: opts.RateLimitBurst,
		maxInFlight:    opts.MaxInFlight,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/questions", rt.askQuestion)
	mux.HandleFunc("/v1/conversations/", rt.getConversation)

	var handler http.Handler = mux
	if rt.maxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.maxInFlight, 50*time.Millisecond)
	}
	if rt.rateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequestBody struct {
	Question       string          `json:"question"`
	ConversationID string          `json:"conversation_id"`
	ConsigneeCodes json.RawMessage `json:"consignee_codes"`
}

type askResponseBody struct {
	ConversationID string   `json:"conversation_id"`
	Intent         string   `json:"intent"`
	Answer         string   `json:"answer"`
	Satisfied      bool     `json:"satisfied"`
	Notices        []string `json:"notices,omitempty"`
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body askRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	state, err := rt.questions.Ask(r.Context(), domain.AskRequest{
		Question:       body.Question,
		ConversationID: body.ConversationID,
		Identity:       strings.TrimSpace(r.Header.Get(identityHeader)),
		ScopePayload:   decodeScopePayload(body.ConsigneeCodes),
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, askResponseBody{
		ConversationID: state.ConversationID,
		Intent:         string(state.Intent),
		Answer:         state.AnswerText,
		Satisfied:      state.Satisfied,
		Notices:        state.Notices,
	})
}

// decodeScopePayload keeps the caller's shape: a JSON string, an array, or
// absent. Scope resolution decides what counts as a valid scope.
func decodeScopePayload(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return string(raw)
	}
	return payload
}

func (rt *Router) getConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/conversations/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversation id is required"})
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
			return
		}
		limit = n
	}

	exchanges, err := rt.conversations.ListByConversation(r.Context(), id, limit)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"exchanges":       exchanges,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
