// Package memsearch is an in-process document index for local development
// and tests. It speaks the same retrieval-plan contract as the hosted
// search backend, including the scoping filter expression.
package memsearch

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

var scopeFilterPattern = regexp.MustCompile(`^(\w+)/any\(t: search\.in\(t, '(.*)', ','\)\)$`)

type Index struct {
	mu   sync.RWMutex
	docs []domain.Document
}

func New() *Index {
	return &Index{}
}

func (x *Index) Add(docs ...domain.Document) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.docs = append(x.docs, docs...)
}

// Search scores documents by query term overlap and applies the plan's
// filter before ranking, mirroring the server-side behavior of the hosted
// index. An unparseable filter matches nothing.
func (x *Index) Search(_ context.Context, plan domain.RetrievalPlan) ([]domain.Document, error) {
	match, err := compileFilter(plan.Filter)
	if err != nil {
		return nil, err
	}

	terms := tokenize(plan.QueryText)

	x.mu.RLock()
	defer x.mu.RUnlock()

	type scored struct {
		doc   domain.Document
		score float64
	}
	var hits []scored
	for _, doc := range x.docs {
		if !match(doc) {
			continue
		}
		score := overlap(terms, doc)
		if score <= 0 {
			continue
		}
		d := doc
		d.Score = score
		hits = append(hits, scored{doc: d, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	limit := plan.TopK
	if limit <= 0 || limit > len(hits) {
		limit = len(hits)
	}
	out := make([]domain.Document, 0, limit)
	for _, h := range hits[:limit] {
		out = append(out, h.doc)
	}
	return out, nil
}

func compileFilter(filter string) (func(domain.Document) bool, error) {
	switch filter {
	case "":
		return func(domain.Document) bool { return true }, nil
	case "false":
		return func(domain.Document) bool { return false }, nil
	}

	m := scopeFilterPattern.FindStringSubmatch(filter)
	if m == nil {
		return nil, fmt.Errorf("unsupported filter expression: %q", filter)
	}
	field := m[1]
	allowed := map[string]struct{}{}
	for _, code := range strings.Split(strings.ReplaceAll(m[2], "''", "'"), ",") {
		if code = strings.TrimSpace(code); code != "" {
			allowed[code] = struct{}{}
		}
	}

	return func(doc domain.Document) bool {
		for _, value := range fieldValues(doc, field) {
			if _, ok := allowed[value]; ok {
				return true
			}
		}
		return false
	}, nil
}

func fieldValues(doc domain.Document, field string) []string {
	switch v := doc.Fields[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func tokenize(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,?!:;\"'()")
		if tok != "" {
			out[tok] = struct{}{}
		}
	}
	return out
}

func overlap(terms map[string]struct{}, doc domain.Document) float64 {
	var score float64
	seen := map[string]struct{}{}
	for _, tok := range strings.Fields(strings.ToLower(doc.Content)) {
		tok = strings.Trim(tok, ".,?!:;\"'()")
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := terms[tok]; ok {
			score++
		}
	}
	if doc.ContainerNumber != "" {
		if _, ok := terms[strings.ToLower(doc.ContainerNumber)]; ok {
			score += 5
		}
	}
	return score
}
