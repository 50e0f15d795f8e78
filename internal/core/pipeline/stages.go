package pipeline

import (
	"regexp"
	"strings"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

// Identifier shapes are fixed lexical patterns; any match is accepted
// without check-digit validation.
var (
	containerPattern = regexp.MustCompile(`\b[a-zA-Z]{4}\d{7}\b`)
	poPattern        = regexp.MustCompile(`(?i)\bPO\d{5,10}\b`)
	oblPattern       = regexp.MustCompile(`(?i)\bOBL[a-zA-Z0-9]{5,12}\b`)
)

// Normalize lower-cases and trims the raw question. The result is immutable
// once set on the request state.
func Normalize(question string) string {
	return strings.ToLower(strings.TrimSpace(question))
}

// ExtractEntities pulls structured identifiers from normalized text. All
// three kinds are always present in the result, empty when nothing matched,
// and matches are upper-cased.
func ExtractEntities(text string) map[domain.EntityKind][]string {
	return map[domain.EntityKind][]string{
		domain.EntityContainer:     matchUpper(containerPattern, text),
		domain.EntityPurchaseOrder: matchUpper(poPattern, text),
		domain.EntityBillOfLading:  matchUpper(oblPattern, text),
	}
}

func matchUpper(pattern *regexp.Regexp, text string) []string {
	matches := pattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.ToUpper(m))
	}
	return out
}

// ClassifyIntent maps normalized text to a single intent by keyword lookup
// in fixed priority order. Deliberately simple; the router only sees the
// opaque enum, so a model-based classifier is a drop-in replacement.
func ClassifyIntent(text string) domain.Intent {
	switch {
	case strings.Contains(text, "chart") || strings.Contains(text, "analytics"):
		return domain.IntentAnalytics
	case strings.Contains(text, "eta") || strings.Contains(text, "arrive"):
		return domain.IntentETA
	case strings.Contains(text, "status") || strings.Contains(text, "where"):
		return domain.IntentStatus
	case strings.Contains(text, "delay"):
		return domain.IntentDelay
	default:
		return domain.IntentUnknown
	}
}

// Branch is the router's output: the next pipeline branch.
type Branch string

const (
	BranchRetrieval Branch = "retrieval"
	BranchAnalytics Branch = "analytics"
	BranchEnd       Branch = "end"
)

// Route is a pure, idempotent mapping from intent to branch. Unknown
// intents decline.
func Route(intent domain.Intent) Branch {
	switch intent {
	case domain.IntentAnalytics:
		return BranchAnalytics
	case domain.IntentETA, domain.IntentStatus, domain.IntentDelay:
		return BranchRetrieval
	default:
		return BranchEnd
	}
}
