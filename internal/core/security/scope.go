package security

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// ResolveScope resolves the effective authorized consignee codes for a
// caller. The payload is either a comma-separated string or a sequence of
// strings; anything else is logged and denied. An empty, missing, or
// malformed payload yields an empty set, never an error and never a default
// allow-all.
//
// Validating that the identity is actually entitled to the requested codes
// is the entry point's concern; the resolver only normalizes fail-closed.
func ResolveScope(identity string, payload any) []string {
	if payload == nil {
		slog.Warn("scope_payload_missing", "identity", identity)
		return []string{}
	}

	var raw []string
	switch v := payload.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				s = fmt.Sprint(item)
			}
			raw = append(raw, s)
		}
	default:
		slog.Error("scope_payload_malformed", "identity", identity, "payload_type", fmt.Sprintf("%T", payload))
		return []string{}
	}

	seen := make(map[string]struct{}, len(raw))
	codes := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		codes = append(codes, c)
	}
	sort.Strings(codes)

	if len(codes) == 0 {
		slog.Warn("scope_resolved_empty", "identity", identity)
		return []string{}
	}

	slog.Info("scope_resolved", "identity", identity, "scope_count", len(codes))
	return codes
}
