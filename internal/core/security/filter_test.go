package security

import (
	"strings"
	"testing"
)

func TestBuildSearchFilterEmptySetMatchesNothing(t *testing.T) {
	if got := BuildSearchFilter(nil, "consignee_code_ids"); got != FilterNone {
		t.Fatalf("BuildSearchFilter(nil) = %q, want %q", got, FilterNone)
	}
	if got := BuildSearchFilter([]string{}, "consignee_code_ids"); got != FilterNone {
		t.Fatalf("BuildSearchFilter([]) = %q, want %q", got, FilterNone)
	}
}

func TestBuildSearchFilterContainsEveryCodeOnce(t *testing.T) {
	codes := []string{"0002990", "0009981", "A17"}
	filter := BuildSearchFilter(codes, "consignee_code_ids")

	for _, c := range codes {
		if n := strings.Count(filter, c); n != 1 {
			t.Fatalf("filter %q contains %q %d times, want 1", filter, c, n)
		}
	}
	if !strings.HasPrefix(filter, "consignee_code_ids/any(t: search.in(t, '") {
		t.Fatalf("unexpected filter shape: %q", filter)
	}
}

func TestBuildSearchFilterEscapesSingleQuotes(t *testing.T) {
	filter := BuildSearchFilter([]string{"o'brien"}, "consignee_code_ids")
	if !strings.Contains(filter, "o''brien") {
		t.Fatalf("expected doubled quotes in %q", filter)
	}
}

func TestBuildSearchFilterDefaultsFieldName(t *testing.T) {
	filter := BuildSearchFilter([]string{"X"}, "")
	if !strings.HasPrefix(filter, "consignee_code_ids/") {
		t.Fatalf("expected default field name, got %q", filter)
	}
}
