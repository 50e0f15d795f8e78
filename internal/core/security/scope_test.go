package security

import (
	"reflect"
	"testing"
)

func TestResolveScopeFailsClosedOnEmptyPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload any
	}{
		{"nil", nil},
		{"empty string", ""},
		{"whitespace string", "   "},
		{"only commas", ",,,"},
		{"empty slice", []string{}},
		{"whitespace slice", []string{" ", "\t"}},
		{"malformed shape", 42},
		{"malformed map", map[string]string{"a": "b"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			codes := ResolveScope("user-1", tc.payload)
			if len(codes) != 0 {
				t.Fatalf("ResolveScope(%v) = %v, expected empty set", tc.payload, codes)
			}
			if codes == nil {
				t.Fatalf("expected non-nil empty set")
			}
		})
	}
}

func TestResolveScopeNormalizesCommaString(t *testing.T) {
	codes := ResolveScope("user-1", " 0002990, 0009981 ,0002990,")
	want := []string{"0002990", "0009981"}
	if !reflect.DeepEqual(codes, want) {
		t.Fatalf("ResolveScope() = %v, want %v", codes, want)
	}
}

func TestResolveScopeAcceptsStringSequence(t *testing.T) {
	codes := ResolveScope("user-1", []any{"B", "A", "B", "  "})
	want := []string{"A", "B"}
	if !reflect.DeepEqual(codes, want) {
		t.Fatalf("ResolveScope() = %v, want %v", codes, want)
	}
}
