package security

import (
	"fmt"
	"strings"
)

// FilterNone is the predicate that matches no records. It is what empty
// authorization sets compile to: row-level security fails closed at the
// query itself, not in application post-filtering.
const FilterNone = "false"

// BuildSearchFilter compiles an authorized code set into an OData filter
// for a collection-typed scoping field. Single quotes in codes are doubled
// to prevent predicate injection. search.in is used instead of a
// disjunction of equality terms so large sets stay cheap for the backend.
func BuildSearchFilter(codes []string, fieldName string) string {
	if len(codes) == 0 {
		return FilterNone
	}
	if fieldName == "" {
		fieldName = "consignee_code_ids"
	}

	escaped := make([]string, 0, len(codes))
	for _, c := range codes {
		escaped = append(escaped, strings.ReplaceAll(c, "'", "''"))
	}

	return fmt.Sprintf("%s/any(t: search.in(t, '%s', ','))", fieldName, strings.Join(escaped, ","))
}
