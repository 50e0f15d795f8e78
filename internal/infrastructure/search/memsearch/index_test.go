package memsearch

import (
	"context"
	"testing"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

func seededIndex() *Index {
	x := New()
	x.Add(
		domain.Document{
			ID:              "d1",
			Content:         "container MSCU1234567 departed load port SHANGHAI",
			ContainerNumber: "MSCU1234567",
			Fields:          map[string]any{"consignee_code_ids": []string{"0002990"}},
		},
		domain.Document{
			ID:              "d2",
			Content:         "container TCNU7654321 delivered to final destination",
			ContainerNumber: "TCNU7654321",
			Fields:          map[string]any{"consignee_code_ids": []string{"9999999"}},
		},
		domain.Document{
			ID:              "d3",
			Content:         "container MSCU1234567 customs hold released",
			ContainerNumber: "MSCU1234567",
			Fields:          map[string]any{"consignee_code_ids": []string{"0002990", "0003001"}},
		},
	)
	return x
}

func TestSearchAppliesScopeFilter(t *testing.T) {
	x := seededIndex()
	plan := domain.RetrievalPlan{
		QueryText: "MSCU1234567",
		TopK:      5,
		Filter:    "consignee_code_ids/any(t: search.in(t, '0002990', ','))",
	}

	docs, err := x.Search(context.Background(), plan)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Search() returned %d documents, want 2", len(docs))
	}
	for _, doc := range docs {
		if doc.ID == "d2" {
			t.Errorf("out-of-scope document d2 returned")
		}
	}
}

func TestSearchFalseFilterMatchesNothing(t *testing.T) {
	x := seededIndex()
	docs, err := x.Search(context.Background(), domain.RetrievalPlan{QueryText: "container", TopK: 5, Filter: "false"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("Search() returned %d documents, want 0", len(docs))
	}
}

func TestSearchUnsupportedFilterErrors(t *testing.T) {
	x := seededIndex()
	if _, err := x.Search(context.Background(), domain.RetrievalPlan{QueryText: "container", Filter: "1 eq 1"}); err == nil {
		t.Fatalf("expected error for unsupported filter")
	}
}

func TestSearchHonorsTopK(t *testing.T) {
	x := seededIndex()
	plan := domain.RetrievalPlan{
		QueryText: "container delivered",
		TopK:      1,
		Filter:    "consignee_code_ids/any(t: search.in(t, '0002990,9999999', ','))",
	}
	docs, err := x.Search(context.Background(), plan)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("Search() returned %d documents, want 1", len(docs))
	}
}
