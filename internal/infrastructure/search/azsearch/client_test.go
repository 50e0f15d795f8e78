package azsearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

func TestSearchSendsFilterAndKey(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/indexes/shipments/docs/search" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("api-key"); got != "secret" {
			t.Errorf("api-key header = %q, want secret", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		_, _ = w.Write([]byte(`{"value":[
			{"@search.score":1.7,"id":"d1","content":"container MSCU1234567 arriving","container_number":"MSCU1234567","discharge_port":"LONG BEACH"},
			{"@search.score":0.4,"id":"d2","content":"second","container_number":""}
		]}`))
	}))
	defer server.Close()

	client := NewWithOptions(server.URL, "shipments", "secret", Options{VectorField: "content_vector"})
	plan := domain.RetrievalPlan{
		QueryText: "MSCU1234567",
		TopK:      5,
		VectorK:   30,
		Filter:    "consignee_code_ids/any(t: search.in(t, '0002990', ','))",
	}

	docs, err := client.Search(context.Background(), plan)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if captured["filter"] != plan.Filter {
		t.Errorf("filter = %v, want %q", captured["filter"], plan.Filter)
	}
	if captured["top"] != float64(5) {
		t.Errorf("top = %v, want 5", captured["top"])
	}
	vq, ok := captured["vectorQueries"].([]any)
	if !ok || len(vq) != 1 {
		t.Fatalf("vectorQueries = %v, want one entry", captured["vectorQueries"])
	}
	leg := vq[0].(map[string]any)
	if leg["k"] != float64(30) || leg["fields"] != "content_vector" {
		t.Errorf("vector leg = %v, want k=30 fields=content_vector", leg)
	}

	if len(docs) != 2 {
		t.Fatalf("Search() returned %d documents, want 2", len(docs))
	}
	if docs[0].ID != "d1" || docs[0].Score != 1.7 || docs[0].ContainerNumber != "MSCU1234567" {
		t.Errorf("Search()[0] = %+v, want d1 with score 1.7", docs[0])
	}
	if docs[0].Fields["discharge_port"] != "LONG BEACH" {
		t.Errorf("Fields[discharge_port] = %v, want LONG BEACH", docs[0].Fields["discharge_port"])
	}
}

func TestSearchIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "shipments", "secret")
	_, err := client.Search(context.Background(), domain.RetrievalPlan{QueryText: "x", TopK: 5})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "index not found") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
