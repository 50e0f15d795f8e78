// Package azsearch talks to an Azure AI Search index over its REST API.
package azsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

const apiVersion = "2024-07-01"

type Client struct {
	baseURL     string
	indexName   string
	apiKey      string
	vectorField string
	httpClient  *http.Client
}

type Options struct {
	// VectorField is the index field holding content embeddings. Empty
	// disables the hybrid vector leg and runs pure keyword search.
	VectorField    string
	RequestTimeout time.Duration
}

func New(baseURL, indexName, apiKey string) *Client {
	return NewWithOptions(baseURL, indexName, apiKey, Options{})
}

func NewWithOptions(baseURL, indexName, apiKey string, options Options) *Client {
	timeout := options.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		indexName:   indexName,
		apiKey:      apiKey,
		vectorField: options.VectorField,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Search runs a hybrid (keyword + text-to-vector) query. The plan's filter
// is forwarded verbatim; the service applies it server-side before ranking,
// so out-of-scope rows never reach the caller.
func (c *Client) Search(ctx context.Context, plan domain.RetrievalPlan) ([]domain.Document, error) {
	reqBody := map[string]any{
		"search": plan.QueryText,
		"top":    plan.TopK,
	}
	if plan.Filter != "" {
		reqBody["filter"] = plan.Filter
	}
	if c.vectorField != "" && plan.VectorK > 0 {
		reqBody["vectorQueries"] = []map[string]any{
			{
				"kind":   "text",
				"text":   plan.QueryText,
				"fields": c.vectorField,
				"k":      plan.VectorK,
			},
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", c.baseURL, c.indexName, apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(detail)); msg != "" {
			return nil, fmt.Errorf("search status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("search status: %s", resp.Status)
	}

	var searchResp struct {
		Value []map[string]any `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.Document, 0, len(searchResp.Value))
	for _, raw := range searchResp.Value {
		doc := domain.Document{
			ID:              getString(raw, "id"),
			Content:         getString(raw, "content"),
			ContainerNumber: getString(raw, "container_number"),
			Fields:          map[string]any{},
		}
		if score, ok := raw["@search.score"].(float64); ok {
			doc.Score = score
		}
		for key, value := range raw {
			if strings.HasPrefix(key, "@search.") {
				continue
			}
			switch key {
			case "id", "content", "container_number":
			default:
				doc.Fields[key] = value
			}
		}
		out = append(out, doc)
	}
	return out, nil
}

func getString(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
