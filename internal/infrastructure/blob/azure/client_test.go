package azure

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDownloadBuildsBlobURLWithSAS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/datasets/master.xlsx" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.RawQuery; got != "sv=2021&sig=abc" {
			t.Errorf("query = %q, want SAS token", got)
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	client := New(server.URL, "?sv=2021&sig=abc")
	body, err := client.Download(context.Background(), "datasets", "master.xlsx")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("Download() body = %q, want payload", data)
	}
}

func TestDownloadIncludesStatusInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "BlobNotFound", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "")
	_, err := client.Download(context.Background(), "datasets", "missing.xlsx")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "BlobNotFound") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}
