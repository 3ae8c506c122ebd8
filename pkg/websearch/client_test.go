package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchFormatsResults(t *testing.T) {
	var gotReq searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"answer": "Go 1.24 was released in February 2025.",
			"results": []map[string]string{
				{"title": "Go Blog", "url": "https://go.dev/blog", "content": "Release notes."},
				{"title": "Changelog", "url": "https://go.dev/doc", "content": "Details."},
			},
		})
	}))
	defer server.Close()

	c := NewClient("key", WithBaseURL(server.URL), WithMaxResults(2))
	out, err := c.Search(context.Background(), "go release date")
	if err != nil {
		t.Fatal(err)
	}

	if gotReq.Query != "go release date" || gotReq.MaxResults != 2 || !gotReq.IncludeAnswer {
		t.Errorf("request = %+v", gotReq)
	}
	if !strings.Contains(out, "February 2025") {
		t.Errorf("answer missing from %q", out)
	}
	if !strings.Contains(out, "- Go Blog (https://go.dev/blog): Release notes.") {
		t.Errorf("source line missing from %q", out)
	}
}

func TestSearchEmptyResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	out, err := NewClient("key", WithBaseURL(server.URL)).Search(context.Background(), "obscure")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No web results found") {
		t.Errorf("out = %q", out)
	}
}

func TestSearchMissingKey(t *testing.T) {
	_, err := NewClient("").Search(context.Background(), "anything")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestSearchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := NewClient("key", WithBaseURL(server.URL)).Search(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("err = %v, want a status error", err)
	}
}
