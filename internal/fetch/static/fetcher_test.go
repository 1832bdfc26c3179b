package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<html><body>
<div class="impression"><a href="/sa/ar/products/1">x</a></div>
</body></html>`

func TestLoadPageReturnsDocument(t *testing.T) {
	t.Parallel()

	var gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "catalog-test/1.0"})
	session, err := f.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer session.Close()

	html, err := session.LoadPage(context.Background(), srv.URL, ".impression", 5*time.Second)
	if err != nil {
		t.Fatalf("LoadPage: %v", err)
	}
	if !strings.Contains(html, "impression") {
		t.Errorf("returned document missing product card markup: %q", html)
	}
	if gotAgent != "catalog-test/1.0" {
		t.Errorf("user agent = %q, want catalog-test/1.0", gotAgent)
	}
}

func TestLoadPageMissingMarker(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>empty shell</p></body></html>`))
	}))
	defer srv.Close()

	f := New(Config{})
	session, err := f.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer session.Close()

	if _, err := session.LoadPage(context.Background(), srv.URL, ".impression", 5*time.Second); err == nil {
		t.Fatal("expected error for page without marker, got nil")
	}
}

func TestLoadPageServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := New(Config{})
	session, err := f.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer session.Close()

	if _, err := session.LoadPage(context.Background(), srv.URL, ".impression", 5*time.Second); err == nil {
		t.Fatal("expected error for 502 response, got nil")
	}
}
