package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckProvider_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	ctx := context.Background()
	if err := CheckProvider(ctx, srv.URL); err != nil {
		t.Fatalf("CheckProvider: %v", err)
	}
}

func TestCheckProvider_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	ctx := context.Background()
	err := CheckProvider(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected error for 401")
	}
}

func TestCheckProvider_emptyURL(t *testing.T) {
	ctx := context.Background()
	err := CheckProvider(ctx, "")
	if err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestCheckFFProbe_missing(t *testing.T) {
	ctx := context.Background()
	if err := CheckFFProbe(ctx, "definitely-not-a-real-binary-name"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
