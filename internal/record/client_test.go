package record

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stock_sync/internal/model"
)

func TestListSKUsByProductUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/skus" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("productId"); got != "p1" {
			t.Fatalf("productId = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "1000" {
			t.Fatalf("limit = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"_id":"s1","productId":"p1","stock":5},{"_id":"s2","productId":"p1","stock":"3"}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", 5*time.Second)
	skus, err := c.ListSKUsByProduct(context.Background(), "p1", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(skus) != 2 {
		t.Fatalf("len = %d, want 2", len(skus))
	}
	if skus[0].Stock != 5 || skus[1].Stock != 3 {
		t.Fatalf("stocks = %d,%d", skus[0].Stock, skus[1].Stock)
	}
}

func TestListSKUsByProductBarePayload(t *testing.T) {
	// 信封缺失时直接按载荷解码
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":"s1","stock":2}]`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", 5*time.Second)
	skus, err := c.ListSKUsByProduct(context.Background(), "p1", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(skus) != 1 || skus[0].Stock != 2 {
		t.Fatalf("skus = %+v", skus)
	}
}

func TestListSKUsByProductEmptyIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", 5*time.Second)
	skus, err := c.ListSKUsByProduct(context.Background(), "p1", 10)
	if err != nil {
		t.Fatalf("empty list must not be an error: %v", err)
	}
	if skus == nil || len(skus) != 0 {
		t.Fatalf("skus = %#v, want empty non-nil slice", skus)
	}
}

func TestGetProductNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", 5*time.Second)
	_, err := c.GetProduct(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSKUSendsPartialPatch(t *testing.T) {
	var got map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("method = %s", r.Method)
		}
		if r.URL.Path != "/skus/s1" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"data":{"_id":"s1","stock":9}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", 5*time.Second)
	stock := int64(9)
	updated, err := c.UpdateSKU(context.Background(), "s1", model.SKUPatch{Stock: &stock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got["stock"]; !ok {
		t.Fatal("patch must carry stock")
	}
	if _, ok := got["price"]; ok {
		t.Fatal("patch must not carry price when unset")
	}
	if updated.Stock != 9 {
		t.Fatalf("updated stock = %d, want 9", updated.Stock)
	}
}

func TestAPIKeyHeaderAttached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Record-Key"); got != "secret" {
			t.Fatalf("api key header = %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret", "X-Record-Key", 5*time.Second)
	if _, err := c.ListSKUsByProduct(context.Background(), "p1", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "", 5*time.Second)
	if _, err := c.ListSKUsByProduct(context.Background(), "p1", 10); err == nil {
		t.Fatal("expected error on 500")
	}
}
