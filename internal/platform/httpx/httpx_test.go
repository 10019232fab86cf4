package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	handler := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("a"), nil, mark("b"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b,handler" {
		t.Fatalf("order = %v", order)
	}
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	handler := RequestID()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "given")
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "given" {
		t.Fatalf("request id = %q, want given", got)
	}
}

func TestRecoverPanic(t *testing.T) {
	handler := RecoverPanic()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestTraceRecordsStatus(t *testing.T) {
	handler := Trace("test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Roll string `json:"roll"`
	}
	decode := func(body string) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return DecodeJSON(httptest.NewRecorder(), req, &dst)
	}
	if err := decode(`{"roll":"1d20"}`); err != nil || dst.Roll != "1d20" {
		t.Fatalf("decode = %v, roll = %q", err, dst.Roll)
	}
	if err := decode(``); err == nil {
		t.Fatal("expected error for empty body")
	}
	if err := decode(`{"other":1}`); err == nil {
		t.Fatal("expected error for unknown field")
	}
	if err := decode(`{"roll":"d4"}{"roll":"d6"}`); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteJSON(rec, http.StatusCreated, map[string]string{"id": "x"}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"id":"x"`) {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
}
