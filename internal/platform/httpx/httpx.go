// Package httpx provides HTTP middleware and JSON helpers shared by the
// HTTP services.
package httpx

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/louisbranch/oilandrope/internal/platform/id"
	platformotel "github.com/louisbranch/oilandrope/internal/platform/otel"
	gootel "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader carries the correlation id.
const RequestIDHeader = "X-Request-ID"

// MaxJSONBody caps JSON request bodies.
const MaxJSONBody = 1 << 20

// Middleware wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware in declaration order.
func Chain(handler http.Handler, middleware ...Middleware) http.Handler {
	if handler == nil {
		handler = http.NotFoundHandler()
	}
	wrapped := handler
	for idx := len(middleware) - 1; idx >= 0; idx-- {
		if middleware[idx] == nil {
			continue
		}
		wrapped = middleware[idx](wrapped)
	}
	return wrapped
}

// RequestID injects and echoes a request id for correlation.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if requestID == "" {
				generated, err := id.NewID()
				if err == nil {
					requestID = generated
					r.Header.Set(RequestIDHeader, requestID)
				}
			}
			if requestID != "" {
				w.Header().Set(RequestIDHeader, requestID)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RecoverPanic converts panics into HTTP 500 responses.
func RecoverPanic() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					log.Printf(
						"http: panic recovered method=%s path=%s request_id=%s panic=%v stack=%s",
						r.Method,
						r.URL.Path,
						r.Header.Get(RequestIDHeader),
						recovered,
						strings.TrimSpace(string(debug.Stack())),
					)
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Trace starts a server span per request, named after the matched route.
func Trace(service string) Middleware {
	tracer := platformotel.Tracer(service)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := gootel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			rec := NewStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			if pattern := r.Pattern; pattern != "" {
				span.SetName(pattern)
			}
			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.Int("http.response.status_code", rec.Status()),
			)
			if rec.Status() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.Status()))
			}
		})
	}
}

// StatusRecorder remembers the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	status int
}

// NewStatusRecorder wraps w.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w}
}

// WriteHeader records the status and forwards it.
func (r *StatusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

// Write defaults the status to 200 like net/http does.
func (r *StatusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Status returns the recorded status, 200 when nothing was written.
func (r *StatusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush forwards streamed responses such as server-sent events.
func (r *StatusRecorder) Flush() {
	_ = http.NewResponseController(r.ResponseWriter).Flush()
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

// WriteJSON writes a JSON response with the provided status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	if w == nil {
		return fmt.Errorf("response writer is required")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}

// DecodeJSON decodes a size-limited JSON body into dst, rejecting unknown
// fields and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	if decoder.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}
