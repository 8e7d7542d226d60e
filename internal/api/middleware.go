package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/shopcore/internal/domain"
)

// Context keys for sales channel, origin and trace propagation.
type contextKey string

const (
	// SalesChannelKey is the context key for the SalesChannelContext.
	SalesChannelKey contextKey = "salesChannel"

	// OriginKey is the context key for the request origin.
	OriginKey contextKey = "origin"

	// TraceIDKey is the context key for trace ID.
	TraceIDKey contextKey = "traceID"

	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "requestID"

	// AccessKeyHeader is the storefront access key header. Its value
	// identifies the sales channel.
	AccessKeyHeader = "sw-access-key"

	// SalesChannelIDHeader selects the sales channel explicitly.
	SalesChannelIDHeader = "X-Sales-Channel-ID"

	// CustomerIDHeader carries the logged in customer, if any.
	CustomerIDHeader = "X-Customer-ID"

	// ContextTokenHeader carries the storefront context token.
	ContextTokenHeader = "sw-context-token"

	// RequestIDHeader is the HTTP header for request ID.
	RequestIDHeader = "X-Request-ID"

	// TraceIDHeader is the HTTP header for trace ID.
	TraceIDHeader = "X-Trace-ID"
)

var tracer = otel.Tracer("shopcore-api")

// OriginMiddleware derives the request origin from the URL prefix.
func OriginMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), OriginKey, originOf(r.URL.Path))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func originOf(path string) domain.Origin {
	switch {
	case path == "/store-api" || strings.HasPrefix(path, "/store-api/"):
		return domain.OriginStorefrontAPI
	case path == "/api" || strings.HasPrefix(path, "/api/"):
		return domain.OriginAPI
	}
	return domain.OriginSystem
}

// SalesChannelMiddleware builds the SalesChannelContext of a storefront
// request. The sales channel is taken from X-Sales-Channel-ID, falling back
// to the sw-access-key header.
func SalesChannelMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		salesChannelID := r.Header.Get(SalesChannelIDHeader)
		if salesChannelID == "" {
			salesChannelID = r.Header.Get(AccessKeyHeader)
		}
		if salesChannelID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "sw-access-key or X-Sales-Channel-ID header is required",
			})
			return
		}

		sc := domain.SalesChannelContext{
			SalesChannelID: salesChannelID,
			Origin:         GetOrigin(r.Context()),
			Token:          r.Header.Get(ContextTokenHeader),
		}
		if customerID := r.Header.Get(CustomerIDHeader); customerID != "" {
			sc.Customer = &domain.Customer{ID: customerID}
		}

		reportSalesChannel(w, salesChannelID)

		ctx := context.WithValue(r.Context(), SalesChannelKey, sc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TracingMiddleware creates OpenTelemetry spans and propagates trace context.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
				attribute.String("request.id", requestID),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		if !span.SpanContext().TraceID().IsValid() {
			traceID = requestID
		}

		ctx = context.WithValue(ctx, RequestIDKey, requestID)
		ctx = context.WithValue(ctx, TraceIDKey, traceID)

		w.Header().Set(RequestIDHeader, requestID)
		w.Header().Set(TraceIDHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs HTTP requests with structured logging.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// SalesChannelMiddleware runs further down the chain and reports
		// the sales channel back through the recorder.
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		requestID, _ := r.Context().Value(RequestIDKey).(string)
		traceID, _ := r.Context().Value(TraceIDKey).(string)

		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"sales_channel_id", rw.salesChannelID,
			"request_id", requestID,
			"trace_id", traceID,
		)
	})
}

// CORSMiddleware handles Cross-Origin Resource Sharing for browser clients.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, sw-access-key, sw-context-token, X-Sales-Channel-ID, X-Customer-ID, X-Request-ID, X-Trace-ID, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Trace-ID")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RecoverMiddleware recovers from panics and returns 500.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"error", err,
					"path", r.URL.Path,
				)
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode     int
	salesChannelID string
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// reportSalesChannel records the sales channel on the logging recorder,
// if the writer chain contains one.
func reportSalesChannel(w http.ResponseWriter, salesChannelID string) {
	for w != nil {
		if rw, ok := w.(*responseWriter); ok {
			rw.salesChannelID = salesChannelID
			return
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return
		}
		w = u.Unwrap()
	}
}

// GetSalesChannel extracts the SalesChannelContext from context.
func GetSalesChannel(ctx context.Context) domain.SalesChannelContext {
	if v, ok := ctx.Value(SalesChannelKey).(domain.SalesChannelContext); ok {
		return v
	}
	return domain.SalesChannelContext{Origin: GetOrigin(ctx)}
}

// GetOrigin extracts the request origin from context.
func GetOrigin(ctx context.Context) domain.Origin {
	if v, ok := ctx.Value(OriginKey).(domain.Origin); ok {
		return v
	}
	return domain.OriginSystem
}

// GetTraceID extracts trace ID from context.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}
