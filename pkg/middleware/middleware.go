package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/diagnosis/interview-board/pkg/logger"
	"github.com/diagnosis/interview-board/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestID adds a unique request ID to each request
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), logger.RequestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging logs HTTP requests with structured logging
func Logging(next http.Handler) http.Handler {
	return middleware.RequestLogger(&StructuredLogger{})(next)
}

type StructuredLogger struct{}

func (l *StructuredLogger) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &StructuredLogEntry{
		request: r,
		start:   time.Now(),
	}
}

type StructuredLogEntry struct {
	request *http.Request
	start   time.Time
}

func (l *StructuredLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	logger.InfoContext(l.request.Context(), "HTTP request completed",
		"method", l.request.Method,
		"path", l.request.URL.Path,
		"status", status,
		"bytes", bytes,
		"elapsed_ms", elapsed.Milliseconds(),
		"user_agent", l.request.UserAgent(),
		"remote_addr", l.request.RemoteAddr,
	)
}

func (l *StructuredLogEntry) Panic(v interface{}, stack []byte) {
	logger.ErrorContext(l.request.Context(), "HTTP request panic",
		"panic", v,
		"stack", string(stack),
		"method", l.request.Method,
		"path", l.request.URL.Path,
	)
}

// ServiceName adds service name to context for logging
func ServiceName(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), logger.ServiceKey, name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Metrics serves /metrics and records request latency by route pattern.
func Metrics(next http.Handler) http.Handler {
	exposition := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			exposition.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.ObserveHTTP(r.Method, route, strconv.Itoa(status), start)
	})
}

// Health answers GET / and GET /healthz without touching the rest of the stack.
func Health(port string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet && (r.URL.Path == "/healthz" || r.URL.Path == "/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"status": "ok",
					"port":   port,
					"time":   time.Now().UTC().Format(time.RFC3339),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	// Reserve stores value only when key is free and reports whether it did.
	Reserve(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const (
	idempotencyTTL     = 24 * time.Hour
	idempotencyLockTTL = time.Minute
	idempotencyPending = "pending"
)

type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// IdempotencyMiddleware replays the first successful response for a repeated
// Idempotency-Key. scope namespaces keys, usually by caller, so two callers
// cannot collide on the same key. The key is reserved before the handler
// runs; a second request arriving while the first is in flight gets 409.
// Failed responses release the key so the client can retry.
func IdempotencyMiddleware(store IdempotencyStore, scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			hashedKey := hashIdempotencyKey(scope(r), r.URL.Path, key)

			reserved, err := store.Reserve(ctx, hashedKey, idempotencyPending, idempotencyLockTTL)
			if err != nil {
				logger.WarnContext(ctx, "idempotency reserve failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !reserved {
				existing, err := store.Get(ctx, hashedKey)
				if err != nil {
					logger.WarnContext(ctx, "idempotency lookup failed", "error", err)
				}
				if replay(w, existing) {
					return
				}
				writeInFlight(w)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			if recorder.statusCode >= 200 && recorder.statusCode < 300 && json.Valid(recorder.body) {
				payload, err := json.Marshal(cachedResponse{Status: recorder.statusCode, Body: recorder.body})
				if err == nil {
					if err := store.Set(ctx, hashedKey, string(payload), idempotencyTTL); err != nil {
						logger.WarnContext(ctx, "idempotency store failed", "error", err)
					}
					return
				}
			}
			if err := store.Delete(ctx, hashedKey); err != nil {
				logger.WarnContext(ctx, "idempotency release failed", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, existing string) bool {
	if existing == "" || existing == idempotencyPending {
		return false
	}
	var cached cachedResponse
	if err := json.Unmarshal([]byte(existing), &cached); err != nil {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cached.Status)
	_, _ = w.Write(cached.Body)
	return true
}

func writeInFlight(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "A request with this Idempotency-Key is still in progress",
		"code":  "IDEMPOTENCY_IN_FLIGHT",
	})
}

func hashIdempotencyKey(scope, path, key string) string {
	sum := sha256.Sum256([]byte(scope + "\x00" + path + "\x00" + key))
	return fmt.Sprintf("idempotency:%x", sum)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       []byte
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(body []byte) (int, error) {
	r.body = append(r.body, body...)
	return r.ResponseWriter.Write(body)
}
