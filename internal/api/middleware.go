package api

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bluewatt/bluewatt-core/internal/auth"
	"github.com/bluewatt/bluewatt-core/internal/device"
)

// contextKey keeps request-scoped values from colliding with other packages.
type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyDevice    contextKey = "device"
	ctxKeyViewer    contextKey = "viewer"
)

// maxRequestBodySize caps request bodies at 64 KB. Ingestion payloads are
// small; anything larger is rejected outright.
const maxRequestBodySize = 64 << 10

// requestIDMiddleware tags every request with an ID for log correlation.
// A client-supplied X-Request-ID is honoured, otherwise one is minted.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

func newRequestID() string {
	var b [8]byte
	rand.Read(b[:]) //nolint:errcheck // never fails on supported platforms
	return hex.EncodeToString(b[:])
}

// loggingMiddleware emits one access-log line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	})
}

// recoveryMiddleware turns a handler panic into a logged 500 instead of a
// dropped connection.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("panic in handler",
					"panic", v,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware applies the configured CORS policy and answers preflight
// requests. An empty origin allowlist permits everything, which suits
// development but should be narrowed in production config.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	methods := joinOrDefault(s.cfg.CORS.AllowedMethods,
		"GET, POST, PUT, PATCH, DELETE, OPTIONS")
	headers := joinOrDefault(s.cfg.CORS.AllowedHeaders,
		"Authorization, Content-Type, X-API-Key, X-Request-ID")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.CORS.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.CORS.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func joinOrDefault(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return strings.Join(values, ", ")
}

// bodySizeLimitMiddleware rejects oversized request bodies before a handler
// tries to decode them.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// deviceAuthMiddleware resolves the X-API-Key header to a device identity.
// Every failure surfaces as a uniform 401 regardless of cause, so a probing
// caller cannot distinguish unknown secrets from revoked or inactive ones.
func (s *Server) deviceAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeUnauthorized(w, "missing API key")
			return
		}

		dev, err := s.resolver.Resolve(r.Context(), key)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthenticated) {
				s.logger.Error("credential resolution failed",
					"error", err,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
			}
			writeUnauthorized(w, "invalid API key")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyDevice, dev)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// viewerAuthMiddleware validates the Bearer JWT on viewer-facing routes.
// WebSocket clients cannot set headers from the browser, so a token query
// parameter is accepted as a fallback.
func (s *Server) viewerAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeUnauthorized(w, "missing access token")
			return
		}

		claims, err := auth.ParseToken(token, s.secCfg.JWT.Secret)
		if err != nil {
			writeUnauthorized(w, "invalid access token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyViewer, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return header[len(prefix):]
}

// deviceFromContext returns the credential-resolved device set by
// deviceAuthMiddleware.
func deviceFromContext(ctx context.Context) *device.Device {
	dev, _ := ctx.Value(ctxKeyDevice).(*device.Device) //nolint:errcheck // nil on missing key is the desired zero value
	return dev
}

// viewerFromContext returns the validated claims set by viewerAuthMiddleware.
func viewerFromContext(ctx context.Context) *auth.ViewerClaims {
	claims, _ := ctx.Value(ctxKeyViewer).(*auth.ViewerClaims) //nolint:errcheck // nil on missing key is the desired zero value
	return claims
}

// statusWriter records the response status for the access log. It forwards
// Flush and Hijack so the SSE and WebSocket handlers still reach the
// underlying connection through the middleware chain.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
