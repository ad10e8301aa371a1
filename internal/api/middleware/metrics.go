package middleware

import (
	"net/http"
	"regexp"
	"time"

	"github.com/tipsearch/hub/internal/observability"
)

// Collection ids are 32 hex characters; anything after /videos/ is a video id.
var (
	collectionSegment = regexp.MustCompile(`^/v1/collections/[^/]+$`)
	videoSegment      = regexp.MustCompile(`^/v1/videos/[^/]+/`)
)

// Metrics records request count and duration. A nil metrics disables recording.
// Put it outermost so the duration covers the whole chain.
func Metrics(metrics observability.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r)

			metrics.RecordRequest(r.Context(), r.Method, normalizeRoute(r.URL.Path), statusToClass(rw.statusCode),
				time.Since(start))
		})
	}
}

// normalizeRoute replaces id path segments so the route label has bounded cardinality.
func normalizeRoute(path string) string {
	if collectionSegment.MatchString(path) {
		return "/v1/collections/{id}"
	}

	return videoSegment.ReplaceAllString(path, "/v1/videos/{video_id}/")
}

func statusToClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status >= 100:
		return "1xx"
	default:
		return "unknown"
	}
}

// responseWriter remembers the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter

	statusCode  int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}

	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
