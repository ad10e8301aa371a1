package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

// RequestBodyTooLargeRecorder records requests whose body hit the limit. Pass nil when metrics are disabled.
type RequestBodyTooLargeRecorder interface {
	RecordRequestBodyTooLarge(ctx context.Context)
}

// BodyLimits caps request bodies in bytes. Transcript uploads carry whole transcripts and get
// their own cap; everything else uses Default. Zero or negative disables a cap.
type BodyLimits struct {
	Default    int64
	Transcript int64
}

func (l BodyLimits) forRequest(r *http.Request) int64 {
	if r.Method == http.MethodPut && isTranscriptPath(r.URL.Path) {
		return l.Transcript
	}

	return l.Default
}

func isTranscriptPath(path string) bool {
	rest, ok := strings.CutPrefix(path, "/v1/videos/")
	if !ok {
		return false
	}

	id, ok := strings.CutSuffix(rest, "/transcript")

	return ok && id != "" && !strings.Contains(id, "/")
}

// MaxBody wraps request bodies in http.MaxBytesReader. Reads past the limit fail with
// *http.MaxBytesError, which handlers turn into 413.
func MaxBody(limits BodyLimits, recorder RequestBodyTooLargeRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := limits.forRequest(r)
			if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			body := &limitedBody{ReadCloser: http.MaxBytesReader(w, r.Body, limit)}
			if recorder != nil {
				ctx := r.Context()
				body.onLimit = func() { recorder.RecordRequestBodyTooLarge(ctx) }
			}

			r.Body = body
			next.ServeHTTP(w, r)
		})
	}
}

type limitedBody struct {
	io.ReadCloser

	once    sync.Once
	onLimit func()
}

// Read returns the underlying error as is; decoders compare against io.EOF.
func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)

	var tooLarge *http.MaxBytesError
	if err != nil && b.onLimit != nil && errors.As(err, &tooLarge) {
		b.once.Do(b.onLimit)
	}

	return n, err //nolint:wrapcheck // io.Reader contract
}
