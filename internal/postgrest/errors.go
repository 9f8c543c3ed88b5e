package postgrest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"milk-delivery/internal/domain"
)

const maxErrorBodySize = 64 << 10

// Error is a PostgREST error response: the code and message of its JSON body.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return "store: " + e.Message
	}
	return fmt.Sprintf("store: %s: %s", e.Code, e.Message)
}

// Unwrap maps well-known codes onto domain sentinels so callers can use errors.Is.
func (e *Error) Unwrap() error {
	switch e.Code {
	case "PGRST116":
		return domain.ErrNotFound
	case "23505":
		return domain.ErrAlreadyExists
	case "42703", "PGRST204", "42P01":
		return domain.ErrSchemaMismatch
	}
	return nil
}

// The client reports error responses as "(code) message".
var clientErrorPattern = regexp.MustCompile(`(?s)^\(([^)]*)\) (.*)$`)

func fromClientError(table string, err error) error {
	if m := clientErrorPattern.FindStringSubmatch(err.Error()); m != nil {
		return &Error{Code: m[1], Message: m[2]}
	}
	return fmt.Errorf("%s: %w", table, err)
}

// roundTripper logs each store request and rewrites error bodies that are
// not PostgREST JSON, e.g. a gateway's HTML page, into the JSON error shape
// so the status text survives as the message.
type roundTripper struct {
	next   http.RoundTripper
	logger *zap.SugaredLogger
}

func (t *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debugw("store request failed", "method", req.Method, "path", req.URL.Path, "err", err)
		return nil, err
	}
	t.logger.Debugw("store request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)
	if resp.StatusCode >= http.StatusBadRequest {
		normalizeErrorBody(resp)
	}
	return resp, nil
}

func normalizeErrorBody(resp *http.Response) {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	_ = resp.Body.Close()

	var e Error
	if err := json.Unmarshal(raw, &e); err != nil || (e.Code == "" && e.Message == "") {
		e = Error{Message: http.StatusText(resp.StatusCode)}
		if detail := strings.TrimSpace(string(raw)); detail != "" {
			e.Message += ": " + detail
		}
		raw, _ = json.Marshal(e)
		resp.Header.Set("Content-Type", "application/json")
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	resp.ContentLength = int64(len(raw))
}
