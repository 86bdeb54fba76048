package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	h "merchpos/internal/delivery/http/helpers"
)

const (
	// IdempotencyKeyHeader is the client-chosen key for a retryable write.
	IdempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	idempotencyTTL       = 24 * time.Hour
	// inProgressTTL bounds how long a crashed request can hold its key.
	inProgressTTL = time.Minute
)

// IdempotencyStore persists the first response recorded for an idempotency key.
// SetNX reserves a key before the handler runs and Set stores the final response.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Key(scope, id string) string
}

type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
	Pending     bool              `json:"pending,omitempty"`
}

// Idempotency replays the stored response when a request repeats an Idempotency-Key
// with the same body, and rejects the key with 409 when the body differs.
// The key is reserved before the handler runs, so a duplicate that arrives while the
// first request is still in flight gets 409 instead of executing twice.
// Requests without the header, and all requests when store is nil, pass through.
func Idempotency(store IdempotencyStore, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			idemKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if store == nil || idemKey == "" {
				next(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashBody(body)
			key := store.Key(buildScope(r), idemKey)

			stored, found, err := store.Get(r.Context(), key)
			if err != nil {
				logger.ErrorContext(r.Context(), "check idempotency", "path", r.URL.Path, "method", r.Method, "err", err)
				h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, "failed to check idempotency key")
				return
			}
			if found {
				answerExisting(w, r, logger, key, stored, requestHash)
				return
			}

			marker, _ := json.Marshal(idempotencyRecord{RequestHash: requestHash, Pending: true})
			reserved, err := store.SetNX(r.Context(), key, string(marker), inProgressTTL)
			if err != nil {
				logger.ErrorContext(r.Context(), "reserve idempotency key", "key", key, "err", err)
				h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, "failed to check idempotency key")
				return
			}
			if !reserved {
				// Lost the race to a concurrent request with the same key.
				stored, found, err = store.Get(r.Context(), key)
				if err != nil || !found {
					writeInProgress(w)
					return
				}
				answerExisting(w, r, logger, key, stored, requestHash)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			record := idempotencyRecord{
				Status:      status,
				Body:        base64.StdEncoding.EncodeToString(rec.body.Bytes()),
				RequestHash: requestHash,
			}
			if ct := rec.Header().Get("Content-Type"); ct != "" {
				record.Headers = map[string]string{"Content-Type": ct}
			}
			payload, err := json.Marshal(record)
			if err != nil {
				logger.ErrorContext(r.Context(), "marshal idempotency record", "err", err)
				return
			}
			if err := store.Set(r.Context(), key, string(payload), idempotencyTTL); err != nil {
				logger.ErrorContext(r.Context(), "persist idempotency record", "key", key, "err", err)
			}
		}
	}
}

func answerExisting(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key, stored, requestHash string) {
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		logger.ErrorContext(r.Context(), "decode idempotency record", "key", key, "err", err)
		h.WriteJSONError(w, http.StatusInternalServerError, h.ErrCodeInternalError, "failed to check idempotency key")
		return
	}
	if record.RequestHash != requestHash {
		h.WriteJSONError(w, http.StatusConflict, h.ErrCodeConflict, "idempotency key reused with a different request body")
		return
	}
	if record.Pending {
		writeInProgress(w)
		return
	}
	writeStoredResponse(w, &record)
}

func writeInProgress(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	h.WriteJSONError(w, http.StatusConflict, h.ErrCodeConflict, "a request with this idempotency key is still in progress")
}

func buildScope(r *http.Request) string {
	userID, _ := UserIDFromContext(r.Context())
	return strings.Join([]string{userID, r.Method, r.URL.Path}, "|")
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func writeStoredResponse(w http.ResponseWriter, record *idempotencyRecord) {
	for k, v := range record.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(record.Status)
	if body, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
		_, _ = w.Write(body)
	}
}

// responseCapture tees the response so it can be stored after the handler returns.
type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
