package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Status is the lifecycle state of a stored idempotency record.
type Status string

const (
	// DefaultTTL is how long a record is kept before the key may be reused.
	DefaultTTL = 24 * time.Hour

	// StatusPending marks a key that is reserved while its request runs.
	StatusPending Status = "pending"
	// StatusCompleted marks a key whose response is stored and replayable.
	StatusCompleted Status = "completed"
)

// ReservationState is the outcome of a Reserve call.
type ReservationState int

const (
	// ReservationStateNew means the key was free and now belongs to the caller.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a stored response exists and should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means another request currently holds the key.
	ReservationStatePending
)

// Reservation is the result of reserving a key, with the stored record when one exists.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the persisted state of one idempotency key.
type Record struct {
	Key             string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response holds the HTTP response captured for replaying.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists reservations and recorded responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch means the key was reused with a different request body or path.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

// compositeKey derives the document id from the client-supplied key. The
// fingerprint is stored on the record and checked there, not mixed into the id,
// so a reused key with a different payload is detected instead of silently
// creating a second record.
func compositeKey(key, fingerprint string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// sanitizeHeaders copies the headers worth replaying, dropping hop-by-hop
// and length headers that the replay writer recomputes.
func sanitizeHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}

	kept := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if skipHeader(canonical) {
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		kept[canonical] = copied
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func skipHeader(name string) bool {
	switch strings.ToLower(name) {
	case "content-length", "date", "connection", "keep-alive", "proxy-authenticate", "proxy-authorization", "te", "trailers", "transfer-encoding", "upgrade":
		return true
	default:
		return false
	}
}

func headersFromRecord(values map[string][]string) http.Header {
	if len(values) == 0 {
		return http.Header{}
	}

	header := make(http.Header, len(values))
	for name, vals := range values {
		copied := make([]string, len(vals))
		copy(copied, vals)
		header[name] = copied
	}
	return header
}
