package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection  = "idempotencyKeys"
	defaultMaxAttempts = 5
)

// FirestoreOption adjusts FirestoreStore construction.
type FirestoreOption func(*FirestoreStore)

// WithCollection points the store at a different collection.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// WithMaxAttempts bounds transaction retries on contention.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(store *FirestoreStore) {
		if attempts > 0 {
			store.maxAttempts = attempts
		}
	}
}

// FirestoreStore keeps idempotency records in a Firestore collection so
// replays survive process restarts.
type FirestoreStore struct {
	client      *firestore.Client
	collection  string
	maxAttempts int
}

// NewFirestoreStore builds a store over the given client.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{
		client:      client,
		collection:  defaultCollection,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func (s *FirestoreStore) docRef(key, fingerprint string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(compositeKey(key, fingerprint))
}

func (s *FirestoreStore) txAttempts() int {
	if s.maxAttempts > 0 {
		return s.maxAttempts
	}
	return 1
}

func newPendingRecord(key, fingerprint string, now time.Time, ttl time.Duration) storedRecord {
	return storedRecord{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      string(StatusPending),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// Reserve claims the key for this fingerprint. A completed record comes back
// with the stored response; a live pending record means another request holds it.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.docRef(key, fingerprint)

	var result Reservation
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)

		var stored storedRecord
		switch {
		case status.Code(err) == codes.NotFound:
			stored = newPendingRecord(key, fingerprint, now, ttl)
			if err := tx.Set(ref, stored); err != nil {
				return err
			}
			result = Reservation{State: ReservationStateNew, Record: stored.asRecord()}
			return nil
		case err != nil:
			return err
		}

		if err := snap.DataTo(&stored); err != nil {
			return err
		}
		if stored.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}

		// An expired record is claimed as if it never existed.
		if !stored.ExpiresAt.IsZero() && !now.Before(stored.ExpiresAt) {
			stored = newPendingRecord(key, fingerprint, now, ttl)
			if err := tx.Set(ref, stored); err != nil {
				return err
			}
			result = Reservation{State: ReservationStateNew, Record: stored.asRecord()}
			return nil
		}

		state := ReservationStatePending
		if stored.Status == string(StatusCompleted) {
			state = ReservationStateCompleted
		}
		result = Reservation{State: state, Record: stored.asRecord()}
		return nil
	}, firestore.MaxAttempts(s.txAttempts()))

	return result, err
}

// SaveResponse marks the reservation completed and stores the response for replays.
func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.docRef(key, fingerprint)

	headers := sanitizeHeaders(resp.Headers)
	var bodyCopy []byte
	if len(resp.Body) > 0 {
		bodyCopy = append([]byte(nil), resp.Body...)
	}

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var stored storedRecord

		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			// SaveResponse after a lost reservation still records the outcome.
			stored = storedRecord{Key: key, Fingerprint: fingerprint, CreatedAt: now}
		case err != nil:
			return err
		default:
			if err := snap.DataTo(&stored); err != nil {
				return err
			}
			if stored.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			if stored.CreatedAt.IsZero() {
				stored.CreatedAt = now
			}
		}

		stored.Status = string(StatusCompleted)
		stored.ResponseStatus = resp.Status
		stored.ResponseHeaders = headers
		stored.ResponseBody = bodyCopy
		stored.UpdatedAt = now
		stored.ExpiresAt = now.Add(ttl)

		return tx.Set(ref, stored)
	}, firestore.MaxAttempts(s.txAttempts()))
}

// CleanupExpired deletes up to limit records whose retention window has passed.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	expired := s.client.Collection(s.collection).
		Where("expiresAt", "<=", now.UTC()).
		Limit(limit)
	docs, err := expired.Documents(ctx).GetAll()
	if err != nil || len(docs) == 0 {
		return 0, err
	}

	batch := s.client.Batch()
	for _, doc := range docs {
		batch.Delete(doc.Ref)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, err
	}

	return len(docs), nil
}

// Release drops the reservation so the caller may retry with the same key.
func (s *FirestoreStore) Release(ctx context.Context, key, fingerprint string) error {
	_, err := s.docRef(key, fingerprint).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

type storedRecord struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"responseStatus"`
	ResponseHeaders map[string][]string `firestore:"responseHeaders"`
	ResponseBody    []byte              `firestore:"responseBody"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	ExpiresAt       time.Time           `firestore:"expiresAt"`
}

func (r storedRecord) asRecord() Record {
	return Record{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          Status(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}
