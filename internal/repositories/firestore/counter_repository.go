package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/beautydiscount/api/internal/platform/firestore"
	"github.com/beautydiscount/api/internal/repositories"
)

const countersCollection = "orderCounters"

type counterDoc struct {
	CurrentValue int64     `firestore:"currentValue"`
	Step         int64     `firestore:"step"`
	MaxValue     *int64    `firestore:"maxValue,omitempty"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// CounterRepository issues monotonically increasing sequence values from
// Firestore documents. Checkout draws the per-year order number from it.
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.BaseRepository[counterDoc]
}

// NewCounterRepository binds the repository to the provider.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider: provider,
		counters: pfirestore.NewBaseRepository[counterDoc](provider, countersCollection, nil, nil),
	}, nil
}

// Next increments the named counter inside a transaction and returns the new
// value. A missing counter document starts at the step value.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	if step < 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", step), nil)
	}

	var next int64

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.counters.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()

		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			seeded := seedCounter(step, now)
			if err := tx.Create(ref, seeded); err != nil {
				return err
			}
			next = seeded.CurrentValue
			return nil
		}
		if err != nil {
			return err
		}

		var doc counterDoc
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore counters decode %s: %w", id, err)
		}

		increment := step
		if increment <= 0 {
			increment = doc.Step
			if increment <= 0 {
				increment = 1
			}
		}

		value := doc.CurrentValue + increment
		if doc.MaxValue != nil && value > *doc.MaxValue {
			return repositories.NewCounterError(repositories.CounterErrorExhausted, fmt.Sprintf("counter %s exceeded max value %d", id, *doc.MaxValue), nil)
		}

		doc.CurrentValue = value
		doc.Step = increment
		doc.UpdatedAt = now

		if err := tx.Set(ref, doc, firestore.MergeAll); err != nil {
			return err
		}
		next = value
		return nil
	})
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) {
			return 0, counterErr
		}
		return 0, pfirestore.WrapError("counters.next", err)
	}
	return next, nil
}

func seedCounter(step int64, now time.Time) counterDoc {
	if step <= 0 {
		step = 1
	}
	return counterDoc{
		CurrentValue: step,
		Step:         step,
		UpdatedAt:    now,
	}
}

// Configure adjusts step, ceiling, or current value for the named counter.
func (r *CounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	if r == nil || r.provider == nil {
		return errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}

	fields := map[string]any{"updatedAt": time.Now().UTC()}
	if cfg.Step > 0 {
		fields["step"] = cfg.Step
	}
	if cfg.MaxValue != nil {
		fields["maxValue"] = *cfg.MaxValue
	}
	if cfg.InitialValue != nil {
		fields["currentValue"] = *cfg.InitialValue
	}

	ref, err := r.counters.DocumentRef(ctx, id)
	if err != nil {
		return err
	}

	if _, err := ref.Set(ctx, fields, firestore.MergeAll); err != nil {
		return pfirestore.WrapError("counters.configure", err)
	}
	return nil
}
