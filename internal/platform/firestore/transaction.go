package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxRetries = 5
	defaultTxWindow  = 15 * time.Second
)

// TxFunc runs inside a Firestore transaction. Returning an error aborts it.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption tunes retry and timeout behaviour of RunTransaction.
type TxOption func(*txSettings)

type txSettings struct {
	retries int
	window  time.Duration
}

// WithTxAttempts caps how often a contended transaction is retried.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.retries = attempts
		}
	}
}

// WithTxTimeout bounds the total time a transaction may run.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.window = timeout
		}
	}
}

// RunTransaction executes fn transactionally on client. Errors come back
// wrapped through WrapError so repositories can classify them.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	settings := txSettings{retries: defaultTxRetries, window: defaultTxWindow}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	txCtx := ctx
	if settings.window > 0 {
		// Only tighten the deadline, never loosen an existing one.
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > settings.window {
			var cancel context.CancelFunc
			txCtx, cancel = context.WithTimeout(ctx, settings.window)
			defer cancel()
		}
	}

	var txOpts []firestore.TransactionOption
	if settings.retries > 0 {
		txOpts = append(txOpts, firestore.MaxAttempts(settings.retries))
	}

	err := client.RunTransaction(txCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, tx)
	}, txOpts...)

	return WrapError("transaction", err)
}
