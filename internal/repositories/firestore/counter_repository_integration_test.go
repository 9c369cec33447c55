//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"testing"
	"time"

	pconfig "github.com/beautydiscount/api/internal/platform/config"
	pfirestore "github.com/beautydiscount/api/internal/platform/firestore"
	"github.com/beautydiscount/api/internal/repositories"
)

func TestCounterRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	requireDockerDaemon(t)

	port := reservePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := runEmulatorContainer(t, port)
	t.Cleanup(func() { removeContainer(containerID) })

	awaitEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "counter-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewCounterRepository(provider)
	if err != nil {
		t.Fatalf("NewCounterRepository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// Concurrent checkouts must each draw a distinct order number.
	const workers = 16
	results := make([]int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			value, err := repo.Next(ctx, "orders:2025", 1)
			if err != nil {
				t.Errorf("Next(orders:2025) worker %d: %v", idx, err)
				return
			}
			results[idx] = value
		}(i)
	}

	wg.Wait()

	for _, val := range results {
		if val == 0 {
			t.Fatalf("counter values = %v, want no zeroes", results)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, val := range results {
		if want := int64(i + 1); val != want {
			t.Fatalf("counter value at position %d = %d, want %d", i, val, want)
		}
	}

	// A bounded counter refuses to go past its ceiling.
	max := int64(3)
	start := int64(0)
	if err := repo.Configure(ctx, "flash-sale:slots", repositories.CounterConfig{
		Step:         1,
		MaxValue:     &max,
		InitialValue: &start,
	}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	for i := int64(1); i <= max; i++ {
		value, err := repo.Next(ctx, "flash-sale:slots", 0)
		if err != nil {
			t.Fatalf("Next(flash-sale:slots) draw %d: %v", i, err)
		}
		if value != i {
			t.Fatalf("bounded counter value = %d, want %d", value, i)
		}
	}

	_, err = repo.Next(ctx, "flash-sale:slots", 0)
	if err == nil {
		t.Fatal("Next past the ceiling succeeded, want exhaustion error")
	}
	var counterErr *repositories.CounterError
	if !errors.As(err, &counterErr) {
		t.Fatalf("error type = %T (%v), want *repositories.CounterError", err, err)
	}
	if counterErr.Code != repositories.CounterErrorExhausted {
		t.Fatalf("counter error code = %s, want %s", counterErr.Code, repositories.CounterErrorExhausted)
	}
}
