package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()

	client := newStubSecretClient()
	resource := "projects/test/secrets/firebase_credentials/versions/latest"
	client.values[resource] = "remote-secret"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("test"),
		WithLogger(zap.NewNop()),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://firebase_credentials")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "remote-secret" {
		t.Fatalf("Resolve = %s, want remote-secret", got)
	}

	got, err = fetcher.Resolve(ctx, "secret://firebase_credentials")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if got != "remote-secret" {
		t.Fatalf("second Resolve = %s, want the cached remote-secret", got)
	}

	if calls := client.callCount(resource); calls != 1 {
		t.Fatalf("remote access count = %d, want 1", calls)
	}
}

func TestResolveFallsBackWhenSecretManagerUnavailable(t *testing.T) {
	ctx := context.Background()

	dir := t.TempDir()
	fallbackPath := filepath.Join(dir, ".secrets.local")
	if err := os.WriteFile(fallbackPath, []byte("secret://firebase_credentials=local-secret\n"), 0o600); err != nil {
		t.Fatalf("writing fallback file: %v", err)
	}

	client := newStubSecretClient()
	resource := "projects/test/secrets/firebase_credentials/versions/latest"
	client.errors[resource] = status.Error(codes.PermissionDenied, "denied")

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("test"),
		WithFallbackFile(fallbackPath),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://firebase_credentials")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "local-secret" {
		t.Fatalf("Resolve = %s, want local-secret from the fallback file", got)
	}
}

func TestInvalidateNotifiesSubscribers(t *testing.T) {
	ctx := context.Background()

	client := newStubSecretClient()
	resource := "projects/test/secrets/firebase_credentials/versions/latest"
	client.values[resource] = "remote-secret"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("test"),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	if _, err := fetcher.Resolve(ctx, "secret://firebase_credentials"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	ch, cancel := fetcher.Subscribe("secret://firebase_credentials")
	defer cancel()

	fetcher.Invalidate("secret://firebase_credentials")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after Invalidate")
	}
}

func TestResolveUsesVersionPins(t *testing.T) {
	ctx := context.Background()

	client := newStubSecretClient()
	resourcePinned := "projects/test/secrets/firebase_credentials/versions/5"
	client.values[resourcePinned] = "version-5"

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("test"),
		WithVersionPins(map[string]string{
			"secret://firebase_credentials": "5",
		}),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://firebase_credentials")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "version-5" {
		t.Fatalf("Resolve = %s, want version-5", got)
	}
	if calls := client.callCount(resourcePinned); calls != 1 {
		t.Fatalf("pinned version access count = %d, want 1", calls)
	}
}

func TestResolveDoesNotFallbackOnNotFound(t *testing.T) {
	ctx := context.Background()

	dir := t.TempDir()
	fallbackPath := filepath.Join(dir, ".secrets.local")
	if err := os.WriteFile(fallbackPath, []byte("secret://firebase_credentials=local-secret\n"), 0o600); err != nil {
		t.Fatalf("writing fallback file: %v", err)
	}

	client := newStubSecretClient()
	resource := "projects/test/secrets/firebase_credentials/versions/latest"
	client.errors[resource] = status.Error(codes.NotFound, "missing")

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithDefaultProject("test"),
		WithFallbackFile(fallbackPath),
	)
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	_, err = fetcher.Resolve(ctx, "secret://firebase_credentials")
	if err == nil {
		t.Fatal("Resolve succeeded, want an error for a missing secret")
	}
}

func TestNewFetcherWithoutCredentialsUsesFallback(t *testing.T) {
	ctx := context.Background()

	originalFactory := secretManagerClientFactory
	secretManagerClientFactory = func(context.Context, ...option.ClientOption) (*secretmanager.Client, error) {
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() {
		secretManagerClientFactory = originalFactory
	})

	dir := t.TempDir()
	fallbackPath := filepath.Join(dir, ".secrets.local")
	if err := os.WriteFile(fallbackPath, []byte("secret://firebase_credentials=local-secret\n"), 0o600); err != nil {
		t.Fatalf("writing fallback file: %v", err)
	}

	fetcher, err := NewFetcher(ctx, WithFallbackFile(fallbackPath))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}
	defer fetcher.Close()

	value, err := fetcher.Resolve(ctx, "secret://firebase_credentials")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if value != "local-secret" {
		t.Fatalf("Resolve = %s, want local-secret", value)
	}
}

type stubSecretClient struct {
	mu      sync.Mutex
	values  map[string]string
	errors  map[string]error
	counter map[string]int
}

func newStubSecretClient() *stubSecretClient {
	return &stubSecretClient{
		values:  make(map[string]string),
		errors:  make(map[string]error),
		counter: make(map[string]int),
	}
}

func (f *stubSecretClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetName()
	f.counter[name]++

	if err, ok := f.errors[name]; ok && err != nil {
		return nil, err
	}
	if value, ok := f.values[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (f *stubSecretClient) Close() error {
	return nil
}

func (f *stubSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counter[name]
}
