package secrets

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultEnvironment  = "local"
	defaultFallbackPath = ".secrets.local"
	metricNamespace     = "github.com/beautydiscount/api/internal/platform/secrets"
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// Fetcher resolves secret:// references against Google Secret Manager. Values
// are cached per version, and a local file can stand in when the API is
// unreachable or denies access.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool

	logger *zap.Logger

	env            string
	defaultProject string
	projectMap     map[string]string
	versionPins    map[string]string

	fallbackPath   string
	fallbackOnce   sync.Once
	fallbackValues map[string]string
	fallbackErr    error

	mu       sync.RWMutex
	cache    map[string]cachedSecret
	watchers map[string][]chan struct{}

	meter            metric.Meter
	latency          metric.Float64Histogram
	latencyEnabled   bool
	cacheHits        metric.Int64Counter
	cacheHitsEnabled bool
}

type cachedSecret struct {
	value     string
	canonical string
	version   string
	fetchedAt time.Time
	source    string
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

type fetcherSettings struct {
	logger       *zap.Logger
	env          string
	defaultProj  string
	projectMap   map[string]string
	fallbackPath string
	meter        metric.Meter
	client       secretManagerClient
	clientOpts   []option.ClientOption
	versionPins  map[string]string
}

// Option adjusts Fetcher construction.
type Option func(*fetcherSettings)

// WithLogger attaches a logger for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherSettings) {
		cfg.logger = logger
	}
}

// WithEnvironment names the deployment environment used for project lookups.
func WithEnvironment(env string) Option {
	return func(cfg *fetcherSettings) {
		cfg.env = strings.ToLower(strings.TrimSpace(env))
	}
}

// WithDefaultProject sets the project used when the environment has no mapping.
func WithDefaultProject(projectID string) Option {
	return func(cfg *fetcherSettings) {
		cfg.defaultProj = strings.TrimSpace(projectID)
	}
}

// WithProjectMap maps environment names to Secret Manager project IDs.
func WithProjectMap(m map[string]string) Option {
	return func(cfg *fetcherSettings) {
		cfg.projectMap = copyMap(m)
	}
}

// WithFallbackFile points at the local key=value secrets file.
func WithFallbackFile(path string) Option {
	return func(cfg *fetcherSettings) {
		cfg.fallbackPath = strings.TrimSpace(path)
	}
}

// WithMeter swaps in a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) Option {
	return func(cfg *fetcherSettings) {
		cfg.meter = m
	}
}

// WithSecretManagerClient injects a prebuilt client. Tests use this with fakes.
func WithSecretManagerClient(client secretManagerClient) Option {
	return func(cfg *fetcherSettings) {
		cfg.client = client
	}
}

// WithClientOptions passes Cloud client options through to the default client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherSettings) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// WithVersionPins fixes specific secrets to explicit versions.
func WithVersionPins(pins map[string]string) Option {
	return func(cfg *fetcherSettings) {
		cfg.versionPins = copyMap(pins)
	}
}

func defaultSettings() fetcherSettings {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("API_SECURITY_ENVIRONMENT")))
	if env == "" {
		env = defaultEnvironment
	}
	return fetcherSettings{
		logger:       zap.NewNop(),
		env:          env,
		fallbackPath: defaultFallbackPath,
		projectMap:   map[string]string{},
		versionPins:  map[string]string{},
	}
}

// NewFetcher assembles a Fetcher. A missing Secret Manager client degrades to
// fallback-only operation instead of failing construction.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	latency, latencyErr := meter.Float64Histogram(
		"secrets.resolve.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Time spent resolving a secret reference, in milliseconds"),
	)
	if latencyErr != nil {
		cfg.logger.Warn("secrets: duration metric unavailable", zap.Error(latencyErr))
	}

	cacheHits, cacheErr := meter.Int64Counter(
		"secrets.resolve.cache_hits",
		metric.WithDescription("Secret resolutions served from the in-process cache"),
	)
	if cacheErr != nil {
		cfg.logger.Warn("secrets: cache hit metric unavailable", zap.Error(cacheErr))
	}

	f := &Fetcher{
		logger:           cfg.logger,
		env:              cfg.env,
		defaultProject:   cfg.defaultProj,
		projectMap:       copyMap(cfg.projectMap),
		versionPins:      copyMap(cfg.versionPins),
		fallbackPath:     cfg.fallbackPath,
		cache:            make(map[string]cachedSecret),
		watchers:         make(map[string][]chan struct{}),
		meter:            meter,
		latency:          latency,
		latencyEnabled:   latencyErr == nil,
		cacheHits:        cacheHits,
		cacheHitsEnabled: cacheErr == nil,
	}

	if cfg.client != nil {
		f.client = cfg.client
		return f, nil
	}

	client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
	if err != nil {
		cfg.logger.Warn("secrets: secret manager client unavailable; operating in fallback mode", zap.Error(err))
		return f, nil
	}
	f.client = client
	f.ownsClient = true
	return f, nil
}

// Close shuts watcher channels and the owned client.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	for canonical, watchers := range f.watchers {
		delete(f.watchers, canonical)
		for _, ch := range watchers {
			safeClose(ch)
		}
	}
	f.mu.Unlock()

	if f.ownsClient && f.client != nil {
		return f.client.Close()
	}
	return nil
}

// Resolve returns the secret value for ref, checking cache, then Secret
// Manager, then the local fallback file.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	version := f.pinnedVersion(parsed)
	key := cacheKey(parsed.Canonical, version)

	if value, ok := f.fromCache(key); ok {
		f.countCacheHit(ctx, parsed)
		f.observeLatency(ctx, time.Since(start), "cache", nil)
		return value, nil
	}

	projectID := f.resolveProject(parsed)

	if projectID != "" && f.client != nil {
		value, fetchErr := f.fetchRemote(ctx, projectID, parsed.Secret, version)
		if fetchErr == nil {
			f.remember(key, value, parsed.Canonical, version, "remote")
			f.observeLatency(ctx, time.Since(start), "remote", nil)
			return value, nil
		}
		if !fallbackWorthy(fetchErr) {
			f.observeLatency(ctx, time.Since(start), "error", fetchErr)
			return "", fmt.Errorf("secrets: fetch failed for %s: %w", parsed.Canonical, fetchErr)
		}
		f.logger.Debug("secrets: falling back to local secrets", zap.String("ref", parsed.Canonical), zap.Error(fetchErr))
	}

	value, ok := f.fromFallback(parsed, version)
	if !ok {
		err := fmt.Errorf("secrets: fallback value not found for %s", parsed.Canonical)
		f.observeLatency(ctx, time.Since(start), "error", err)
		return "", err
	}

	f.remember(key, value, parsed.Canonical, version, "fallback")
	f.observeLatency(ctx, time.Since(start), "fallback", nil)
	return value, nil
}

// Invalidate drops cached values for ref and wakes subscribers.
func (f *Fetcher) Invalidate(ref string) {
	parsed, err := parseReference(ref)
	if err != nil {
		return
	}

	f.mu.Lock()
	for key, entry := range f.cache {
		if entry.canonical == parsed.Canonical {
			delete(f.cache, key)
		}
	}
	watchers := f.watchers[parsed.Canonical]
	f.mu.Unlock()

	notifyWatchers(watchers)
}

// Subscribe returns a channel that fires when the secret is invalidated.
func (f *Fetcher) Subscribe(ref string) (<-chan struct{}, func()) {
	parsed, err := parseReference(ref)
	if err != nil {
		ch := make(chan struct{})
		close(ch)
		return ch, func() {}
	}

	ch := make(chan struct{}, 1)

	f.mu.Lock()
	f.watchers[parsed.Canonical] = append(f.watchers[parsed.Canonical], ch)
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		watchers := f.watchers[parsed.Canonical]
		for i, watcher := range watchers {
			if watcher == ch {
				watchers = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		if len(watchers) == 0 {
			delete(f.watchers, parsed.Canonical)
		} else {
			f.watchers[parsed.Canonical] = watchers
		}
	}

	return ch, cancel
}

// Notify reports an external rotation: cache is dropped and subscribers fire.
func (f *Fetcher) Notify(ref string) {
	f.Invalidate(ref)
}

func (f *Fetcher) fromCache(key string) (string, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[key]
	return entry.value, ok
}

func (f *Fetcher) remember(key, value, canonical, version, source string) {
	f.mu.Lock()
	f.cache[key] = cachedSecret{
		value:     value,
		canonical: canonical,
		version:   version,
		fetchedAt: time.Now(),
		source:    source,
	}
	f.mu.Unlock()
}

func (f *Fetcher) fetchRemote(ctx context.Context, projectID, secretName, version string) (string, error) {
	if f.client == nil {
		return "", errors.New("secrets: secret manager client not configured")
	}

	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, secretName, version)
	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Payload == nil {
		return "", fmt.Errorf("secret manager returned empty payload for %s", resourceName)
	}
	return string(resp.Payload.GetData()), nil
}

func (f *Fetcher) resolveProject(ref reference) string {
	if ref.ProjectOverride != "" {
		return ref.ProjectOverride
	}
	if id, ok := f.projectMap[f.env]; ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	return strings.TrimSpace(f.defaultProject)
}

// pinnedVersion picks the explicit version on the reference, then an
// environment-scoped pin, then a global pin, then latest.
func (f *Fetcher) pinnedVersion(ref reference) string {
	if ref.Version != "" {
		return ref.Version
	}
	for _, key := range []string{pinKey(f.env, ref.Canonical), ref.Canonical} {
		if pin, ok := f.versionPins[key]; ok && strings.TrimSpace(pin) != "" {
			return strings.TrimSpace(pin)
		}
	}
	return "latest"
}

func (f *Fetcher) fromFallback(ref reference, version string) (string, bool) {
	f.loadFallback()

	if f.fallbackErr != nil {
		f.logger.Debug("secrets: fallback load error", zap.Error(f.fallbackErr))
		return "", false
	}

	if val, ok := f.fallbackValues[cacheKey(ref.Canonical, version)]; ok {
		return val, true
	}
	if val, ok := f.fallbackValues[ref.Canonical]; ok {
		return val, true
	}
	return "", false
}

func (f *Fetcher) loadFallback() {
	f.fallbackOnce.Do(func() {
		f.fallbackValues = map[string]string{}

		path := strings.TrimSpace(f.fallbackPath)
		if path == "" {
			return
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}

		file, err := os.Open(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				f.fallbackErr = fmt.Errorf("secrets: unable to open fallback file %s: %w", path, err)
			}
			return
		}
		defer file.Close()

		values := make(map[string]string)
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			addFallbackLine(values, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			f.fallbackErr = fmt.Errorf("secrets: failed reading %s: %w", path, err)
		}
		f.fallbackValues = values
	})
}

// addFallbackLine parses one key=value line, indexing secret:// keys under
// both their canonical and versioned forms.
func addFallbackLine(values map[string]string, raw string) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	key, value, found := strings.Cut(line, "=")
	if !found {
		return
	}
	key = canonicalFallbackKey(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return
	}

	parsed, err := parseReference(key)
	if err != nil {
		values[key] = value
		return
	}
	version := parsed.Version
	if version == "" {
		version = "latest"
	}
	values[parsed.Canonical] = value
	values[cacheKey(parsed.Canonical, version)] = value
}

func (f *Fetcher) observeLatency(ctx context.Context, d time.Duration, source string, err error) {
	if !f.latencyEnabled {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("source", source),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
	}
	f.latency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

func (f *Fetcher) countCacheHit(ctx context.Context, ref reference) {
	if !f.cacheHitsEnabled {
		return
	}
	f.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("secret", hashRef(ref.Canonical))))
}

func notifyWatchers(watchers []chan struct{}) {
	for _, ch := range watchers {
		if ch == nil {
			continue
		}
		func() {
			defer func() {
				_ = recover()
			}()
			select {
			case ch <- struct{}{}:
			default:
			}
		}()
	}
}

func safeClose(ch chan struct{}) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

type reference struct {
	Raw             string
	Canonical       string
	Secret          string
	Version         string
	ProjectOverride string
}

func parseReference(ref string) (reference, error) {
	if strings.TrimSpace(ref) == "" {
		return reference{}, errors.New("secrets: empty reference")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	secret := strings.Trim(strings.TrimPrefix(u.Host+u.Path, "/"), "/")
	if secret == "" {
		return reference{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}

	canonical := *u
	canonical.RawQuery = ""
	canonical.Fragment = ""

	values := u.Query()

	return reference{
		Raw:             ref,
		Canonical:       canonical.String(),
		Secret:          secret,
		Version:         strings.TrimSpace(values.Get("version")),
		ProjectOverride: strings.TrimSpace(values.Get("project")),
	}, nil
}

func cacheKey(canonical, version string) string {
	return canonical + "#" + version
}

func pinKey(env, canonical string) string {
	if strings.TrimSpace(env) == "" {
		return canonical
	}
	return env + ":" + canonical
}

func copyMap(src map[string]string) map[string]string {
	if src == nil {
		return map[string]string{}
	}
	dst := make(map[string]string, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}

func hashRef(ref string) string {
	h := sha256.Sum256([]byte(ref))
	return hex.EncodeToString(h[:8])
}

// fallbackWorthy reports whether the remote failure is the kind the local
// file is meant to cover. Anything else surfaces to the caller.
func fallbackWorthy(err error) bool {
	if err == nil {
		return false
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func canonicalFallbackKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}
