package handlers

import (
	"net/http"
	"time"

	domain "github.com/beautydiscount/api/internal/domain"
	"github.com/beautydiscount/api/internal/services"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	build  services.BuildInfo
	system services.SystemService
	clock  func() time.Time
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata reported by the liveness probe.
func WithHealthBuildInfo(build services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthSystemService wires the dependency checks consulted by readiness.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthClock overrides the clock, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs health handlers with the provided options.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	CommitSHA   string `json:"commitSha,omitempty"`
	Environment string `json:"environment,omitempty"`
	Timestamp   string `json:"timestamp"`
}

type readinessResponse struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version,omitempty"`
	CommitSHA   string                    `json:"commitSha,omitempty"`
	Environment string                    `json:"environment,omitempty"`
	Uptime      string                    `json:"uptime,omitempty"`
	GeneratedAt string                    `json:"generatedAt,omitempty"`
	Checks      map[string]readinessCheck `json:"checks,omitempty"`
}

type readinessCheck struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Healthz reports process liveness along with build metadata.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, healthResponse{
		Status:      string(domain.HealthStatusOK),
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Timestamp:   formatTime(h.clock()),
	})
}

// Readyz probes dependencies through the system service. A degraded report
// still answers 200 so the instance keeps serving; only hard errors flip the
// probe to 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, readinessResponse{
			Status: string(domain.HealthStatusError),
		})
		return
	}

	status := http.StatusOK
	if report.Status == domain.HealthStatusError {
		status = http.StatusServiceUnavailable
	}

	response := readinessResponse{
		Status:      string(report.Status),
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
	}
	if report.Uptime > 0 {
		response.Uptime = report.Uptime.String()
	}
	if !report.GeneratedAt.IsZero() {
		response.GeneratedAt = formatTime(report.GeneratedAt)
	}
	if len(report.Checks) > 0 {
		response.Checks = make(map[string]readinessCheck, len(report.Checks))
		for name, check := range report.Checks {
			entry := readinessCheck{
				Status: string(check.Status),
				Detail: check.Detail,
				Error:  check.Error,
			}
			if check.Latency > 0 {
				entry.Latency = check.Latency.String()
			}
			response.Checks[name] = entry
		}
	}

	writeJSONResponse(w, status, response)
}
