// Package handler provides HTTP handlers for the WeatherDeck API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/weatherdeck/weatherdeck/internal/api/models"
	"github.com/weatherdeck/weatherdeck/internal/api/response"
	"github.com/weatherdeck/weatherdeck/internal/provider/resilience"
)

// readinessTimeout bounds each readiness check.
const readinessTimeout = 2 * time.Second

// Check probes one subsystem. A nil error means healthy.
type Check func(ctx context.Context) error

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    map[string]Check
	now       func() time.Time
}

// OpsConfig holds configuration for the OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string
	// Registry reports upstream health. Nil reports no providers.
	Registry *resilience.Registry
	// Checks are run by the readiness and status endpoints, keyed by subsystem.
	Checks map[string]Check
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		checks:    cfg.Checks,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing subsystem makes the
// instance unready; upstream providers do not, since they degrade per entry.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	status := models.HealthStatusOK
	details := map[string]interface{}{}
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status != models.HealthStatusOK {
			status = models.HealthStatusFail
		}
	}

	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(h.now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - subsystem and upstream status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())
	providers := h.providerStatuses()

	overall := models.HealthStatusOK
	for _, s := range subsystems {
		overall = worst(overall, s.Status)
	}
	for _, p := range providers {
		overall = worst(overall, p.Status)
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(h.now()),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubsystemStatus, 0, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		err := h.checks[name](checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: name, Status: models.HealthStatusOK}
		if err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	upstreams := h.registry.All()
	out := make([]models.ProviderStatus, 0, len(upstreams))
	for _, u := range upstreams {
		p := models.ProviderStatus{
			Provider:            u.Name,
			CircuitState:        u.CircuitState.String(),
			Requests:            u.Counts.Requests,
			TotalFailures:       u.Counts.TotalFailures,
			ConsecutiveFailures: u.Counts.ConsecutiveFailures,
		}
		switch u.Status() {
		case resilience.StatusUnhealthy:
			p.Status = models.HealthStatusFail
		case resilience.StatusDegraded:
			p.Status = models.HealthStatusDegraded
		default:
			p.Status = models.HealthStatusOK
		}
		if u.LastSuccessAt != nil {
			ts := models.Timestamp(*u.LastSuccessAt)
			p.LastSuccessAt = &ts
		}
		if u.LastFailureAt != nil {
			ts := models.Timestamp(*u.LastFailureAt)
			p.LastFailureAt = &ts
		}
		if u.LastError != "" {
			msg := u.LastError
			p.Message = &msg
		}
		out = append(out, p)
	}
	return out
}

func worst(a, b models.HealthStatus) models.HealthStatus {
	rank := map[models.HealthStatus]int{
		models.HealthStatusOK:       0,
		models.HealthStatusDegraded: 1,
		models.HealthStatusFail:     2,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
