package voicegate

import (
	"context"

	healthuc "github.com/kailas-cloud/voicegate/internal/usecase/health"
)

// HealthStatus represents the aggregated engine health.
type HealthStatus struct {
	Status      string            // "ok", "degraded", "error", "disabled"
	Checks      map[string]string // component → "ok"/"error"
	Collections []string
}

// Ready reports whether the engine can serve verifications.
func (h HealthStatus) Ready() bool {
	return h.Status == string(healthuc.Healthy) || h.Status == string(healthuc.Degraded)
}

// Health checks the model, the vector store, the history database and both collections.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:      string(report.Status),
		Checks:      checks,
		Collections: report.Collections,
	}
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
