package health

import (
	"context"
	"slices"

	"github.com/kailas-cloud/voicegate/internal/version"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that verification works but an auxiliary component failed.
	Degraded Status = "degraded"
	// Unhealthy indicates verification cannot be served.
	Unhealthy Status = "error"
	// Disabled indicates verification is switched off by configuration.
	Disabled Status = "disabled"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Check names.
const (
	CheckModel     = "model_loaded"
	CheckStore     = "store_connected"
	CheckHistory   = "history_connected"
	CheckExtractor = "extractor"
)

// Report aggregates health check results.
type Report struct {
	Status      Status
	Checks      map[string]CheckResult
	Collections []string
	Version     version.Info
}

// Serving reports whether the service can answer verification traffic.
func (r Report) Serving() bool {
	return r.Status == Healthy || r.Status == Degraded
}

// Service coordinates health checks.
type Service struct {
	verifier    Verifier
	store       Pinger
	history     Pinger
	extractor   ExtractorChecker
	collections []Collection
}

// New creates a Service. Store and verifier are required.
func New(verifier Verifier, store Pinger) *Service {
	return &Service{verifier: verifier, store: store}
}

// WithHistory adds the attempt log check.
func (s *Service) WithHistory(p Pinger) *Service {
	s.history = p
	return s
}

// WithExtractor adds the embedding extractor check.
func (s *Service) WithExtractor(e ExtractorChecker) *Service {
	s.extractor = e
	return s
}

// WithCollections adds collections whose indexes must exist.
func (s *Service) WithCollections(c ...Collection) *Service {
	s.collections = append(s.collections, c...)
	return s
}

// Check runs health checks against all components.
// A missing model, store, attempt log or collection index makes the service
// unhealthy; an extractor failure only degrades it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	critical := false

	checks[CheckModel] = result(s.verifier.ModelLoaded())
	if !s.verifier.ModelLoaded() {
		critical = true
	}

	storeOK := s.store.Ping(ctx) == nil
	checks[CheckStore] = result(storeOK)
	critical = critical || !storeOK

	// Verify fails when the attempt cannot be recorded.
	if s.history != nil {
		ok := s.history.Ping(ctx) == nil
		checks[CheckHistory] = result(ok)
		critical = critical || !ok
	}

	degraded := false
	if s.extractor != nil {
		ok := s.extractor.HealthCheck(ctx) == nil
		checks[CheckExtractor] = result(ok)
		degraded = degraded || !ok
	}

	var present []string
	if storeOK {
		for _, c := range s.collections {
			if ready, err := c.IndexReady(ctx); err == nil && ready {
				present = append(present, c.IndexName())
			}
		}
	}
	slices.Sort(present)
	if len(present) < len(s.collections) {
		critical = true
	}

	status := Healthy
	switch {
	case !s.verifier.Enabled():
		status = Disabled
	case critical:
		status = Unhealthy
	case degraded:
		status = Degraded
	}

	return Report{Status: status, Checks: checks, Collections: present, Version: version.Get()}
}

func result(ok bool) CheckResult {
	if ok {
		return CheckOK
	}
	return CheckError
}
