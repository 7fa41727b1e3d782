package health

import "context"

// Pinger checks availability of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ExtractorChecker checks embedding extractor availability.
type ExtractorChecker interface {
	HealthCheck(ctx context.Context) error
}

// Verifier reports the readiness of the verification engine.
type Verifier interface {
	Enabled() bool
	ModelLoaded() bool
}

// Collection is a vector collection whose search index must exist.
type Collection interface {
	IndexName() string
	IndexReady(ctx context.Context) (bool, error)
}
