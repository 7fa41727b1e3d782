package health

import (
	"context"
	"errors"
	"slices"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockExtractor struct {
	err error
}

func (m *mockExtractor) HealthCheck(_ context.Context) error { return m.err }

type mockVerifier struct {
	enabled bool
	loaded  bool
}

func (m mockVerifier) Enabled() bool     { return m.enabled }
func (m mockVerifier) ModelLoaded() bool { return m.loaded }

type mockCollection struct {
	name  string
	ready bool
	err   error
}

func (m mockCollection) IndexName() string { return m.name }
func (m mockCollection) IndexReady(_ context.Context) (bool, error) {
	return m.ready, m.err
}

func ready() mockVerifier { return mockVerifier{enabled: true, loaded: true} }

func collections() []Collection {
	return []Collection{
		mockCollection{name: "vg:indian_cohort_ecapa:idx", ready: true},
		mockCollection{name: "vg:enrolled_users_ecapa:idx", ready: true},
	}
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(ready(), &mockPinger{}).
		WithHistory(&mockPinger{}).
		WithExtractor(&mockExtractor{}).
		WithCollections(collections()...)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{CheckModel, CheckStore, CheckHistory, CheckExtractor} {
		if r.Checks[name] != CheckOK {
			t.Errorf("expected %s %q, got %q", name, CheckOK, r.Checks[name])
		}
	}
	want := []string{"vg:enrolled_users_ecapa:idx", "vg:indian_cohort_ecapa:idx"}
	if !slices.Equal(r.Collections, want) {
		t.Errorf("collections = %v, want %v", r.Collections, want)
	}
	if !r.Serving() {
		t.Error("healthy report should be serving")
	}
	if r.Version.Version == "" {
		t.Error("version should be reported")
	}
}

func TestCheck_StoreDown(t *testing.T) {
	svc := New(ready(), &mockPinger{err: errors.New("conn refused")}).WithCollections(collections()...)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[CheckStore] != CheckError {
		t.Errorf("expected store %q, got %q", CheckError, r.Checks[CheckStore])
	}
	if len(r.Collections) != 0 {
		t.Errorf("collections should not be probed when the store is down, got %v", r.Collections)
	}
}

func TestCheck_ModelNotLoaded(t *testing.T) {
	svc := New(mockVerifier{enabled: true}, &mockPinger{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[CheckModel] != CheckError {
		t.Errorf("expected model %q, got %q", CheckError, r.Checks[CheckModel])
	}
	if r.Serving() {
		t.Error("unhealthy report should not be serving")
	}
}

func TestCheck_MissingCollection(t *testing.T) {
	svc := New(ready(), &mockPinger{}).WithCollections(
		mockCollection{name: "cohort", ready: false},
		mockCollection{name: "enrolled", ready: true},
		mockCollection{name: "broken", err: errors.New("timeout")},
	)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if !slices.Equal(r.Collections, []string{"enrolled"}) {
		t.Errorf("collections = %v", r.Collections)
	}
}

func TestCheck_ExtractorFailureDegrades(t *testing.T) {
	svc := New(ready(), &mockPinger{}).
		WithHistory(&mockPinger{}).
		WithExtractor(&mockExtractor{err: errors.New("timeout")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[CheckExtractor] != CheckError {
		t.Errorf("expected extractor %q, got %q", CheckError, r.Checks[CheckExtractor])
	}
	if !r.Serving() {
		t.Error("degraded report should still be serving")
	}
}

func TestCheck_HistoryFailureIsUnhealthy(t *testing.T) {
	svc := New(ready(), &mockPinger{}).
		WithHistory(&mockPinger{err: errors.New("db locked")}).
		WithExtractor(&mockExtractor{})
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[CheckHistory] != CheckError {
		t.Errorf("expected history %q, got %q", CheckError, r.Checks[CheckHistory])
	}
	if r.Serving() {
		t.Error("report without an attempt log should not be serving")
	}
}

func TestCheck_OptionalChecksAbsent(t *testing.T) {
	r := New(ready(), &mockPinger{}).Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	for _, name := range []string{CheckHistory, CheckExtractor} {
		if _, ok := r.Checks[name]; ok {
			t.Errorf("%s check should be absent when not configured", name)
		}
	}
}

func TestCheck_Disabled(t *testing.T) {
	svc := New(mockVerifier{enabled: false, loaded: true}, &mockPinger{err: errors.New("down")})
	r := svc.Check(context.Background())

	if r.Status != Disabled {
		t.Errorf("expected %q, got %q", Disabled, r.Status)
	}
	if r.Serving() {
		t.Error("disabled report should not be serving")
	}
}
