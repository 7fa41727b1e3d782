package vpcache

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/voicegate/internal/domain/embedding"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
)

type mockRepo struct {
	listCalls int
	byUser    map[string][]domvp.Voiceprint
	listErr   error
	saveErr   error
	// afterList runs once after ListByUser has read its result.
	afterList func()
}

func (m *mockRepo) Save(_ context.Context, vp domvp.Voiceprint) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	list := m.byUser[vp.UserID()]
	for i := range list {
		if list[i].ID() == vp.ID() {
			list[i] = vp
			return nil
		}
	}
	m.byUser[vp.UserID()] = append(list, vp)
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (domvp.Voiceprint, error) {
	for _, list := range m.byUser {
		for _, vp := range list {
			if vp.ID() == id {
				return vp, nil
			}
		}
	}
	return domvp.Voiceprint{}, nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID string) ([]domvp.Voiceprint, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := append([]domvp.Voiceprint(nil), m.byUser[userID]...)
	if hook := m.afterList; hook != nil {
		m.afterList = nil
		hook()
	}
	return out, nil
}

func (m *mockRepo) Delete(_ context.Context, vp domvp.Voiceprint) error {
	list := m.byUser[vp.UserID()]
	for i := range list {
		if list[i].ID() == vp.ID() {
			m.byUser[vp.UserID()] = append(list[:i], list[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockRepo) DeleteByUser(_ context.Context, userID string) (int, error) {
	n := len(m.byUser[userID])
	delete(m.byUser, userID)
	return n, nil
}

func newVoiceprint(t *testing.T, userID string) domvp.Voiceprint {
	t.Helper()
	v, err := embedding.New([]float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	vp, err := domvp.New(userID, v, "ecapa", 3, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return vp
}
