package results

import (
	"context"
	"sort"
	"sync"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

// MemoryStore is used when no database is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	bySession map[string]domain.Summary
	byPlayer  map[string]map[string]struct{} // participant → session ids
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySession: make(map[string]domain.Summary),
		byPlayer:  make(map[string]map[string]struct{}),
	}
}

func (m *MemoryStore) SaveSummary(ctx context.Context, s domain.Summary) error {
	cp := s
	cp.Standings = append([]domain.Standing(nil), s.Standings...)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySession[s.SessionID] = cp
	for _, st := range s.Standings {
		ids, ok := m.byPlayer[st.ParticipantID]
		if !ok {
			ids = make(map[string]struct{})
			m.byPlayer[st.ParticipantID] = ids
		}
		ids[s.SessionID] = struct{}{}
	}
	return nil
}

// Recent returns the participant's sessions, latest first.
func (m *MemoryStore) Recent(ctx context.Context, participantID string, limit int) ([]domain.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.Summary, 0, len(m.byPlayer[participantID]))
	for id := range m.byPlayer[participantID] {
		items = append(items, m.bySession[id])
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].SessionID > items[j].SessionID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySession)
}

func (m *MemoryStore) Close() error { return nil }
