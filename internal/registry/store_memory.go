package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

// MemoryStore keeps the room pool in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*domain.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*domain.Room)}
}

func (s *MemoryStore) List(ctx context.Context) ([]domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, roomID string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, ErrUnknownRoom
	}
	return *r, nil
}

func (s *MemoryStore) Create(ctx context.Context, d domain.Difficulty, capacity, maxPerTier int, node string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxPerTier > 0 {
		n := 0
		for _, r := range s.rooms {
			if r.Difficulty == d {
				n++
			}
		}
		if n >= maxPerTier {
			return domain.Room{}, ErrTierExhausted
		}
	}
	r := &domain.Room{
		ID:         uuid.NewString(),
		Difficulty: d,
		Capacity:   capacity,
		Occupancy:  1,
		State:      domain.RoomOpen,
		Generation: 1,
		Node:       node,
	}
	s.rooms[r.ID] = r
	return *r, nil
}

func (s *MemoryStore) Reserve(ctx context.Context, roomID string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, ErrUnknownRoom
	}
	if !r.HasSeat() {
		return *r, ErrNoSeat
	}
	r.Occupancy++
	return *r, nil
}

func (s *MemoryStore) Release(ctx context.Context, roomID string, generation uint64) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, ErrUnknownRoom
	}
	if r.Generation != generation {
		return *r, ErrGenerationMismatch
	}
	if r.Occupancy > 0 {
		r.Occupancy--
	}
	return *r, nil
}

func (s *MemoryStore) MarkInGame(ctx context.Context, roomID string, generation uint64) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, ErrUnknownRoom
	}
	if r.Generation != generation {
		return *r, ErrGenerationMismatch
	}
	r.State = domain.RoomInGame
	return *r, nil
}

func (s *MemoryStore) Reset(ctx context.Context, roomID string, generation uint64) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, ErrUnknownRoom
	}
	if r.Generation != generation {
		return *r, ErrGenerationMismatch
	}
	r.Occupancy = 0
	r.State = domain.RoomOpen
	r.Generation++
	return *r, nil
}
