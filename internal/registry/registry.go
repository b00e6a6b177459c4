package registry

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/obslog"
	"go.uber.org/zap"
)

// Config bounds the room pool.
type Config struct {
	// Capacity per tier; a missing or non-positive entry uses the tier's card count.
	Capacity          map[domain.Difficulty]int
	MaxRoomsPerTier   int
	DefaultDifficulty domain.Difficulty
	JoinTimeout       time.Duration
	RetryBackoff      time.Duration
	// Node identifies this process. Rooms created here carry it, and only
	// rooms carrying it are handed to local joiners.
	Node string
}

// Reservation is a seat taken in a room. Created is true when the room was
// opened for this joiner.
type Reservation struct {
	Room    domain.Room
	Created bool
}

// Registry routes joiners into rooms and tracks room lifecycle flags.
type Registry struct {
	store Store
	cfg   Config
	log   *zap.Logger
}

func New(store Store, cfg Config, logger *zap.Logger) *Registry {
	if cfg.DefaultDifficulty == "" || !cfg.DefaultDifficulty.Valid() {
		cfg.DefaultDifficulty = domain.Easy
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 50 * time.Millisecond
	}
	return &Registry{store: store, cfg: cfg, log: obslog.Or(logger).Named("registry")}
}

// Capacity returns the seat count for new rooms of the tier.
func (r *Registry) Capacity(d domain.Difficulty) int {
	if n := r.cfg.Capacity[d]; n > 0 {
		return n
	}
	return d.CardCount()
}

// Acquire reserves a seat for a joiner. Partially filled rooms are preferred
// over empty ones; a new room is opened only when no open room has a seat.
// An empty difficulty means any tier.
func (r *Registry) Acquire(ctx context.Context, d domain.Difficulty) (Reservation, error) {
	if d != "" && !d.Valid() {
		return Reservation{}, domain.Errorf(domain.CodeInvalidState, "unknown difficulty %q", d)
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.JoinTimeout)
	defer cancel()

	tier := d
	if tier == "" {
		tier = r.cfg.DefaultDifficulty
	}
	var lastErr error
	for attempt := 0; ; attempt++ {
		rooms, err := r.store.List(ctx)
		if err != nil {
			lastErr = err
		} else {
			for _, c := range Candidates(r.local(rooms), d) {
				room, err := r.store.Reserve(ctx, c.ID)
				if err == nil {
					r.log.Debug("seat_reserved", append(obslog.Room(room.ID, room.Generation), zap.Int("occupancy", room.Occupancy))...)
					return Reservation{Room: room}, nil
				}
				if !isLostRace(err) {
					lastErr = err
				}
			}
			room, err := r.store.Create(ctx, tier, r.Capacity(tier), r.cfg.MaxRoomsPerTier, r.cfg.Node)
			if err == nil {
				r.log.Info("room_created", append(obslog.Room(room.ID, room.Generation),
					zap.String("difficulty", string(room.Difficulty)), zap.Int("capacity", room.Capacity))...)
				return Reservation{Room: room, Created: true}, nil
			}
			if !errors.Is(err, ErrTierExhausted) {
				lastErr = err
			}
		}
		if lastErr != nil {
			r.log.Warn("acquire_retry", zap.Int("attempt", attempt), zap.String("difficulty", string(d)), zap.Error(lastErr))
		}
		t := time.NewTimer(r.cfg.RetryBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			if lastErr == nil {
				lastErr = ctx.Err()
			}
			return Reservation{}, domain.Transient("join: no room available", lastErr)
		case <-t.C:
		}
	}
}

// ReserveIn takes a seat in a specific room. A room hosted by another node is
// refused with a retryable error naming that node.
func (r *Registry) ReserveIn(ctx context.Context, roomID string) (domain.Room, error) {
	if cur, err := r.store.Get(ctx, roomID); err == nil && cur.Node != r.cfg.Node {
		return cur, domain.Errorf(domain.CodeTransient, "room %s is hosted on node %s", roomID, cur.Node)
	}
	room, err := r.store.Reserve(ctx, roomID)
	switch {
	case err == nil:
		return room, nil
	case errors.Is(err, ErrNoSeat):
		return room, domain.ErrRoomFull
	case errors.Is(err, ErrUnknownRoom):
		return room, domain.Errorf(domain.CodeSessionNotFound, "room %s not found", roomID)
	default:
		return room, domain.Transient("reserve", err)
	}
}

// Release frees a seat of the given generation. A room that has already
// moved on to a later generation is left untouched.
func (r *Registry) Release(ctx context.Context, roomID string, generation uint64) error {
	room, err := r.store.Release(ctx, roomID, generation)
	if errors.Is(err, ErrGenerationMismatch) {
		r.log.Debug("release_stale", append(obslog.Room(roomID, generation), zap.Uint64("current", room.Generation))...)
		return nil
	}
	return storeErr("release", err)
}

func (r *Registry) MarkInGame(ctx context.Context, roomID string, generation uint64) error {
	_, err := r.store.MarkInGame(ctx, roomID, generation)
	if errors.Is(err, ErrGenerationMismatch) {
		return domain.Errorf(domain.CodeInvalidState, "room %s moved past generation %d", roomID, generation)
	}
	return storeErr("mark in game", err)
}

// Reset reopens the room empty under the next generation. Resetting a
// generation that was already reset is a no-op.
func (r *Registry) Reset(ctx context.Context, roomID string, generation uint64) (domain.Room, error) {
	room, err := r.store.Reset(ctx, roomID, generation)
	if errors.Is(err, ErrGenerationMismatch) {
		return room, nil
	}
	if err != nil {
		return room, storeErr("reset", err)
	}
	r.log.Info("room_reset", obslog.Room(room.ID, room.Generation)...)
	return room, nil
}

func (r *Registry) Room(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := r.store.Get(ctx, roomID)
	if errors.Is(err, ErrUnknownRoom) {
		return room, domain.Errorf(domain.CodeSessionNotFound, "room %s not found", roomID)
	}
	return room, storeErr("get room", err)
}

// Rooms lists the pool ordered by tier then id.
func (r *Registry) Rooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := r.store.List(ctx)
	if err != nil {
		return nil, domain.Transient("list rooms", err)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if oi, oj := rooms[i].Difficulty.Order(), rooms[j].Difficulty.Order(); oi != oj {
			return oi < oj
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

// Candidates filters rooms with a free seat, restricted to d unless d is
// empty, ordered fullest first, then tier order, then id.
func Candidates(rooms []domain.Room, d domain.Difficulty) []domain.Room {
	out := make([]domain.Room, 0, len(rooms))
	for _, room := range rooms {
		if !room.HasSeat() {
			continue
		}
		if d != "" && room.Difficulty != d {
			continue
		}
		out = append(out, room)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Occupancy != b.Occupancy {
			return a.Occupancy > b.Occupancy
		}
		if oa, ob := a.Difficulty.Order(), b.Difficulty.Order(); oa != ob {
			return oa < ob
		}
		return a.ID < b.ID
	})
	return out
}

func (r *Registry) local(rooms []domain.Room) []domain.Room {
	out := rooms[:0:0]
	for _, room := range rooms {
		if room.Node == r.cfg.Node {
			out = append(out, room)
		}
	}
	return out
}

func isLostRace(err error) bool {
	return errors.Is(err, ErrNoSeat) || errors.Is(err, ErrUnknownRoom) || errors.Is(err, ErrContention)
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnknownRoom) {
		return domain.Errorf(domain.CodeSessionNotFound, "%s: room not found", op)
	}
	return domain.Transient(op, err)
}
