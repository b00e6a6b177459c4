package registry

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

// DefaultTxRetries bounds optimistic transaction retries per call.
const DefaultTxRetries = 16

// RedisStore keeps rooms in Redis so several processes can share one pool.
// Each room is a hash; each tier has a set of its room ids.
type RedisStore struct {
	rdb     *redis.Client
	prefix  string
	retries int
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "cm", retries: DefaultTxRetries}
}

func (s *RedisStore) keyRoom(id string) string { return s.prefix + ":room:" + strings.TrimSpace(id) }
func (s *RedisStore) keyTier(d domain.Difficulty) string {
	return s.prefix + ":rooms:" + string(d)
}

func (s *RedisStore) List(ctx context.Context) ([]domain.Room, error) {
	var ids []string
	for _, d := range domain.Difficulties {
		members, err := s.rdb.SMembers(ctx, s.keyTier(d)).Result()
		if err != nil {
			return nil, err
		}
		ids = append(ids, members...)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.keyRoom(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	out := make([]domain.Room, 0, len(ids))
	for _, c := range cmds {
		r, ok := decodeRoom(c.Val())
		if !ok {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, roomID string) (domain.Room, error) {
	return s.load(ctx, s.rdb, roomID)
}

func (s *RedisStore) Create(ctx context.Context, d domain.Difficulty, capacity, maxPerTier int, node string) (domain.Room, error) {
	room := domain.Room{
		ID:         uuid.NewString(),
		Difficulty: d,
		Capacity:   capacity,
		Occupancy:  1,
		State:      domain.RoomOpen,
		Generation: 1,
		Node:       node,
	}
	tierKey := s.keyTier(d)
	err := s.watch(ctx, func(tx *redis.Tx) error {
		if maxPerTier > 0 {
			n, err := tx.SCard(ctx, tierKey).Result()
			if err != nil && err != redis.Nil {
				return err
			}
			if n >= int64(maxPerTier) {
				return ErrTierExhausted
			}
		}
		pipe := tx.TxPipeline()
		pipe.HSet(ctx, s.keyRoom(room.ID), encodeRoom(room))
		pipe.SAdd(ctx, tierKey, room.ID)
		_, err := pipe.Exec(ctx)
		return err
	}, tierKey)
	if err != nil {
		return domain.Room{}, err
	}
	return room, nil
}

func (s *RedisStore) Reserve(ctx context.Context, roomID string) (domain.Room, error) {
	return s.update(ctx, roomID, func(r *domain.Room) error {
		if !r.HasSeat() {
			return ErrNoSeat
		}
		r.Occupancy++
		return nil
	})
}

func (s *RedisStore) Release(ctx context.Context, roomID string, generation uint64) (domain.Room, error) {
	return s.update(ctx, roomID, func(r *domain.Room) error {
		if r.Generation != generation {
			return ErrGenerationMismatch
		}
		if r.Occupancy > 0 {
			r.Occupancy--
		}
		return nil
	})
}

func (s *RedisStore) MarkInGame(ctx context.Context, roomID string, generation uint64) (domain.Room, error) {
	return s.update(ctx, roomID, func(r *domain.Room) error {
		if r.Generation != generation {
			return ErrGenerationMismatch
		}
		r.State = domain.RoomInGame
		return nil
	})
}

func (s *RedisStore) Reset(ctx context.Context, roomID string, generation uint64) (domain.Room, error) {
	return s.update(ctx, roomID, func(r *domain.Room) error {
		if r.Generation != generation {
			return ErrGenerationMismatch
		}
		r.Occupancy = 0
		r.State = domain.RoomOpen
		r.Generation++
		return nil
	})
}

// update applies fn to the room under WATCH and writes the result in one
// MULTI block. A concurrent writer aborts the transaction and fn runs again.
func (s *RedisStore) update(ctx context.Context, roomID string, fn func(*domain.Room) error) (domain.Room, error) {
	key := s.keyRoom(roomID)
	var out domain.Room
	err := s.watch(ctx, func(tx *redis.Tx) error {
		r, err := s.load(ctx, tx, roomID)
		if err != nil {
			return err
		}
		if err := fn(&r); err != nil {
			out = r
			return err
		}
		pipe := tx.TxPipeline()
		pipe.HSet(ctx, key, encodeRoom(r))
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = r
		return nil
	}, key)
	return out, err
}

func (s *RedisStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < s.retries; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *RedisStore) load(ctx context.Context, c hashReader, roomID string) (domain.Room, error) {
	m, err := c.HGetAll(ctx, s.keyRoom(roomID)).Result()
	if err != nil && err != redis.Nil {
		return domain.Room{}, err
	}
	r, ok := decodeRoom(m)
	if !ok {
		return domain.Room{}, ErrUnknownRoom
	}
	return r, nil
}

func encodeRoom(r domain.Room) map[string]any {
	return map[string]any{
		"id":         r.ID,
		"difficulty": string(r.Difficulty),
		"capacity":   r.Capacity,
		"occupancy":  r.Occupancy,
		"state":      string(r.State),
		"generation": r.Generation,
		"node":       r.Node,
	}
}

func decodeRoom(m map[string]string) (domain.Room, bool) {
	if len(m) == 0 || m["id"] == "" {
		return domain.Room{}, false
	}
	capacity, _ := strconv.Atoi(m["capacity"])
	occupancy, _ := strconv.Atoi(m["occupancy"])
	generation, _ := strconv.ParseUint(m["generation"], 10, 64)
	return domain.Room{
		ID:         m["id"],
		Difficulty: domain.Difficulty(m["difficulty"]),
		Capacity:   capacity,
		Occupancy:  occupancy,
		State:      domain.RoomState(m["state"]),
		Generation: generation,
		Node:       m["node"],
	}, true
}
