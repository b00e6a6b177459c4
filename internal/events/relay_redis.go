package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/obslog"
	"go.uber.org/zap"
)

const relayPrefix = "cm:events:"

// RedisRelay mirrors local events to other processes over Redis Pub/Sub and
// injects theirs into the local hub. Delivery is best effort; there is no
// durable log, reconnecting clients resync from a snapshot.
type RedisRelay struct {
	rdb    *redis.Client
	origin string
	queue  chan domain.Event
	log    *zap.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

func NewRedisRelay(rdb *redis.Client, origin string, queueSize int, logger *zap.Logger) *RedisRelay {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &RedisRelay{
		rdb:    rdb,
		origin: origin,
		queue:  make(chan domain.Event, queueSize),
		log:    obslog.Or(logger),
		ready:  make(chan struct{}),
	}
}

func relayChannel(roomID string) string { return relayPrefix + strings.TrimSpace(roomID) }

// Forward queues ev for publishing. A full queue drops the event.
func (r *RedisRelay) Forward(ev domain.Event) {
	select {
	case r.queue <- ev:
	default:
		r.log.Warn("relay_queue_full", zap.String("room_id", ev.RoomID), zap.Uint64("seq", ev.Seq))
	}
}

// Ready is closed once the pattern subscription is confirmed by Redis.
func (r *RedisRelay) Ready() <-chan struct{} { return r.ready }

// Run publishes queued events and delivers remote ones into hub until ctx
// ends.
func (r *RedisRelay) Run(ctx context.Context, hub *Hub) error {
	ps := r.rdb.PSubscribe(ctx, relayPrefix+"*")
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return err
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.log.Info("relay_started", zap.String("origin", r.origin))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.publishLoop(ctx)
	}()
	defer wg.Wait()

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			ev, err := decodeEvent([]byte(m.Payload))
			if err != nil {
				r.log.Warn("relay_decode_error", zap.String("channel", m.Channel), zap.Error(err))
				continue
			}
			if ev.Origin == r.origin {
				continue
			}
			hub.Deliver(ev)
		}
	}
}

func (r *RedisRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			raw, err := json.Marshal(ev)
			if err != nil {
				r.log.Error("relay_encode_error", zap.String("room_id", ev.RoomID), zap.Error(err))
				continue
			}
			if err := r.rdb.Publish(ctx, relayChannel(ev.RoomID), raw).Err(); err != nil {
				r.log.Warn("relay_publish_error", zap.String("room_id", ev.RoomID), zap.Uint64("seq", ev.Seq), zap.Error(err))
			}
		}
	}
}

// decodeEvent keeps the payload as raw JSON; the concrete payload type is
// only known to the producing process.
func decodeEvent(raw []byte) (domain.Event, error) {
	var wire struct {
		domain.Event
		Payload json.RawMessage `json:"payload,omitempty"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.Event{}, err
	}
	ev := wire.Event
	if len(wire.Payload) > 0 {
		ev.Payload = wire.Payload
	} else {
		ev.Payload = nil
	}
	return ev, nil
}
