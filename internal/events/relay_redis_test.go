package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

func startRelay(t *testing.T, ctx context.Context, addr, origin string) (*Hub, *RedisRelay) {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	hub := NewHub(WithOrigin(origin))
	relay := NewRedisRelay(rdb, hub.Origin(), 16, nil)
	hub.SetForwarder(relay)
	go func() { _ = relay.Run(ctx, hub) }()
	select {
	case <-relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("relay %s not ready", origin)
	}
	return hub, relay
}

func TestRedisRelayFansOutAcrossHubs(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil { t.Fatalf("miniredis: %v", err) }
	defer mr.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubA, _ := startRelay(t, ctx, mr.Addr(), "node-a")
	hubB, _ := startRelay(t, ctx, mr.Addr(), "node-b")

	local := hubA.Subscribe(ctx, "room-1")
	remote := hubB.Subscribe(ctx, "room-1")

	sent := hubA.Publish("room-1", 3, domain.EventMatchFound, domain.MatchFoundPayload{ParticipantID: "p1", PairID: 4})

	if ev := recv(t, local); ev.Seq != sent.Seq { t.Fatalf("local seq %d", ev.Seq) }
	got := recv(t, remote)
	if got.Seq != sent.Seq || got.Generation != 3 || got.Kind != domain.EventMatchFound || got.Origin != "node-a" {
		t.Fatalf("remote event mismatch: %+v", got)
	}
	raw, ok := got.Payload.(json.RawMessage)
	if !ok { t.Fatalf("remote payload type %T", got.Payload) }
	var p domain.MatchFoundPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.ParticipantID != "p1" || p.PairID != 4 {
		t.Fatalf("payload: %v %+v", err, p)
	}

	// the producer never re-delivers its own event
	select {
	case ev := <-local.C():
		t.Fatalf("unexpected echo on producer: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDecodeEventWithoutPayload(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"seq":4,"room_id":"r","generation":1,"kind":"player_left"}`))
	if err != nil { t.Fatalf("decode: %v", err) }
	if ev.Seq != 4 || ev.Payload != nil { t.Fatalf("unexpected %+v", ev) }
}
