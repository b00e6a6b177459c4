package gateway

import (
	"context"
	"encoding/json"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/events"
	"github.com/rosejohnson3923/pathfinity-app-sub007/pkg/matchdto"
	"go.uber.org/zap"
)

// pump forwards one room's events to the socket.
type pump struct {
	roomID    string
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// follow starts, replaces or keeps the pump so it matches the bound room.
func (c *conn) follow(ctx context.Context) {
	c.mu.Lock()
	sid, rid, gen := c.sessionID, c.roomID, c.gen
	cur := c.pump
	if rid == "" || (cur != nil && cur.roomID == rid && cur.sessionID == sid) {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.stopPump()

	pctx, cancel := context.WithCancel(ctx)
	p := &pump{roomID: rid, sessionID: sid, cancel: cancel, done: make(chan struct{})}
	c.mu.Lock()
	c.pump = p
	c.mu.Unlock()
	go c.runPump(pctx, p, gen)
}

func (c *conn) stopPump() {
	c.mu.Lock()
	p := c.pump
	c.pump = nil
	c.mu.Unlock()
	if p != nil {
		p.cancel()
		<-p.done
	}
}

func (c *conn) runPump(ctx context.Context, p *pump, gen uint64) {
	defer close(p.done)
	sub := c.s.engine.Subscribe(ctx, p.roomID)
	defer sub.Close()

	log := c.log.With(zap.String("room_id", p.roomID), zap.String("session_id", p.sessionID))
	cursor := events.NewCursor(sub.StartSeq(), gen)
	c.resync(ctx, log, cursor, p.sessionID, "subscribed")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			switch cursor.Observe(ev) {
			case events.Duplicate, events.Stale:
				continue
			case events.Gap:
				log.Info("event_gap", zap.Uint64("seq", ev.Seq), zap.Uint64("dropped", sub.Dropped()))
				c.resync(ctx, log, cursor, p.sessionID, "gap")
				continue
			}

			fields := payloadFields(ev.Payload)
			if err := c.pushEvent(ctx, ev, fields); err != nil {
				if !isClosed(err) {
					log.Info("event_write_failed", zap.Error(err))
				}
				return
			}
			switch {
			case ev.Kind == domain.EventStateResync:
				c.resync(ctx, log, cursor, p.sessionID, "server")
			case ev.Kind == domain.EventGameEnded && endedSession(fields) == p.sessionID:
				c.finished(p)
				return
			}
		}
	}
}

// finished drops the room binding once the socket's game is over. The
// session id stays so snapshot and end still answer.
func (c *conn) finished(p *pump) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pump == p {
		c.pump = nil
		c.roomID = ""
	}
}

func (c *conn) resync(ctx context.Context, log *zap.Logger, cursor *events.Cursor, sessionID, reason string) {
	snap, err := c.s.engine.Snapshot(ctx, sessionID)
	if err != nil {
		log.Info("resync_snapshot_failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		log.Error("resync_encode_failed", zap.Error(err))
		return
	}
	cursor.Reset(snap.LastSeq, snap.Session.Generation)
	if err := c.write(ctx, matchdto.ResyncFrame{Type: matchdto.FrameResync, Reason: reason, Snapshot: raw}); err != nil && !isClosed(err) {
		log.Info("resync_write_failed", zap.Error(err))
	}
}

func (c *conn) pushEvent(ctx context.Context, ev domain.Event, fields map[string]any) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.write(ctx, matchdto.EventFrame{
		Type:   matchdto.FrameEvent,
		Event:  raw,
		Notice: c.s.notice(fields, noticeKeys(ev.Kind, fields)...),
	})
}

// payloadFields flattens a typed or relayed payload to its wire keys.
func payloadFields(payload any) map[string]any {
	out := map[string]any{}
	if payload == nil {
		return out
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func noticeKeys(kind domain.EventKind, fields map[string]any) []string {
	base := "event." + string(kind)
	variant := str(fields["reason"])
	if variant == "" {
		variant = str(fields["result"])
	}
	if summary, ok := fields["summary"].(map[string]any); ok && variant == "" {
		variant = str(summary["reason"])
	}
	if variant == "" {
		return []string{base}
	}
	return []string{base + "." + variant, base}
}

func endedSession(fields map[string]any) string {
	if summary, ok := fields["summary"].(map[string]any); ok {
		return str(summary["session_id"])
	}
	return ""
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
