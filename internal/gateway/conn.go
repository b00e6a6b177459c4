package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/pkg/matchdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// conn is one accepted socket. Commands are handled one at a time in the
// read loop; room events are written by a separate pump goroutine.
type conn struct {
	s     *Server
	ws    *websocket.Conn
	ident domain.Identity
	log   *zap.Logger

	mu        sync.Mutex
	sessionID string
	roomID    string
	gen       uint64
	pump      *pump
}

func newConn(s *Server, ws *websocket.Conn, ident domain.Identity) *conn {
	return &conn{
		s:     s,
		ws:    ws,
		ident: ident,
		log:   s.log.With(zap.String("participant_id", ident.ID)),
	}
}

func (c *conn) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	c.log.Info("ws_connected")

	if c.s.pingInterval > 0 {
		go c.keepalive(ctx, cancel)
	}

	err := c.write(ctx, matchdto.Hello{
		Type:        matchdto.FrameHello,
		Participant: c.ident.ID,
		Name:        c.ident.Name,
		Node:        c.s.node,
	})
	if err == nil {
		err = c.readLoop(ctx)
	}
	if err != nil && !isClosed(err) {
		c.log.Warn("ws_read_failed", zap.Error(err))
	}

	c.stopPump()
	c.detach()
	_ = c.ws.Close(websocket.StatusNormalClosure, "")
	c.log.Info("ws_closed")
}

func (c *conn) readLoop(ctx context.Context) error {
	for {
		typ, raw, err := c.ws.Read(ctx)
		if err != nil {
			return err
		}
		var cmd matchdto.Command
		if typ != websocket.MessageText || json.Unmarshal(raw, &cmd) != nil {
			c.reply(ctx, cmd, nil, domain.Errorf(domain.CodeInvalidState, "malformed command"))
			continue
		}
		c.dispatch(ctx, cmd)
	}
}

func (c *conn) keepalive(ctx context.Context, cancel context.CancelFunc) {
	t := time.NewTicker(c.s.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.ws.Ping(pctx)
			pcancel()
			if err != nil {
				if !isClosed(err) {
					c.log.Info("ws_ping_failed", zap.Error(err))
				}
				cancel()
				return
			}
		}
	}
}

func (c *conn) write(ctx context.Context, v any) error {
	wctx, cancel := context.WithTimeout(ctx, c.s.writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.ws, v)
}

func (c *conn) reply(ctx context.Context, cmd matchdto.Command, data any, err error) {
	resp := matchdto.Response{Type: matchdto.FrameResponse, ID: cmd.ID, Op: cmd.Op}
	if err != nil {
		de := domain.AsError(err)
		if de.Code == domain.CodeTransient {
			c.log.Warn("op_failed", zap.String("op", cmd.Op), zap.Error(err))
		}
		resp.Error = &matchdto.ErrorBody{
			Code:      string(de.Code),
			Message:   de.Message,
			Retryable: de.Retryable,
			Notice:    c.s.notice(nil, "error."+string(de.Code)),
		}
	} else {
		b, merr := json.Marshal(data)
		if merr != nil {
			c.log.Error("reply_encode_failed", zap.String("op", cmd.Op), zap.Error(merr))
			resp.Error = &matchdto.ErrorBody{Code: string(domain.CodeTransient), Message: "encode reply", Retryable: true}
		} else {
			resp.Data = b
		}
	}
	if werr := c.write(ctx, resp); werr != nil && !isClosed(werr) {
		c.log.Info("reply_write_failed", zap.String("op", cmd.Op), zap.Error(werr))
	}
}

// bind records the session the socket plays in. The pump follows it after
// the reply has been written.
func (c *conn) bind(sessionID, roomID string, gen uint64) {
	c.mu.Lock()
	c.sessionID, c.roomID, c.gen = sessionID, roomID, gen
	c.mu.Unlock()
}

func (c *conn) unbind() {
	c.mu.Lock()
	c.sessionID, c.roomID, c.gen = "", "", 0
	c.mu.Unlock()
	c.stopPump()
}

func (c *conn) bound() (sessionID, roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.roomID
}

// detach tells the engine the participant is gone when the socket closes
// while still seated.
func (c *conn) detach() {
	sid, rid := c.bound()
	if sid == "" || rid == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.s.opTimeout)
	defer cancel()
	if err := c.s.engine.Disconnect(ctx, sid, c.ident.ID); err != nil {
		c.log.Debug("disconnect_skipped", zap.String("session_id", sid), zap.Error(err))
	}
}
