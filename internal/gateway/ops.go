package gateway

import (
	"context"
	"strings"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/session"
	"github.com/rosejohnson3923/pathfinity-app-sub007/pkg/matchdto"
)

const (
	defaultHistory = 10
	maxHistory     = 50
)

func (c *conn) dispatch(ctx context.Context, cmd matchdto.Command) {
	opCtx, cancel := context.WithTimeout(ctx, c.s.opTimeout)
	data, err := c.exec(opCtx, cmd)
	cancel()
	c.reply(ctx, cmd, data, err)
	if err == nil {
		c.follow(ctx)
	}
}

func (c *conn) exec(ctx context.Context, cmd matchdto.Command) (any, error) {
	switch cmd.Op {
	case matchdto.OpJoin:
		d, ok := domain.ParseDifficulty(cmd.Difficulty)
		if !ok {
			return nil, domain.Errorf(domain.CodeInvalidState, "unknown difficulty %q", cmd.Difficulty)
		}
		return c.joined(c.s.engine.JoinGame(ctx, c.ident, d))

	case matchdto.OpJoinRoom:
		roomID := strings.TrimSpace(cmd.RoomID)
		if roomID == "" {
			return nil, domain.Errorf(domain.CodeInvalidState, "room_id is required")
		}
		return c.joined(c.s.engine.JoinRoom(ctx, c.ident, roomID))

	case matchdto.OpStart:
		sid, err := c.session(cmd)
		if err != nil {
			return nil, err
		}
		return c.s.engine.StartSession(ctx, sid, c.ident.ID)

	case matchdto.OpFlip:
		sid, err := c.session(cmd)
		if err != nil {
			return nil, err
		}
		if cmd.Index == nil {
			return nil, domain.Errorf(domain.CodeInvalidMove, "index is required")
		}
		return c.s.engine.Flip(ctx, sid, c.ident.ID, *cmd.Index)

	case matchdto.OpLeave:
		sid, err := c.session(cmd)
		if err != nil {
			return nil, err
		}
		if err := c.s.engine.LeaveRoom(ctx, sid, c.ident.ID); err != nil {
			return nil, err
		}
		c.unbind()
		return map[string]string{"session_id": sid}, nil

	case matchdto.OpEnd:
		sid, err := c.session(cmd)
		if err != nil {
			return nil, err
		}
		return c.s.engine.EndSession(ctx, sid, c.ident.ID)

	case matchdto.OpParticipants:
		sid, err := c.session(cmd)
		if err != nil {
			return nil, err
		}
		return c.s.engine.Participants(ctx, sid)

	case matchdto.OpSnapshot:
		sid, err := c.session(cmd)
		if err != nil {
			return nil, err
		}
		return c.s.engine.Snapshot(ctx, sid)

	case matchdto.OpRooms:
		return c.s.engine.Rooms(ctx)

	case matchdto.OpHistory:
		if c.s.history == nil {
			return []domain.Summary{}, nil
		}
		limit := cmd.Limit
		if limit <= 0 {
			limit = defaultHistory
		}
		limit = min(limit, maxHistory)
		out, err := c.s.history.Recent(ctx, c.ident.ID, limit)
		if err != nil {
			return nil, domain.Transient("history", err)
		}
		if out == nil {
			out = []domain.Summary{}
		}
		return out, nil

	default:
		return nil, domain.Errorf(domain.CodeInvalidState, "unknown op %q", cmd.Op)
	}
}

func (c *conn) joined(res session.JoinResult, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	c.bind(res.Session.ID, res.Room.ID, res.Session.Generation)
	return res, nil
}

// session picks the command's session, defaulting to the one joined on this
// socket.
func (c *conn) session(cmd matchdto.Command) (string, error) {
	if sid := strings.TrimSpace(cmd.SessionID); sid != "" {
		return sid, nil
	}
	sid, _ := c.bound()
	if sid == "" {
		return "", domain.Errorf(domain.CodeSessionNotFound, "not in a session")
	}
	return sid, nil
}
