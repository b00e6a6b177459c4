package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/board"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/obslog"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/scoreboard"
	"go.uber.org/zap"
)

// Reasons carried by player_joined and player_left.
const (
	ReasonJoined       = "joined"
	ReasonReconnected  = "reconnected"
	ReasonLeft         = "left"
	ReasonDisconnected = "disconnected"
)

func (a *roomActor) newSession(room domain.Room) *session {
	s := &session{
		id:         uuid.NewString(),
		roomID:     room.ID,
		generation: room.Generation,
		difficulty: room.Difficulty,
		capacity:   room.Capacity,
		state:      domain.SessionForming,
		scores:     scoreboard.New(a.m.cfg.MatchXP),
		createdAt:  a.m.now(),
	}
	a.cur = s
	a.generation = room.Generation
	a.m.bindSession(s.id, a.roomID)
	a.log.Info("session_created", zap.String("session_id", s.id), zap.Uint64("generation", s.generation),
		zap.String("difficulty", string(s.difficulty)))
	return s
}

// admit places ident on the roster of the room's forming session, creating
// the session for a freshly opened room.
func (a *roomActor) admit(room domain.Room, ident domain.Identity) (JoinResult, error) {
	s := a.cur
	if s == nil {
		if room.Generation < a.generation || room.State != domain.RoomOpen {
			return JoinResult{}, errStaleSeat
		}
		s = a.newSession(room)
	}
	if s.generation != room.Generation || s.state != domain.SessionForming {
		return JoinResult{}, errStaleSeat
	}

	mem := s.member(ident.ID)
	if mem != nil && !mem.left {
		res := a.reconnect(s, mem)
		res.extraSeat = true
		return res, nil
	}
	if mem == nil {
		mem = &member{id: ident.ID, name: ident.Name, joinedAt: a.m.now()}
		s.members = append(s.members, mem)
	}
	if ident.Name != "" {
		mem.name = ident.Name
	}
	mem.left = false
	mem.connected = true
	s.scores.Add(mem.id, mem.name, mem.joinedAt)
	if host := s.member(s.hostID); host == nil || host.left {
		s.hostID = mem.id
	}
	a.m.bindPlayer(mem.id, s.id)
	a.armGrace()

	a.publish(s, domain.EventPlayerJoined, domain.PlayerPayload{
		SessionID:     s.id,
		ParticipantID: mem.id,
		Name:          mem.name,
		HostID:        s.hostID,
		Occupants:     len(s.present()),
		Reason:        ReasonJoined,
	})
	a.log.Info("player_joined", zap.String("session_id", s.id), zap.String("participant_id", mem.id),
		zap.Int("occupants", len(s.present())))
	return JoinResult{
		Room:        s.room(),
		Session:     s.info(),
		Participant: s.participant(mem),
		IsHost:      s.hostID == mem.id,
	}, nil
}

func (a *roomActor) reconnect(s *session, mem *member) JoinResult {
	if !mem.connected {
		mem.connected = true
		if host := s.member(s.hostID); host == nil || host.left || !host.connected {
			s.hostID = mem.id
		}
		if s.state != domain.SessionEnded {
			a.publish(s, domain.EventPlayerJoined, domain.PlayerPayload{
				SessionID:     s.id,
				ParticipantID: mem.id,
				Name:          mem.name,
				HostID:        s.hostID,
				Occupants:     len(s.present()),
				Reason:        ReasonReconnected,
			})
		}
		a.armGrace()
	}
	return JoinResult{
		Room:        s.room(),
		Session:     s.info(),
		Participant: s.participant(mem),
		IsHost:      s.hostID == mem.id,
		Reconnected: true,
	}
}

func (a *roomActor) start(s *session, requesterID string) (Info, error) {
	if requesterID != s.hostID {
		return Info{}, domain.ErrNotHost
	}
	if s.state != domain.SessionForming {
		return Info{}, domain.Errorf(domain.CodeInvalidState, "session %s is %s", s.id, s.state)
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.m.cfg.StoreTimeout)
	defer cancel()
	if err := a.m.reg.MarkInGame(ctx, a.roomID, s.generation); err != nil {
		return Info{}, err
	}
	b, err := board.Deal(s.difficulty, a.m.cfg.Rand())
	if err != nil {
		return Info{}, domain.Errorf(domain.CodeInvalidState, "%v", err)
	}
	s.board = b
	s.state = domain.SessionActive
	s.startedAt = a.m.now()

	a.publish(s, domain.EventGameStarted, domain.GameStartedPayload{
		SessionID:    s.id,
		HostID:       s.hostID,
		Difficulty:   s.difficulty,
		CardCount:    b.Len(),
		Participants: s.roster(),
	})
	a.log.Info("session_started", zap.String("session_id", s.id), zap.Int("participants", len(s.present())),
		zap.Int("cards", b.Len()))
	return s.info(), nil
}

func (a *roomActor) flip(s *session, participantID string, cardIndex int) (board.FlipOutcome, error) {
	if s.state != domain.SessionActive {
		return board.FlipOutcome{}, domain.Errorf(domain.CodeInvalidMove, "session %s is %s", s.id, s.state)
	}
	mem := s.member(participantID)
	if mem == nil || mem.left {
		return board.FlipOutcome{}, domain.Errorf(domain.CodeNotAuthenticated, "%s is not seated in session %s", participantID, s.id)
	}
	out, err := s.board.Flip(participantID, cardIndex)
	if err != nil {
		return out, err
	}

	flipped := domain.CardFlippedPayload{
		SessionID:     s.id,
		ParticipantID: participantID,
		Index:         cardIndex,
		PairID:        out.PairID,
		Result:        string(out.Kind),
	}
	switch out.Kind {
	case board.OutcomeMatch:
		p, _ := s.scores.RecordMatch(participantID)
		flipped.Hidden = out.Released
		a.publish(s, domain.EventCardFlipped, flipped)
		a.publish(s, domain.EventMatchFound, domain.MatchFoundPayload{
			SessionID:     s.id,
			ParticipantID: participantID,
			Name:          mem.name,
			PairID:        out.PairID,
			Indices:       out.Indices,
			XP:            p.XP,
			Streak:        p.Streak,
			PairsLeft:     out.PairsLeft,
		})
		if out.Complete {
			a.finish(s, domain.EndCompleted)
		}
	case board.OutcomeMiss:
		s.scores.RecordMiss(participantID)
		flipped.Hidden = append([]int{out.Indices[0], out.Indices[1]}, out.Released...)
		a.publish(s, domain.EventCardFlipped, flipped)
	default:
		flipped.Hidden = out.Released
		a.publish(s, domain.EventCardFlipped, flipped)
	}
	return out, nil
}

func (a *roomActor) leave(s *session, participantID string) {
	mem := s.member(participantID)
	if mem == nil || mem.left {
		return
	}
	a.m.forgetPlayer(participantID, s.id)
	if s.state == domain.SessionEnded {
		mem.left = true
		mem.connected = false
		return
	}

	var hidden []int
	if s.state == domain.SessionForming {
		s.members = removeMember(s.members, participantID)
		s.scores.Remove(participantID)
	} else {
		mem.left = true
		mem.connected = false
		s.scores.MarkLeft(participantID)
		if idx, ok := s.board.Forfeit(participantID); ok {
			hidden = []int{idx}
		}
	}
	if s.hostID == participantID {
		s.hostID = s.electHost(participantID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.m.cfg.StoreTimeout)
	defer cancel()
	if err := a.m.reg.Release(ctx, a.roomID, s.generation); err != nil {
		a.log.Warn("seat_release_failed", append(obslog.Room(a.roomID, s.generation), zap.Error(err))...)
	}

	remaining := len(s.present())
	a.publish(s, domain.EventPlayerLeft, domain.PlayerPayload{
		SessionID:     s.id,
		ParticipantID: participantID,
		Name:          mem.name,
		HostID:        s.hostID,
		Occupants:     remaining,
		Reason:        ReasonLeft,
		Hidden:        hidden,
	})
	a.log.Info("player_left", zap.String("session_id", s.id), zap.String("participant_id", participantID),
		zap.Int("occupants", remaining))

	if remaining > 0 {
		a.armGrace()
		return
	}
	switch s.state {
	case domain.SessionActive:
		a.finish(s, domain.EndAbandoned)
	case domain.SessionForming:
		a.discard(s)
	}
}

func (a *roomActor) disconnect(s *session, participantID string) {
	mem := s.member(participantID)
	if mem == nil || mem.left || !mem.connected {
		return
	}
	mem.connected = false
	if s.state == domain.SessionEnded {
		return
	}
	if s.hostID == participantID {
		if next := s.member(s.electHost(participantID)); next != nil && next.connected {
			s.hostID = next.id
		}
	}
	a.publish(s, domain.EventPlayerLeft, domain.PlayerPayload{
		SessionID:     s.id,
		ParticipantID: participantID,
		Name:          mem.name,
		HostID:        s.hostID,
		Occupants:     len(s.present()),
		Reason:        ReasonDisconnected,
	})
	a.armGrace()
}

func removeMember(ms []*member, id string) []*member {
	out := ms[:0]
	for _, m := range ms {
		if m.id != id {
			out = append(out, m)
		}
	}
	return out
}
