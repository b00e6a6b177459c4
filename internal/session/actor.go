package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/obslog"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/scoreboard"
	"go.uber.org/zap"
)

// errRetired is returned to callers whose request raced with an actor
// shutting down; the manager retries on a fresh actor.
var errRetired = errors.New("room actor retired")

var errPending = errors.New("request still pending")

type request struct {
	ctx   context.Context
	run   func(*roomActor)
	fail  func(error)
	quiet bool // housekeeping; does not count as room activity
}

// roomActor owns every session ever bound to one room. All fields are
// touched only from the actor goroutine.
type roomActor struct {
	roomID string
	m      *Manager
	log    *zap.Logger
	inbox  chan request
	done   chan struct{}

	cur        *session
	ended      map[string]*session
	generation uint64
	lastActive time.Time
	grace      *time.Timer
	graceSeq   uint64
	retired    bool
}

func newRoomActor(m *Manager, roomID string) *roomActor {
	return &roomActor{
		roomID:     roomID,
		m:          m,
		log:        m.log.With(zap.String("room_id", roomID)),
		inbox:      make(chan request, m.cfg.InboxSize),
		done:       make(chan struct{}),
		ended:      make(map[string]*session),
		lastActive: m.now(),
	}
}

func (a *roomActor) loop(ctx context.Context) {
	defer close(a.done)
	defer a.stopGrace()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-a.inbox:
			if !req.quiet {
				a.lastActive = a.m.now()
			}
			a.handle(req)
			if a.retired {
				return
			}
		}
	}
}

// handle runs one request. A panic is contained to the request: the room
// keeps serving and subscribers are told to resync.
func (a *roomActor) handle(req request) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("room_actor_panic", zap.Any("panic", r), zap.Stack("stack"))
			req.fail(domain.Transient("room", fmt.Errorf("internal error: %v", r)))
			a.resync("recovered")
		}
	}()
	if req.ctx != nil && req.ctx.Err() != nil {
		req.fail(domain.Transient("room busy", req.ctx.Err()))
		return
	}
	req.run(a)
	a.checkInvariants()
}

// post queues housekeeping work from outside a caller, e.g. from a timer.
func (a *roomActor) post(fn func(*roomActor)) {
	req := request{ctx: context.Background(), run: fn, fail: func(error) {}, quiet: true}
	select {
	case a.inbox <- req:
	case <-a.done:
	}
}

type result[T any] struct {
	v   T
	err error
}

// call runs fn on the actor and waits for it under ctx. If the caller gives
// up while fn is still queued or running, call returns an error wrapping
// errPending and late (if set) later receives the real outcome.
func call[T any](ctx context.Context, a *roomActor, fn func(*roomActor) (T, error), late func(T, error)) (T, error) {
	var zero T
	reply := make(chan result[T], 1)
	req := request{
		ctx: ctx,
		run: func(a *roomActor) {
			v, err := fn(a)
			reply <- result[T]{v, err}
		},
		fail: func(err error) {
			select {
			case reply <- result[T]{err: err}:
			default:
			}
		},
	}
	select {
	case a.inbox <- req:
	case <-a.done:
		return zero, errRetired
	case <-ctx.Done():
		return zero, domain.Transient("room busy", ctx.Err())
	}
	select {
	case r := <-reply:
		return r.v, r.err
	case <-a.done:
		select {
		case r := <-reply:
			return r.v, r.err
		default:
			return zero, errRetired
		}
	case <-ctx.Done():
		select {
		case r := <-reply:
			return r.v, r.err
		default:
		}
		if late != nil {
			go func() {
				select {
				case r := <-reply:
					late(r.v, r.err)
				case <-a.done:
					select {
					case r := <-reply:
						late(r.v, r.err)
					default:
						late(zero, errRetired)
					}
				}
			}()
		}
		return zero, domain.Transient("room busy", errPending)
	}
}

func (a *roomActor) lookup(sessionID string) (*session, error) {
	if a.cur != nil && a.cur.id == sessionID {
		return a.cur, nil
	}
	if s, ok := a.ended[sessionID]; ok {
		return s, nil
	}
	return nil, domain.Errorf(domain.CodeSessionNotFound, "session %s not found", sessionID)
}

func (a *roomActor) publish(s *session, kind domain.EventKind, payload any) domain.Event {
	return a.m.hub.Publish(a.roomID, s.generation, kind, payload)
}

// resync tells subscribers to discard local state and fetch a snapshot.
func (a *roomActor) resync(reason string) {
	sid := ""
	gen := a.generation
	if a.cur != nil {
		sid = a.cur.id
		gen = a.cur.generation
	}
	a.m.hub.Publish(a.roomID, gen, domain.EventStateResync, domain.ResyncPayload{SessionID: sid, Reason: reason})
}

// checkInvariants verifies the current session after each request.
func (a *roomActor) checkInvariants() {
	s := a.cur
	if s == nil {
		return
	}
	var problems []string
	if n := len(s.present()); n > s.capacity {
		problems = append(problems, fmt.Sprintf("roster %d exceeds capacity %d", n, s.capacity))
	}
	if s.board != nil {
		if got, want := s.scores.TotalPairs()+s.board.PairsLeft(), s.difficulty.Pairs(); got != want {
			problems = append(problems, fmt.Sprintf("pairs scored+left %d != %d", got, want))
		}
	}
	if s.state == domain.SessionForming && s.board != nil {
		problems = append(problems, "forming session has a board")
	}
	if len(problems) == 0 {
		return
	}
	a.log.Error("room_invariant_violated", zap.String("session_id", s.id), zap.Strings("problems", problems))
	a.resync("invariant")
}

// armGrace starts the abandonment countdown when nobody in the current
// session is connected, and cancels it otherwise.
func (a *roomActor) armGrace() {
	s := a.cur
	if s == nil || s.anyConnected() || len(s.present()) == 0 {
		a.stopGrace()
		return
	}
	if a.grace != nil {
		return
	}
	a.graceSeq++
	seq := a.graceSeq
	sid := s.id
	a.grace = time.AfterFunc(a.m.cfg.AbandonGrace, func() {
		a.post(func(a *roomActor) { a.graceExpired(seq, sid) })
	})
	a.log.Debug("abandon_grace_armed", zap.String("session_id", sid), zap.Duration("grace", a.m.cfg.AbandonGrace))
}

func (a *roomActor) stopGrace() {
	if a.grace != nil {
		a.grace.Stop()
		a.grace = nil
	}
	a.graceSeq++
}

func (a *roomActor) graceExpired(seq uint64, sessionID string) {
	if seq != a.graceSeq {
		return
	}
	a.grace = nil
	s := a.cur
	if s == nil || s.id != sessionID || s.anyConnected() {
		return
	}
	a.log.Info("session_abandoned", zap.String("session_id", s.id), zap.String("state", string(s.state)))
	switch s.state {
	case domain.SessionActive:
		a.finish(s, domain.EndAbandoned)
	case domain.SessionForming:
		a.discard(s)
	}
}

// finish freezes the standings, announces them, reopens the room and hands
// the summary to the archive.
func (a *roomActor) finish(s *session, reason domain.EndReason) {
	if s.state != domain.SessionActive {
		return
	}
	a.stopGrace()
	s.state = domain.SessionEnded
	s.endedAt = a.m.now()
	s.summary = &domain.Summary{
		SessionID:  s.id,
		RoomID:     s.roomID,
		Generation: s.generation,
		Difficulty: s.difficulty,
		Reason:     reason,
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
		Standings:  scoreboard.Rank(s.scores.Entries()),
	}
	a.publish(s, domain.EventGameEnded, domain.GameEndedPayload{Summary: s.summary})
	a.log.Info("session_ended", zap.String("session_id", s.id), zap.String("reason", string(reason)),
		zap.Int("participants", len(s.members)), zap.Int("pairs", s.summary.TotalPairs()))

	a.ended[s.id] = s
	a.release(s)
	a.m.archive(*s.summary)
}

// discard drops a forming session whose roster emptied; it never started so
// it leaves no summary behind.
func (a *roomActor) discard(s *session) {
	if s.state != domain.SessionForming {
		return
	}
	a.stopGrace()
	s.discarded = true
	a.m.forgetSession(s.id)
	a.log.Info("session_discarded", zap.String("session_id", s.id))
	a.release(s)
}

// release unbinds s from the room and resets the room for the next game.
func (a *roomActor) release(s *session) {
	for _, m := range s.members {
		a.m.forgetPlayer(m.id, s.id)
	}
	if a.cur == s {
		a.cur = nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.m.cfg.StoreTimeout)
	defer cancel()
	room, err := a.m.reg.Reset(ctx, a.roomID, s.generation)
	if err != nil {
		a.log.Error("room_reset_failed", append(obslog.Room(a.roomID, s.generation), zap.Error(err))...)
		a.generation = s.generation + 1
		return
	}
	if room.Generation > a.generation {
		a.generation = room.Generation
	}
}

// sweep drops ended sessions past retention and retires the actor when it
// has nothing left to do.
func (a *roomActor) sweep(now time.Time) {
	for id, s := range a.ended {
		if now.Sub(s.endedAt) >= a.m.cfg.EndedRetention {
			delete(a.ended, id)
			a.m.forgetSession(id)
		}
	}
	if a.cur != nil || len(a.ended) > 0 {
		return
	}
	if now.Sub(a.lastActive) < a.m.cfg.IdleActorTTL {
		return
	}
	if a.m.retire(a) {
		a.retired = true
		a.log.Debug("room_actor_retired")
	}
}
