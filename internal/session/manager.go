package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/board"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/events"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/obslog"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/registry"
	"go.uber.org/zap"
)

// Archive receives the summary of every finished session.
type Archive interface {
	SaveSummary(ctx context.Context, s domain.Summary) error
}

// Config tunes the session manager. Zero values take the defaults below.
type Config struct {
	MatchXP        int
	AbandonGrace   time.Duration
	EndedRetention time.Duration
	IdleActorTTL   time.Duration
	SweepInterval  time.Duration
	StoreTimeout   time.Duration
	ArchiveTimeout time.Duration
	InboxSize      int
	Now            func() time.Time
	Rand           func() *rand.Rand
}

func (c *Config) defaults() {
	if c.AbandonGrace <= 0 {
		c.AbandonGrace = 60 * time.Second
	}
	if c.EndedRetention <= 0 {
		c.EndedRetention = 10 * time.Minute
	}
	if c.IdleActorTTL <= 0 {
		c.IdleActorTTL = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 3 * time.Second
	}
	if c.ArchiveTimeout <= 0 {
		c.ArchiveTimeout = 10 * time.Second
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 64
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Rand == nil {
		c.Rand = board.NewRand
	}
}

const maxJoinAttempts = 8

// errStaleSeat means a reserved seat belongs to a room incarnation that can
// no longer admit players; the joiner gives it back and searches again.
var errStaleSeat = errors.New("reserved seat is stale")

// Manager runs one actor per room and exposes the session operations.
type Manager struct {
	reg  *registry.Registry
	hub  *events.Hub
	sink Archive
	cfg  Config
	log  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	actors   map[string]*roomActor
	sessions map[string]string // session id → room id
	players  map[string]string // participant id → live session id
	closed   bool
}

// New builds a manager. sink may be nil.
func New(reg *registry.Registry, hub *events.Hub, sink Archive, cfg Config, logger *zap.Logger) *Manager {
	cfg.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		reg:      reg,
		hub:      hub,
		sink:     sink,
		cfg:      cfg,
		log:      obslog.Or(logger).Named("session"),
		ctx:      ctx,
		cancel:   cancel,
		actors:   make(map[string]*roomActor),
		sessions: make(map[string]string),
		players:  make(map[string]string),
	}
}

func (m *Manager) now() time.Time { return m.cfg.Now() }

func (m *Manager) actor(roomID string) (*roomActor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, domain.Transient("session manager closed", nil)
	}
	if a, ok := m.actors[roomID]; ok {
		return a, nil
	}
	a := newRoomActor(m, roomID)
	m.actors[roomID] = a
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		a.loop(m.ctx)
	}()
	return a, nil
}

func (m *Manager) retire(a *roomActor) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.actors[a.roomID] != a {
		return false
	}
	delete(m.actors, a.roomID)
	return true
}

func (m *Manager) bindSession(sessionID, roomID string) {
	m.mu.Lock()
	m.sessions[sessionID] = roomID
	m.mu.Unlock()
}

func (m *Manager) forgetSession(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

func (m *Manager) bindPlayer(participantID, sessionID string) {
	m.mu.Lock()
	m.players[participantID] = sessionID
	m.mu.Unlock()
}

func (m *Manager) forgetPlayer(participantID, sessionID string) {
	m.mu.Lock()
	if m.players[participantID] == sessionID {
		delete(m.players, participantID)
	}
	m.mu.Unlock()
}

func (m *Manager) roomOf(sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID, ok := m.sessions[sessionID]
	if !ok {
		return "", domain.Errorf(domain.CodeSessionNotFound, "session %s not found", sessionID)
	}
	return roomID, nil
}

// exec runs fn on the room's actor, moving to a fresh actor if the current
// one retired before taking the request.
func exec[T any](ctx context.Context, m *Manager, roomID string, fn func(*roomActor) (T, error), late func(T, error)) (T, error) {
	var zero T
	for attempt := 0; attempt < 3; attempt++ {
		a, err := m.actor(roomID)
		if err != nil {
			return zero, err
		}
		v, err := call(ctx, a, fn, late)
		if errors.Is(err, errRetired) {
			continue
		}
		return v, err
	}
	return zero, domain.Transient("room actor restarting", nil)
}

func inSession[T any](ctx context.Context, m *Manager, sessionID string, fn func(*roomActor, *session) (T, error)) (T, error) {
	roomID, err := m.roomOf(sessionID)
	if err != nil {
		var zero T
		return zero, err
	}
	return exec(ctx, m, roomID, func(a *roomActor) (T, error) {
		s, err := a.lookup(sessionID)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(a, s)
	}, nil)
}

// JoinGame seats the participant in the fullest open room of the tier (any
// tier when d is empty), opening a new room when none has a free seat. A
// participant already seated in a live session is reconnected to it instead.
func (m *Manager) JoinGame(ctx context.Context, ident domain.Identity, d domain.Difficulty) (JoinResult, error) {
	if strings.TrimSpace(ident.ID) == "" {
		return JoinResult{}, domain.ErrNotAuthenticated
	}
	if res, ok, err := m.rejoin(ctx, ident); ok || err != nil {
		return res, err
	}
	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		resv, err := m.reg.Acquire(ctx, d)
		if err != nil {
			return JoinResult{}, err
		}
		res, err := m.seat(ctx, resv.Room, ident)
		if errors.Is(err, errStaleSeat) {
			m.log.Debug("join_retry", append(obslog.Room(resv.Room.ID, resv.Room.Generation), zap.Int("attempt", attempt))...)
			continue
		}
		return res, err
	}
	return JoinResult{}, domain.Transient("join: rooms kept changing", nil)
}

// JoinRoom seats the participant in a specific room.
func (m *Manager) JoinRoom(ctx context.Context, ident domain.Identity, roomID string) (JoinResult, error) {
	if strings.TrimSpace(ident.ID) == "" {
		return JoinResult{}, domain.ErrNotAuthenticated
	}
	if res, ok, err := m.rejoin(ctx, ident); ok || err != nil {
		return res, err
	}
	room, err := m.reg.ReserveIn(ctx, roomID)
	if err != nil {
		return JoinResult{}, err
	}
	res, err := m.seat(ctx, room, ident)
	if errors.Is(err, errStaleSeat) {
		return JoinResult{}, domain.ErrRoomFull
	}
	return res, err
}

// seat admits ident into the room holding a reserved seat. The seat is given
// back whenever admission does not consume it.
func (m *Manager) seat(ctx context.Context, room domain.Room, ident domain.Identity) (JoinResult, error) {
	var once sync.Once
	giveBack := func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
			defer cancel()
			if err := m.reg.Release(rctx, room.ID, room.Generation); err != nil {
				m.log.Warn("seat_release_failed", append(obslog.Room(room.ID, room.Generation), zap.Error(err))...)
			}
		})
	}
	late := func(res JoinResult, err error) {
		if err != nil || res.extraSeat {
			giveBack()
		}
		if err == nil {
			// the caller never learned about this seat
			_ = m.Disconnect(context.Background(), res.Session.ID, ident.ID)
		}
	}
	res, err := exec(ctx, m, room.ID, func(a *roomActor) (JoinResult, error) {
		return a.admit(room, ident)
	}, late)
	if err != nil {
		if !errors.Is(err, errPending) {
			giveBack()
		}
		return JoinResult{}, err
	}
	if res.extraSeat {
		giveBack()
	}
	return res, nil
}

func (m *Manager) rejoin(ctx context.Context, ident domain.Identity) (JoinResult, bool, error) {
	m.mu.Lock()
	sid, ok := m.players[ident.ID]
	m.mu.Unlock()
	if !ok {
		return JoinResult{}, false, nil
	}
	type outcome struct {
		res JoinResult
		ok  bool
	}
	out, err := inSession(ctx, m, sid, func(a *roomActor, s *session) (outcome, error) {
		mem := s.member(ident.ID)
		if s.state == domain.SessionEnded || mem == nil || mem.left {
			return outcome{}, nil
		}
		return outcome{res: a.reconnect(s, mem), ok: true}, nil
	})
	if errors.Is(err, domain.ErrSessionNotFound) {
		m.forgetPlayer(ident.ID, sid)
		return JoinResult{}, false, nil
	}
	if err != nil {
		return JoinResult{}, false, err
	}
	if !out.ok {
		m.forgetPlayer(ident.ID, sid)
	}
	return out.res, out.ok, nil
}

// StartSession moves a forming session to active. Only the host may start.
func (m *Manager) StartSession(ctx context.Context, sessionID, requesterID string) (Info, error) {
	if requesterID == "" {
		return Info{}, domain.ErrNotAuthenticated
	}
	return inSession(ctx, m, sessionID, func(a *roomActor, s *session) (Info, error) {
		return a.start(s, requesterID)
	})
}

// Flip turns one card for the participant and scores the result.
func (m *Manager) Flip(ctx context.Context, sessionID, participantID string, cardIndex int) (board.FlipOutcome, error) {
	if participantID == "" {
		return board.FlipOutcome{}, domain.ErrNotAuthenticated
	}
	return inSession(ctx, m, sessionID, func(a *roomActor, s *session) (board.FlipOutcome, error) {
		return a.flip(s, participantID, cardIndex)
	})
}

// EndSession ends an active session at the host's request. Ending an
// already ended session returns its frozen summary.
func (m *Manager) EndSession(ctx context.Context, sessionID, requesterID string) (domain.Summary, error) {
	return inSession(ctx, m, sessionID, func(a *roomActor, s *session) (domain.Summary, error) {
		if s.state == domain.SessionEnded {
			return *s.summary, nil
		}
		if requesterID == "" || requesterID != s.hostID {
			return domain.Summary{}, domain.ErrNotHost
		}
		if s.state != domain.SessionActive {
			return domain.Summary{}, domain.Errorf(domain.CodeInvalidState, "session %s has not started", s.id)
		}
		a.finish(s, domain.EndHost)
		return *s.summary, nil
	})
}

// LeaveRoom removes the participant from the roster and frees their seat.
// Leaving twice is a no-op.
func (m *Manager) LeaveRoom(ctx context.Context, sessionID, participantID string) error {
	_, err := inSession(ctx, m, sessionID, func(a *roomActor, s *session) (struct{}, error) {
		a.leave(s, participantID)
		return struct{}{}, nil
	})
	return err
}

// Disconnect records a dropped connection. The seat is kept for the grace
// period so the participant can come back.
func (m *Manager) Disconnect(ctx context.Context, sessionID, participantID string) error {
	_, err := inSession(ctx, m, sessionID, func(a *roomActor, s *session) (struct{}, error) {
		a.disconnect(s, participantID)
		return struct{}{}, nil
	})
	return err
}

// Reconnect marks a seated participant as connected again.
func (m *Manager) Reconnect(ctx context.Context, sessionID, participantID string) (JoinResult, error) {
	return inSession(ctx, m, sessionID, func(a *roomActor, s *session) (JoinResult, error) {
		mem := s.member(participantID)
		if mem == nil || mem.left {
			return JoinResult{}, domain.Errorf(domain.CodeNotAuthenticated, "%s is not seated in session %s", participantID, s.id)
		}
		return a.reconnect(s, mem), nil
	})
}

// Participants returns the roster with live scoreboard values.
func (m *Manager) Participants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	return inSession(ctx, m, sessionID, func(a *roomActor, s *session) ([]domain.Participant, error) {
		return s.roster(), nil
	})
}

// Snapshot returns everything a client needs to rebuild its view, consistent
// with the room's event sequence at LastSeq.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	return inSession(ctx, m, sessionID, func(a *roomActor, s *session) (Snapshot, error) {
		return s.snapshot(m.hub.LastSeq(a.roomID)), nil
	})
}

func (m *Manager) Session(ctx context.Context, sessionID string) (Info, error) {
	return inSession(ctx, m, sessionID, func(a *roomActor, s *session) (Info, error) {
		return s.info(), nil
	})
}

// Subscribe opens an event stream for the room.
func (m *Manager) Subscribe(ctx context.Context, roomID string) *events.Subscription {
	return m.hub.Subscribe(ctx, roomID)
}

func (m *Manager) Rooms(ctx context.Context) ([]domain.Room, error) { return m.reg.Rooms(ctx) }

func (m *Manager) archive(s domain.Summary) {
	if m.sink == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ArchiveTimeout)
		defer cancel()
		if err := m.sink.SaveSummary(ctx, s); err != nil {
			m.log.Error("archive_failed", zap.String("session_id", s.SessionID), zap.Error(err))
			return
		}
		m.log.Debug("archived", zap.String("session_id", s.SessionID))
	}()
}

// Run sweeps retired sessions and idle actors until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	t := time.NewTicker(m.cfg.SweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		case <-t.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep runs one housekeeping pass over every room actor.
func (m *Manager) Sweep(ctx context.Context) {
	m.mu.Lock()
	actors := make([]*roomActor, 0, len(m.actors))
	for _, a := range m.actors {
		actors = append(actors, a)
	}
	m.mu.Unlock()

	now := m.now()
	for _, a := range actors {
		fin := make(chan struct{})
		a.post(func(a *roomActor) {
			defer close(fin)
			a.sweep(now)
		})
		select {
		case <-fin:
		case <-a.done:
		case <-ctx.Done():
			return
		}
	}
}

// ActiveRooms reports how many room actors are running.
func (m *Manager) ActiveRooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actors)
}

// Close stops every room actor and waits for pending archive writes.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}
