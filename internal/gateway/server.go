package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/board"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/events"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/identity"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/msgcat"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/obslog"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/session"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Engine is the part of the session manager the gateway drives.
type Engine interface {
	JoinGame(ctx context.Context, ident domain.Identity, d domain.Difficulty) (session.JoinResult, error)
	JoinRoom(ctx context.Context, ident domain.Identity, roomID string) (session.JoinResult, error)
	StartSession(ctx context.Context, sessionID, requesterID string) (session.Info, error)
	Flip(ctx context.Context, sessionID, participantID string, cardIndex int) (board.FlipOutcome, error)
	EndSession(ctx context.Context, sessionID, requesterID string) (domain.Summary, error)
	LeaveRoom(ctx context.Context, sessionID, participantID string) error
	Disconnect(ctx context.Context, sessionID, participantID string) error
	Participants(ctx context.Context, sessionID string) ([]domain.Participant, error)
	Snapshot(ctx context.Context, sessionID string) (session.Snapshot, error)
	Subscribe(ctx context.Context, roomID string) *events.Subscription
	Rooms(ctx context.Context) ([]domain.Room, error)
}

// History serves the history op.
type History interface {
	Recent(ctx context.Context, participantID string, limit int) ([]domain.Summary, error)
}

type Server struct {
	engine  Engine
	auth    identity.Resolver
	guests  identity.Resolver
	history History
	notices *msgcat.Catalog
	origins []string
	node    string

	opTimeout    time.Duration
	writeTimeout time.Duration
	pingInterval time.Duration
	readLimit    int64

	active atomic.Int64
	log    *zap.Logger
}

type Option func(*Server)

// WithResolver authenticates bearer tokens.
func WithResolver(r identity.Resolver) Option { return func(s *Server) { s.auth = r } }

// WithGuests admits connections without a token through r.
func WithGuests(r identity.Resolver) Option { return func(s *Server) { s.guests = r } }

func WithHistory(h History) Option { return func(s *Server) { s.history = h } }

func WithNotices(c *msgcat.Catalog) Option { return func(s *Server) { s.notices = c } }

// WithOrigins sets the accepted Origin host patterns for cross-origin
// browsers.
func WithOrigins(patterns ...string) Option { return func(s *Server) { s.origins = patterns } }

func WithNode(id string) Option { return func(s *Server) { s.node = id } }

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

func WithOpTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithPingInterval sets the keepalive period; zero disables pings.
func WithPingInterval(d time.Duration) Option { return func(s *Server) { s.pingInterval = d } }

func New(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:       engine,
		opTimeout:    10 * time.Second,
		writeTimeout: 5 * time.Second,
		pingInterval: 30 * time.Second,
		readLimit:    64 << 10,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = obslog.Or(s.log).Named("gateway")
	return s
}

// Handler serves GET /ws and GET /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.serveWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Connections is the number of open sockets.
func (s *Server) Connections() int { return int(s.active.Load()) }

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ident, err := s.authenticate(r)
	if err != nil {
		de := domain.AsError(err)
		status := http.StatusUnauthorized
		if de.Code == domain.CodeTransient {
			status = http.StatusServiceUnavailable
		}
		s.log.Info("ws_auth_rejected", zap.String("code", string(de.Code)), zap.String("remote", r.RemoteAddr))
		http.Error(w, de.Error(), status)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.log.Warn("ws_accept_failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(s.readLimit)

	s.active.Add(1)
	defer s.active.Add(-1)
	newConn(s, ws, ident).run(r.Context())
}

func (s *Server) authenticate(r *http.Request) (domain.Identity, error) {
	q := r.URL.Query()
	token := strings.TrimSpace(q.Get("token"))
	if h := r.Header.Get("Authorization"); token == "" && len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		token = strings.TrimSpace(h[7:])
	}

	switch {
	case token != "" && s.auth != nil:
		return s.auth.Resolve(r.Context(), token)
	case s.guests != nil:
		return s.guests.Resolve(r.Context(), q.Get("name"))
	default:
		return domain.Identity{}, domain.ErrNotAuthenticated
	}
}

// notice renders key from the catalog, or "" when there is none.
func (s *Server) notice(data any, keys ...string) string {
	if s.notices == nil {
		return ""
	}
	out, err := s.notices.First(data, keys...)
	if err != nil {
		s.log.Debug("notice_render_failed", zap.Strings("keys", keys), zap.Error(err))
		return ""
	}
	return out
}

func isClosed(err error) bool {
	return websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled)
}
