package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rosejohnson3923/pathfinity-app-sub007/pkg/matchdto"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

type flippedPayload struct {
	Index  int   `json:"index"`
	PairID int   `json:"pair_id"`
	Hidden []int `json:"hidden"`
}

type matchPayload struct {
	Indices [2]int `json:"indices"`
}

type startedPayload struct {
	CardCount int `json:"card_count"`
}

type endedPayload struct {
	Summary struct {
		Reason    string `json:"reason"`
		Standings []struct {
			Rank int    `json:"rank"`
			Name string `json:"name"`
			XP   int    `json:"xp"`
		} `json:"standings"`
	} `json:"summary"`
}

// bot is one scripted player. The read loop owns the socket reads; the
// play loop owns the board memory.
type bot struct {
	name string
	conn *websocket.Conn
	log  *zap.Logger
	rnd  *rand.Rand

	wmu     sync.Mutex
	seq     atomic.Int64
	mu      sync.Mutex
	waiting map[string]chan matchdto.Response

	events chan matchdto.EventHeader
	resync chan matchdto.Snapshot
	closed chan struct{}

	cards   int
	known   map[int]int
	matched map[int]bool
	holding int // our revealed card, -1 when none
	blocked bool
	started bool
	ended   *endedPayload
}

func dial(ctx context.Context, server, name string, header http.Header, log *zap.Logger) (*bot, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", name, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", name, err)
	}
	b := &bot{
		name:    name,
		conn:    conn,
		log:     log.With(zap.String("bot", name)),
		rnd:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		waiting: make(map[string]chan matchdto.Response),
		events:  make(chan matchdto.EventHeader, 1024),
		resync:  make(chan matchdto.Snapshot, 8),
		closed:  make(chan struct{}),
		known:   make(map[int]int),
		matched: make(map[int]bool),
		holding: -1,
	}
	go b.readLoop()
	return b, nil
}

func (b *bot) readLoop() {
	defer close(b.closed)
	for {
		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.log.Warn("read_failed", zap.Error(err))
			}
			return
		}
		var env matchdto.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			b.log.Warn("bad_frame", zap.ByteString("frame", raw))
			continue
		}
		switch env.Type {
		case matchdto.FrameResponse:
			var resp matchdto.Response
			if json.Unmarshal(raw, &resp) != nil {
				continue
			}
			b.mu.Lock()
			ch := b.waiting[resp.ID]
			delete(b.waiting, resp.ID)
			b.mu.Unlock()
			if ch != nil {
				ch <- resp
			}
		case matchdto.FrameEvent:
			var ef matchdto.EventFrame
			var hdr matchdto.EventHeader
			if json.Unmarshal(raw, &ef) != nil || json.Unmarshal(ef.Event, &hdr) != nil {
				continue
			}
			if ef.Notice != "" {
				b.log.Debug("notice", zap.String("kind", hdr.Kind), zap.String("text", ef.Notice))
			}
			b.events <- hdr
		case matchdto.FrameResync:
			var rf matchdto.ResyncFrame
			var snap matchdto.Snapshot
			if json.Unmarshal(raw, &rf) != nil || json.Unmarshal(rf.Snapshot, &snap) != nil {
				continue
			}
			select {
			case b.resync <- snap:
			default:
			}
		}
	}
}

func (b *bot) call(ctx context.Context, cmd matchdto.Command, out any) error {
	cmd.ID = fmt.Sprintf("%s-%d", b.name, b.seq.Add(1))
	ch := make(chan matchdto.Response, 1)
	b.mu.Lock()
	b.waiting[cmd.ID] = ch
	b.mu.Unlock()

	b.wmu.Lock()
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := b.conn.WriteJSON(cmd)
	b.wmu.Unlock()
	if err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Data) > 0 {
			return json.Unmarshal(resp.Data, out)
		}
		return nil
	case <-b.closed:
		return errors.New("connection closed")
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.waiting, cmd.ID)
		b.mu.Unlock()
		return ctx.Err()
	}
}

func (b *bot) close() {
	b.wmu.Lock()
	_ = b.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	b.wmu.Unlock()
	_ = b.conn.Close()
}

// absorb applies every queued event and snapshot to the board memory.
func (b *bot) absorb() {
	for {
		select {
		case snap := <-b.resync:
			if snap.Board != nil {
				b.cards = len(snap.Board.Cards)
				b.started = true
				for i, c := range snap.Board.Cards {
					if c.Face == "matched" {
						b.matched[i] = true
					}
				}
			}
		case ev := <-b.events:
			b.observe(ev)
		default:
			return
		}
	}
}

func (b *bot) observe(ev matchdto.EventHeader) {
	switch ev.Kind {
	case "game_started":
		var p startedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			b.cards = p.CardCount
			b.started = true
			clear(b.known)
			clear(b.matched)
		}
	case "card_flipped":
		var p flippedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			if p.PairID >= 0 {
				b.known[p.Index] = p.PairID
			}
			if slices.Contains(p.Hidden, b.holding) {
				b.holding = -1
			}
		}
	case "match_found":
		var p matchPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			b.matched[p.Indices[0]] = true
			b.matched[p.Indices[1]] = true
		}
	case "game_ended":
		var p endedPayload
		if json.Unmarshal(ev.Payload, &p) == nil {
			b.ended = &p
		}
	}
}

// knownPair returns two unmatched cards already seen with the same pair id.
func (b *bot) knownPair() (int, int, bool) {
	seen := map[int]int{}
	for i, pid := range b.known {
		if b.matched[i] {
			continue
		}
		if j, ok := seen[pid]; ok {
			return j, i, true
		}
		seen[pid] = i
	}
	return 0, 0, false
}

func (b *bot) partnerOf(idx, pairID int) (int, bool) {
	for i, pid := range b.known {
		if i != idx && pid == pairID && !b.matched[i] {
			return i, true
		}
	}
	return 0, false
}

func (b *bot) unknown(except int) (int, bool) {
	var pool []int
	for i := 0; i < b.cards; i++ {
		if _, seen := b.known[i]; !seen && !b.matched[i] && i != except {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		for i := 0; i < b.cards; i++ {
			if !b.matched[i] && i != except {
				pool = append(pool, i)
			}
		}
	}
	if len(pool) == 0 {
		return 0, false
	}
	return pool[b.rnd.IntN(len(pool))], true
}

func (b *bot) flip(ctx context.Context, idx int) (matchdto.FlipData, error) {
	var fd matchdto.FlipData
	if err := b.call(ctx, matchdto.Command{Op: matchdto.OpFlip, Index: &idx}, &fd); err != nil {
		return fd, err
	}
	b.known[idx] = fd.PairID
	switch fd.Kind {
	case "revealed":
		b.holding = idx
		if slices.Contains(fd.Released, idx) {
			b.holding = -1
		}
	case "match":
		b.matched[fd.Indices[0]] = true
		b.matched[fd.Indices[1]] = true
		b.holding = -1
	default:
		b.holding = -1
	}
	return fd, nil
}

// choose picks the next card. Holding a card, it goes for the partner unless
// the last try was refused, then anything else to let the held card go.
func (b *bot) choose() (int, bool) {
	if b.holding >= 0 {
		if !b.blocked {
			if p, ok := b.partnerOf(b.holding, b.known[b.holding]); ok {
				return p, true
			}
		}
		return b.unknown(b.holding)
	}
	if i, _, ok := b.knownPair(); ok && !b.blocked {
		return i, true
	}
	return b.unknown(-1)
}

// waitStart blocks until game_started has been seen.
func (b *bot) waitStart(ctx context.Context) error {
	for {
		b.absorb()
		if b.started {
			return nil
		}
		select {
		case ev := <-b.events:
			b.observe(ev)
		case <-time.After(20 * time.Millisecond):
			// a resync snapshot may carry the start instead of an event
		case <-b.closed:
			return errors.New("connection closed")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// play flips cards until the game ends.
func (b *bot) play(ctx context.Context, think time.Duration) (*endedPayload, error) {
	if err := b.waitStart(ctx); err != nil {
		return nil, err
	}
	for {
		b.absorb()
		if b.ended != nil {
			return b.ended, nil
		}
		if idx, ok := b.choose(); ok {
			_, err := b.flip(ctx, idx)
			switch code := errorCode(err); {
			case err == nil:
				b.blocked = false
			case code == "InvalidMove" || code == "InvalidState":
				// someone else holds or matched it, or the game just ended
				b.blocked = true
			default:
				return nil, err
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.closed:
			return nil, errors.New("connection closed")
		case <-time.After(think):
		}
	}
}

func errorCode(err error) string {
	var e *matchdto.ErrorBody
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
