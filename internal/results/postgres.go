package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS career_match_sessions (
	session_id  TEXT PRIMARY KEY,
	room_id     TEXT NOT NULL,
	generation  BIGINT NOT NULL,
	difficulty  TEXT NOT NULL,
	reason      TEXT NOT NULL,
	total_pairs INT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL,
	standings   JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS career_match_standings (
	session_id     TEXT NOT NULL REFERENCES career_match_sessions(session_id) ON DELETE CASCADE,
	participant_id TEXT NOT NULL,
	name           TEXT NOT NULL,
	rank           INT NOT NULL,
	xp             INT NOT NULL,
	pairs_matched  INT NOT NULL,
	max_streak     INT NOT NULL,
	left_early     BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (session_id, participant_id)
);
CREATE INDEX IF NOT EXISTS career_match_standings_participant ON career_match_standings (participant_id);
`

// PostgresStore writes one row per session plus one row per standing.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates the tables when they do not exist yet.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresStore) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// SaveSummary upserts the session and its standings in one transaction, so a
// repeated end signal rewrites the same rows.
func (p *PostgresStore) SaveSummary(ctx context.Context, s domain.Summary) error {
	row, err := sessionRow(s)
	if err != nil {
		return err
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const upsertSession = `INSERT INTO career_match_sessions (
		session_id, room_id, generation, difficulty, reason, total_pairs,
		started_at, ended_at, duration_ms, standings
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb)
	ON CONFLICT (session_id) DO UPDATE SET
		reason=EXCLUDED.reason,
		total_pairs=EXCLUDED.total_pairs,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms,
		standings=EXCLUDED.standings`
	if _, err := tx.ExecContext(ctx, upsertSession, row.args()...); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	const upsertStanding = `INSERT INTO career_match_standings (
		session_id, participant_id, name, rank, xp, pairs_matched, max_streak, left_early
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (session_id, participant_id) DO UPDATE SET
		name=EXCLUDED.name,
		rank=EXCLUDED.rank,
		xp=EXCLUDED.xp,
		pairs_matched=EXCLUDED.pairs_matched,
		max_streak=EXCLUDED.max_streak,
		left_early=EXCLUDED.left_early`
	for _, st := range s.Standings {
		if _, err := tx.ExecContext(ctx, upsertStanding,
			s.SessionID, st.ParticipantID, st.Name, st.Rank, st.XP, st.PairsMatched, st.MaxStreak, st.Left,
		); err != nil {
			return fmt.Errorf("upsert standing %s: %w", st.ParticipantID, err)
		}
	}
	return tx.Commit()
}

// Recent lists the participant's sessions, latest first.
func (p *PostgresStore) Recent(ctx context.Context, participantID string, limit int) ([]domain.Summary, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT s.session_id, s.room_id, s.generation, s.difficulty, s.reason,
		s.started_at, s.ended_at, s.standings
	FROM career_match_sessions s
	JOIN career_match_standings p ON p.session_id = s.session_id
	WHERE p.participant_id = $1
	ORDER BY s.ended_at DESC, s.session_id DESC
	LIMIT $2`
	rows, err := p.db.QueryContext(ctx, q, participantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Summary
	for rows.Next() {
		var (
			s          domain.Summary
			difficulty string
			reason     string
			standings  []byte
			generation int64
		)
		if err := rows.Scan(&s.SessionID, &s.RoomID, &generation, &difficulty, &reason,
			&s.StartedAt, &s.EndedAt, &standings); err != nil {
			return nil, err
		}
		s.Generation = uint64(generation)
		s.Difficulty = domain.Difficulty(difficulty)
		s.Reason = domain.EndReason(reason)
		if err := json.Unmarshal(standings, &s.Standings); err != nil {
			return nil, fmt.Errorf("decode standings of %s: %w", s.SessionID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type summaryRow struct {
	sessionID  string
	roomID     string
	generation int64
	difficulty string
	reason     string
	totalPairs int
	startedAt  time.Time
	endedAt    time.Time
	durationMS int64
	standings  string
}

func (r summaryRow) args() []any {
	return []any{
		r.sessionID, r.roomID, r.generation, r.difficulty, r.reason, r.totalPairs,
		r.startedAt, r.endedAt, r.durationMS, r.standings,
	}
}

func sessionRow(s domain.Summary) (summaryRow, error) {
	if strings.TrimSpace(s.SessionID) == "" {
		return summaryRow{}, fmt.Errorf("summary without session id")
	}
	raw, err := json.Marshal(s.Standings)
	if err != nil {
		return summaryRow{}, fmt.Errorf("marshal standings: %w", err)
	}
	started := s.StartedAt
	if started.IsZero() {
		started = s.EndedAt
	}
	duration := s.EndedAt.Sub(started).Milliseconds()
	if duration < 0 {
		duration = 0
	}
	return summaryRow{
		sessionID:  s.SessionID,
		roomID:     s.RoomID,
		generation: int64(s.Generation),
		difficulty: string(s.Difficulty),
		reason:     string(s.Reason),
		totalPairs: s.TotalPairs(),
		startedAt:  started.UTC(),
		endedAt:    s.EndedAt.UTC(),
		durationMS: duration,
		standings:  string(raw),
	}, nil
}
