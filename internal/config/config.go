package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/registry"
	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/session"
	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	HTTPAddr    string
	RedisURL    string
	DatabaseURL string
	IdentityURL string
	NodeID      string
	MessagesDir string

	AllowGuests    bool
	AllowedOrigins []string

	DefaultDifficulty domain.Difficulty
	RoomCapacity      map[domain.Difficulty]int
	MaxRoomsPerTier   int
	MatchXP           int
	EventBuffer       int

	JoinTimeout    time.Duration
	AbandonGrace   time.Duration
	EndedRetention time.Duration
	IdleActorTTL   time.Duration
}

// overlay is the optional CONFIG_FILE document. It carries the tuning knobs
// that are awkward to express as env vars.
type overlay struct {
	DefaultDifficulty string         `yaml:"default_difficulty"`
	RoomCapacity      map[string]int `yaml:"room_capacity"`
	MaxRoomsPerTier   int            `yaml:"max_rooms_per_tier"`
	MatchXP           int            `yaml:"match_xp"`
	AbandonGrace      string         `yaml:"abandon_grace"`
	JoinTimeout       string         `yaml:"join_timeout"`
}

func defaults() *AppConfig {
	return &AppConfig{
		HTTPAddr:          ":8080",
		AllowGuests:       true,
		DefaultDifficulty: domain.Easy,
		RoomCapacity:      map[domain.Difficulty]int{},
		MatchXP:           10,
		EventBuffer:       64,
		JoinTimeout:       5 * time.Second,
		AbandonGrace:      60 * time.Second,
		EndedRetention:    10 * time.Minute,
		IdleActorTTL:      5 * time.Minute,
	}
}

// Load reads .env (if present), then CONFIG_FILE (if set), then the
// environment. Environment variables win over the file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
		}
		if err := cfg.applyYAML(raw); err != nil {
			return nil, fmt.Errorf("CONFIG_FILE %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *AppConfig) applyYAML(raw []byte) error {
	var o overlay
	if err := yaml.Unmarshal(raw, &o); err != nil {
		return err
	}
	if o.DefaultDifficulty != "" {
		d, ok := domain.ParseDifficulty(o.DefaultDifficulty)
		if !ok || d == "" {
			return fmt.Errorf("default_difficulty %q is not a tier", o.DefaultDifficulty)
		}
		cfg.DefaultDifficulty = d
	}
	for k, n := range o.RoomCapacity {
		d, ok := domain.ParseDifficulty(k)
		if !ok || d == "" {
			return fmt.Errorf("room_capacity: %q is not a tier", k)
		}
		cfg.RoomCapacity[d] = n
	}
	if o.MaxRoomsPerTier > 0 {
		cfg.MaxRoomsPerTier = o.MaxRoomsPerTier
	}
	if o.MatchXP > 0 {
		cfg.MatchXP = o.MatchXP
	}
	if o.AbandonGrace != "" {
		d, err := time.ParseDuration(o.AbandonGrace)
		if err != nil {
			return fmt.Errorf("abandon_grace: %w", err)
		}
		cfg.AbandonGrace = d
	}
	if o.JoinTimeout != "" {
		d, err := time.ParseDuration(o.JoinTimeout)
		if err != nil {
			return fmt.Errorf("join_timeout: %w", err)
		}
		cfg.JoinTimeout = d
	}
	return nil
}

func (cfg *AppConfig) applyEnv() error {
	if v := env("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.RedisURL = env("REDIS_URL")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.IdentityURL = env("IDENTITY_URL")
	cfg.MessagesDir = env("MESSAGES_DIR")
	cfg.NodeID = env("NODE_ID")
	if cfg.NodeID == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.NodeID = h
		}
	}
	if cfg.IdentityURL != "" {
		cfg.AllowGuests = false
	}
	if v := env("ALLOW_GUESTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ALLOW_GUESTS: %w", err)
		}
		cfg.AllowGuests = b
	}
	cfg.AllowedOrigins = splitList(env("ALLOWED_ORIGINS"))

	if v := env("DEFAULT_DIFFICULTY"); v != "" {
		d, ok := domain.ParseDifficulty(v)
		if !ok || d == "" {
			return fmt.Errorf("DEFAULT_DIFFICULTY %q is not a tier", v)
		}
		cfg.DefaultDifficulty = d
	}
	for _, d := range domain.Difficulties {
		key := "ROOM_CAPACITY_" + strings.ToUpper(string(d))
		if err := positiveInt(key, func(n int) { cfg.RoomCapacity[d] = n }); err != nil {
			return err
		}
	}
	for key, set := range map[string]func(int){
		"MAX_ROOMS_PER_TIER": func(n int) { cfg.MaxRoomsPerTier = n },
		"MATCH_XP":           func(n int) { cfg.MatchXP = n },
		"EVENT_BUFFER":       func(n int) { cfg.EventBuffer = n },
	} {
		if err := positiveInt(key, set); err != nil {
			return err
		}
	}
	for key, set := range map[string]func(time.Duration){
		"JOIN_TIMEOUT":    func(d time.Duration) { cfg.JoinTimeout = d },
		"ABANDON_GRACE":   func(d time.Duration) { cfg.AbandonGrace = d },
		"ENDED_RETENTION": func(d time.Duration) { cfg.EndedRetention = d },
		"IDLE_ACTOR_TTL":  func(d time.Duration) { cfg.IdleActorTTL = d },
	} {
		if err := duration(key, set); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *AppConfig) validate() error {
	for d, n := range cfg.RoomCapacity {
		if n < 1 {
			return fmt.Errorf("room capacity for %s must be at least 1", d)
		}
	}
	if cfg.IdentityURL == "" && !cfg.AllowGuests {
		return errors.New("IDENTITY_URL is required when ALLOW_GUESTS=false")
	}
	if cfg.RedisURL != "" && cfg.NodeID == "" {
		return errors.New("NODE_ID is required when REDIS_URL is set")
	}
	return nil
}

func env(k string) string { return strings.TrimSpace(os.Getenv(k)) }

func positiveInt(key string, set func(int)) error {
	v := env(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	set(n)
	return nil
}

// duration accepts Go durations ("90s") or bare seconds ("90").
func duration(key string, set func(time.Duration)) error {
	v := env(key)
	if v == "" {
		return nil
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		set(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	set(d)
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (cfg *AppConfig) Registry() registry.Config {
	capacity := make(map[domain.Difficulty]int, len(cfg.RoomCapacity))
	for d, n := range cfg.RoomCapacity {
		capacity[d] = n
	}
	return registry.Config{
		Capacity:          capacity,
		MaxRoomsPerTier:   cfg.MaxRoomsPerTier,
		DefaultDifficulty: cfg.DefaultDifficulty,
		JoinTimeout:       cfg.JoinTimeout,
		Node:              cfg.NodeID,
	}
}

func (cfg *AppConfig) Session() session.Config {
	return session.Config{
		MatchXP:        cfg.MatchXP,
		AbandonGrace:   cfg.AbandonGrace,
		EndedRetention: cfg.EndedRetention,
		IdleActorTTL:   cfg.IdleActorTTL,
	}
}
