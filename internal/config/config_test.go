package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
)

// unset clears key for the duration of the test. godotenv never overrides a
// key that exists, even when empty, so t.Setenv alone is not enough.
func unset(t *testing.T, key string) {
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DefaultDifficulty != domain.Easy || !cfg.AllowGuests {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.JoinTimeout != 5*time.Second || cfg.AbandonGrace != time.Minute || cfg.MatchXP != 10 {
		t.Fatalf("timing defaults = %+v", cfg)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	file := filepath.Join(dir, "careermatch.yaml")
	doc := "default_difficulty: medium\nroom_capacity:\n  easy: 4\n  hard: 8\nmatch_xp: 25\nabandon_grace: 15s\n"
	if err := os.WriteFile(file, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", file)
	t.Setenv("ROOM_CAPACITY_HARD", "6")
	t.Setenv("JOIN_TIMEOUT", "2")
	t.Setenv("ENDED_RETENTION", "90s")
	t.Setenv("ALLOWED_ORIGINS", "example.com, *.example.org")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultDifficulty != domain.Medium || cfg.MatchXP != 25 || cfg.AbandonGrace != 15*time.Second {
		t.Fatalf("file values = %+v", cfg)
	}
	if cfg.RoomCapacity[domain.Easy] != 4 || cfg.RoomCapacity[domain.Hard] != 6 {
		t.Fatalf("capacities = %v", cfg.RoomCapacity)
	}
	if cfg.JoinTimeout != 2*time.Second || cfg.EndedRetention != 90*time.Second {
		t.Fatalf("durations = %v %v", cfg.JoinTimeout, cfg.EndedRetention)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "*.example.org" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	env := "MATCH_XP=7\nIDENTITY_URL=http://id.local\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}
	unset(t, "MATCH_XP")
	unset(t, "IDENTITY_URL")
	unset(t, "ALLOW_GUESTS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MatchXP != 7 || cfg.IdentityURL != "http://id.local" || cfg.AllowGuests {
		t.Fatalf("dotenv = %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	cases := map[string]string{
		"DEFAULT_DIFFICULTY": "nightmare",
		"ROOM_CAPACITY_EASY": "0",
		"MAX_ROOMS_PER_TIER": "-1",
		"ABANDON_GRACE":      "soon",
		"ALLOW_GUESTS":       "maybe",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%q accepted", key, val)
			}
		})
	}
}

func TestGuestsOffNeedsIdentityService(t *testing.T) {
	t.Chdir(t.TempDir())
	unset(t, "IDENTITY_URL")
	t.Setenv("ALLOW_GUESTS", "false")
	if _, err := Load(); err == nil {
		t.Fatal("guests disabled without IDENTITY_URL accepted")
	}
}

func TestPackageConfigs(t *testing.T) {
	cfg := defaults()
	cfg.RoomCapacity[domain.Hard] = 5
	cfg.NodeID = "node-a"
	rc := cfg.Registry()
	cfg.RoomCapacity[domain.Hard] = 9
	if rc.Capacity[domain.Hard] != 5 || rc.JoinTimeout != 5*time.Second || rc.Node != "node-a" {
		t.Fatalf("registry config = %+v", rc)
	}
	if sc := cfg.Session(); sc.MatchXP != 10 || sc.IdleActorTTL != 5*time.Minute {
		t.Fatalf("session config = %+v", sc)
	}
}

func TestRedisNeedsNodeID(t *testing.T) {
	cfg := defaults()
	cfg.RedisURL = "redis://localhost:6379/0"
	if err := cfg.validate(); err == nil {
		t.Fatal("REDIS_URL without NODE_ID accepted")
	}
	cfg.NodeID = "node-a"
	if err := cfg.validate(); err != nil { t.Fatalf("validate: %v", err) }
}
