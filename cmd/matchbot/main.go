package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/obslog"
	"github.com/rosejohnson3923/pathfinity-app-sub007/pkg/matchdto"
	"go.uber.org/zap"
)

func main() {
	server := flag.String("url", "ws://localhost:8080/ws", "gateway websocket URL")
	players := flag.Int("players", 3, "bots per game")
	difficulty := flag.String("difficulty", "easy", "easy, medium, hard or empty for any")
	games := flag.Int("games", 1, "games to play in sequence")
	think := flag.Duration("think", 50*time.Millisecond, "pause between turns")
	token := flag.String("token", "", "bearer token for every bot (guests when empty)")
	timeout := flag.Duration("timeout", 2*time.Minute, "give up after this long")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L().Named("matchbot")
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	header := http.Header{}
	if *token != "" {
		header.Set("Authorization", "Bearer "+*token)
	}

	for g := 1; g <= *games; g++ {
		if err := runGame(ctx, logger, *server, header, *players, *difficulty, *think, g); err != nil {
			logger.Fatal("game_failed", zap.Int("game", g), zap.Error(err))
		}
	}
}

func runGame(ctx context.Context, logger *zap.Logger, server string, header http.Header, players int, difficulty string, think time.Duration, game int) error {
	bots := make([]*bot, 0, players)
	defer func() {
		for _, b := range bots {
			b.close()
		}
	}()
	for i := 0; i < players; i++ {
		b, err := dial(ctx, server, fmt.Sprintf("bot-%d-%d", game, i+1), header, logger)
		if err != nil {
			return err
		}
		bots = append(bots, b)
	}

	var host *bot
	var roomID string
	for i, b := range bots {
		var jd matchdto.JoinData
		cmd := matchdto.Command{Op: matchdto.OpJoin, Difficulty: difficulty}
		if i > 0 {
			cmd = matchdto.Command{Op: matchdto.OpJoinRoom, RoomID: roomID}
		}
		if err := b.call(ctx, cmd, &jd); err != nil {
			return fmt.Errorf("%s join: %w", b.name, err)
		}
		if i == 0 {
			roomID = jd.Room.ID
		}
		if jd.IsHost {
			host = b
		}
		logger.Info("bot_joined", zap.String("bot", b.name), zap.String("room_id", jd.Room.ID),
			zap.Int("occupants", jd.Session.Occupants), zap.Bool("host", jd.IsHost))
	}
	if host == nil {
		return fmt.Errorf("no bot became host of room %s", roomID)
	}
	if err := host.call(ctx, matchdto.Command{Op: matchdto.OpStart}, nil); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(bots))
	var result *endedPayload
	var once sync.Once
	for _, b := range bots {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := b.play(ctx, think)
			if err != nil {
				errs <- fmt.Errorf("%s: %w", b.name, err)
				return
			}
			once.Do(func() { result = res })
		}()
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return err
	}

	fields := []zap.Field{zap.Int("game", game), zap.String("room_id", roomID), zap.String("reason", result.Summary.Reason)}
	for _, s := range result.Summary.Standings {
		fields = append(fields, zap.Int(fmt.Sprintf("rank_%d_%s", s.Rank, s.Name), s.XP))
	}
	logger.Info("game_finished", fields...)
	return nil
}
