package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aliskhannn/academy-tube/internal/client"
	"github.com/aliskhannn/academy-tube/internal/config"
	"github.com/aliskhannn/academy-tube/internal/logger"
	"github.com/aliskhannn/academy-tube/internal/player"
	"github.com/aliskhannn/academy-tube/internal/player/sim"
	"github.com/aliskhannn/academy-tube/internal/tracker"
	"github.com/aliskhannn/academy-tube/internal/watcher"
)

func main() {
	assignmentID := flag.String("assignment", "", "Assignment id to watch")
	duration := flag.Float64("duration", 300, "Simulated video duration in seconds")
	rate := flag.Float64("rate", 1, "Simulated playback rate")
	flag.Parse()

	if *assignmentID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Client.Validate(); err != nil {
		log.Fatalf("client config: %v", err)
	}

	lg, err := logger.New(cfg, "watch")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Headless playback: the simulated player stands in for the browser widget.
	api := &sim.API{DefaultDuration: *duration, Autoplay: true}
	page := player.NewPage(&sim.Script{API: api})

	var checker player.EmbedChecker
	if cfg.Player.OEmbedURL != "" {
		checker = player.NewOEmbedChecker(cfg.Player.OEmbedURL, cfg.Player.CheckTimeout)
	}

	apiClient := client.New(cfg.Client.BaseURL, cfg.Client.Token, cfg.Client.Timeout)
	console := watcher.NewConsole(os.Stdout)

	trackerCfg := tracker.Config{
		PollInterval:        cfg.Tracker.PollInterval,
		SaveInterval:        cfg.Tracker.SaveInterval,
		SkipTolerance:       cfg.Tracker.SkipTolerance,
		CompletionThreshold: cfg.Tracker.CompletionThreshold,
	}

	w := watcher.New(apiClient, apiClient, page, checker, console, trackerCfg, lg)
	w.OnStart = func(a *player.Adapter, tr *tracker.Tracker) {
		a.SetPlaybackRate(*rate)
		go reportProgress(ctx, console, tr)
	}

	res, err := w.Watch(ctx, *assignmentID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			lg.Fatal("assignment not found", zap.String("assignment_id", *assignmentID))
		}
		lg.Fatal("watch failed", zap.Error(err))
	}

	if res.FallbackURL != "" {
		fmt.Println(res.FallbackURL)
		return
	}
	console.Progress(res.Snapshot)
}

// reportProgress prints the session state once a second while it is polling.
func reportProgress(ctx context.Context, console *watcher.Console, tr *tracker.Tracker) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := tr.Snapshot()
			if s.Phase != tracker.PhasePolling {
				return
			}
			console.Progress(s)
		}
	}
}
