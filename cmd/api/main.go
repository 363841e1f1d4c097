package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aliskhannn/academy-tube/internal/config"
	"github.com/aliskhannn/academy-tube/internal/delivery/rest"
	"github.com/aliskhannn/academy-tube/internal/delivery/telegram"
	"github.com/aliskhannn/academy-tube/internal/infra/postgres"
	"github.com/aliskhannn/academy-tube/internal/infra/postgres/repository"
	"github.com/aliskhannn/academy-tube/internal/logger"
	"github.com/aliskhannn/academy-tube/internal/service"
)

func main() {
	issueFor := flag.String("issue-token", "", "Print a signed token for this student id and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of a token printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg, "api")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	secret, err := cfg.Auth.Secret()
	if err != nil {
		lg.Fatal("jwt secret", zap.Error(err))
	}

	if *issueFor != "" {
		if err := printToken(os.Stdout, secret, *issueFor, *tokenTTL); err != nil {
			lg.Fatal("issue token", zap.Error(err))
		}
		return
	}

	dsn, err := cfg.DB.DSN()
	if err != nil {
		lg.Fatal("database url", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage.
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
		MaxConns:        int32(cfg.DB.MaxConnections),
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		lg.Fatal("connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := postgres.InitSchema(ctx, pool); err != nil {
		lg.Fatal("init schema", zap.Error(err))
	}

	// Admin alerts go to Telegram when configured, otherwise to the log.
	var (
		notifier service.AdminNotifier = telegram.NewLogNotifier(lg)
		bot      *tgbotapi.BotAPI
	)
	if cfg.Telegram.Enabled() {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.APIToken)
		if err != nil {
			lg.Fatal("telegram bot", zap.Error(err))
		}
		lg.Info("admin alerts enabled", zap.String("bot", bot.Self.UserName))
		notifier = telegram.NewAdminNotifier(bot, cfg.Telegram.AdminChatID, lg)
	}

	assignmentRepo := repository.NewAssignmentRepository(pool)
	transactor := postgres.NewTransactor(pool)

	progressService := service.NewProgressService(assignmentRepo, transactor, notifier, lg)
	compactor := service.NewSegmentCompactor(assignmentRepo, transactor, service.CompactorConfig{
		Schedule:      cfg.Compactor.Schedule,
		MergeGap:      cfg.Compactor.MergeGap,
		MaxConcurrent: cfg.Compactor.MaxConcurrent,
	}, lg)

	handler := rest.NewHandler(progressService, lg)
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler.Router(secret),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info("http server started", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return compactor.Start(gctx)
	})

	if bot != nil {
		admin := telegram.NewHandler(bot, cfg.Telegram.AdminChatID, compactor, lg)
		g.Go(func() error {
			if err := admin.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		lg.Error("server stopped with error", zap.Error(err))
	}
	lg.Info("shutdown complete")
}

// printToken writes a bearer token for studentID, for use as WATCH_TOKEN.
func printToken(w io.Writer, secret []byte, studentID string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	token, err := rest.IssueToken(secret, studentID, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
