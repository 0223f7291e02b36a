package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"modqueue_bot/internal/config"
	"modqueue_bot/internal/discord"
	"modqueue_bot/internal/engine"
	"modqueue_bot/internal/ingest"
	"modqueue_bot/internal/reddit"
	"modqueue_bot/internal/scheduler"
	"modqueue_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	queue, err := newQueueClient(cfg)
	if err != nil {
		log.Error("configure queue client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	if cfg.IngestAddr != "" {
		ingestor := ingest.New(store, log)
		srv := &http.Server{
			Addr:              cfg.IngestAddr,
			Handler:           ingestor.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("ingest server listening", "addr", cfg.IngestAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ingest server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Without a valid webhook destination there is nothing to reconcile
	// against: no job is registered at all.
	if !cfg.HasWebhook() {
		log.Warn("no valid DISCORD_WEBHOOK_URL configured, reconciliation disabled")
		<-ctx.Done()
		wg.Wait()
		return
	}

	channel := discord.New(http.DefaultClient, cfg.WebhookURL, cfg.UserAgent)
	if err := channel.Announce(ctx, "Service started."); err != nil {
		log.Warn("startup announcement", "error", err)
	}

	eng := engine.New(store, queue, channel, cfg.QueueLimit, log)

	sched := scheduler.New(eng, log)
	sched.SetTickInterval(time.Duration(cfg.PollIntervalSeconds) * time.Second)
	sched.SetNotifier(channel)

	log.Info("starting reconciliation", "interval_seconds", cfg.PollIntervalSeconds, "queue_limit", cfg.QueueLimit)

	sched.Run(ctx)
	wg.Wait()

	log.Info("bot stopped")
}

// newQueueClient selects the snapshot source: the OAuth API when credentials
// are present, else the private modqueue feed.
func newQueueClient(cfg *config.Config) (engine.QueueClient, error) {
	if cfg.HasRedditAPI() {
		creds := reddit.Credentials{
			ClientID:     cfg.RedditClientID,
			ClientSecret: cfg.RedditClientSecret,
			RefreshToken: cfg.RedditRefreshToken,
		}
		return reddit.NewClient(http.DefaultClient, creds, cfg.RedditSubreddit, cfg.UserAgent), nil
	}
	if cfg.RedditFeedURL != "" {
		return reddit.NewFeedClient(http.DefaultClient, cfg.RedditFeedURL, cfg.UserAgent), nil
	}
	return nil, errors.New("either Reddit API credentials or REDDIT_FEED_URL must be set")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
