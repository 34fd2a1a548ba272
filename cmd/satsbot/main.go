package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/Armin-kho/satoshi-converter/internal/bot"
	"github.com/Armin-kho/satoshi-converter/internal/config"
	"github.com/Armin-kho/satoshi-converter/internal/db"
	"github.com/Armin-kho/satoshi-converter/internal/poller"
	"github.com/Armin-kho/satoshi-converter/internal/render"
	"github.com/Armin-kho/satoshi-converter/internal/sources"
	"github.com/Armin-kho/satoshi-converter/internal/utils"
	"github.com/Armin-kho/satoshi-converter/internal/web"
)

const metaLastStart = "last_start"

func main() {
	cfgPath := flag.String("config", config.DefaultConfigPath(), "path to config.json or config.yaml")
	backupPath := flag.String("backup", "", "write a database snapshot to this path and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		AddSource:  cfg.Debug,
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	if err := serve(cfg, *backupPath, logger); err != nil {
		logger.Error("run error", "err", err)
		os.Exit(1)
	}
}

// serve owns the database so it is closed before main exits.
func serve(cfg config.Config, backupPath string, logger *slog.Logger) error {
	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open db %s: %w", cfg.DBPath(), err)
	}
	defer database.Close()

	if backupPath != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := database.BackupTo(ctx, backupPath); err != nil {
			return err
		}
		logger.Info("backup written", "path", backupPath)
		return nil
	}

	return run(cfg, database, logger)
}

func run(cfg config.Config, database *db.DB, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if prev, ok, err := database.GetMeta(ctx, metaLastStart); err == nil && ok {
		logger.Info("previous start", "at", prev)
	}
	if err := database.SetMeta(ctx, metaLastStart, time.Now().UTC().Format(time.RFC3339)); err != nil {
		logger.Warn("record start", "err", err)
	}
	if n, err := database.SubscriptionCount(ctx); err == nil {
		logger.Info("live messages", "count", n)
	}

	opts := render.Options{Digits: cfg.Digits, Calendar: cfg.Calendar}
	if cfg.Calendar == utils.CalendarJalali {
		opts.Location = utils.TehranLoc()
	}

	// The HTTP timeout only backs up the poller's per-request deadline.
	client := sources.NewClient(cfg.PriceAPIURL, sources.WithTimeout(poller.RequestTimeout+2*time.Second))
	logger.Info("price source", "url", client.BaseURL())
	rates := poller.New(client, poller.WithLogger(logger))

	var app *bot.App
	if cfg.BotToken != "" {
		a, err := bot.New(cfg.BotToken, database, rates, opts, logger)
		if err != nil {
			return err
		}
		app = a
		defer app.Close()
	}

	var srv *web.Server
	if cfg.ListenAddr != "" {
		srv = web.New(cfg.ListenAddr, rates, opts, logger)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("web shutdown", "err", err)
			}
		}()
	}

	rates.Start()
	defer rates.Stop()

	var wg sync.WaitGroup
	if app != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.Run(ctx); err != nil {
				logger.Error("bot stopped", "err", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down...")
	wg.Wait()
	return nil
}
