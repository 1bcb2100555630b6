package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmhodges/clock"
	"github.com/spf13/pflag"

	"github.com/conorfennell/wristreminder/internal/alarm"
	"github.com/conorfennell/wristreminder/internal/calendar"
	"github.com/conorfennell/wristreminder/internal/config"
	"github.com/conorfennell/wristreminder/internal/gitsource"
	"github.com/conorfennell/wristreminder/internal/logging"
	"github.com/conorfennell/wristreminder/internal/mcpserver"
	"github.com/conorfennell/wristreminder/internal/notify"
	"github.com/conorfennell/wristreminder/internal/reconcile"
	"github.com/conorfennell/wristreminder/internal/reminders"
	"github.com/conorfennell/wristreminder/internal/scheduler"
	"github.com/conorfennell/wristreminder/internal/stats"
	"github.com/conorfennell/wristreminder/internal/storage"
	"github.com/conorfennell/wristreminder/internal/web"
)

func main() {
	configPath := pflag.String("config", "wristreminder.yaml", "Path to the YAML config file")
	syncOnce := pflag.Bool("sync", false, "Run one calendar sync and exit")
	serveMCP := pflag.Bool("mcp", false, "Serve MCP tools on stdin/stdout instead of HTTP")
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(*configPath, pflag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logCloser, err := logging.Setup(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := run(cfg, *syncOnce, *serveMCP); err != nil {
		slog.Error("Exiting", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, syncOnce, serveMCP bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clk := clock.New()

	db, err := storage.Open(cfg.DB.Driver, cfg.DB.DSN, storage.WithClock(clk))
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("Database opened", "driver", cfg.DB.Driver)

	queue := alarm.NewQueue(
		alarm.WithClock(clk),
		alarm.WithTick(cfg.Alarm.Tick),
		alarm.WithExactPermission(cfg.Alarm.ExactPermission),
	)
	svc := reminders.NewService(db, scheduler.New(queue, loc))

	sinks := []notify.Sink{notify.LogSink{}}
	if cfg.Telegram.Token != "" {
		tgSink, err := notify.NewTelegramSink(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			slog.Warn("Telegram notifications disabled", "error", err)
		} else {
			sinks = append(sinks, tgSink)
		}
	}
	queue.Handle(notify.NewDeliverer(svc, clk, loc, sinks...).HandleWakeup)

	sources, err := buildSources(cfg, loc)
	if err != nil {
		return err
	}
	var syncer *reconcile.Syncer
	if len(sources) > 0 {
		syncer = reconcile.NewSyncer(svc, sources,
			reconcile.WithLocation(loc),
			reconcile.WithTimeout(cfg.Sync.Timeout),
			reconcile.WithWindow(cfg.Sync.Lookback, cfg.Sync.Horizon),
			reconcile.WithClock(clk),
		)
	}

	if syncOnce {
		if syncer == nil {
			return errors.New("no calendar sources configured")
		}
		res, err := syncer.Run(ctx)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if _, err := svc.RescheduleAll(ctx); err != nil {
		slog.Warn("Some reminders could not be scheduled", "error", err)
	}
	go queue.Run(ctx)

	if syncer != nil && cfg.Sync.Cron != "" {
		if err := syncer.Schedule(ctx, cfg.Sync.Cron); err != nil {
			return err
		}
		defer syncer.Stop()
	}

	statsSvc := stats.NewService(db, clk, loc)

	if serveMCP {
		slog.Info("Serving MCP tools on stdio")
		return mcpserver.NewServer(svc, statsSvc, syncRunner(syncer)).ServeStdio()
	}

	srv := &http.Server{
		Addr:              cfg.Web.Listen,
		Handler:           web.NewServer(svc, statsSvc, syncRunner(syncer), loc, clk),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "addr", cfg.Web.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// syncRunner keeps a nil *Syncer from becoming a non-nil interface.
func syncRunner(s *reconcile.Syncer) web.SyncRunner {
	if s == nil {
		return nil
	}
	return s
}

func buildSources(cfg *config.Config, loc *time.Location) ([]calendar.Source, error) {
	var sources []calendar.Source
	for _, sc := range cfg.Sync.Sources {
		switch sc.Type {
		case "ics":
			sources = append(sources, calendar.NewICSFeed(sc.Name, sc.URL,
				calendar.WithCredentials(sc.Username, sc.Token),
				calendar.WithAuthURL(sc.AuthURL),
				calendar.WithLocation(loc),
			))
		case "git":
			feed, err := calendar.NewGitFeed(sc.Name, sc.URL, cfg.Sync.ReposDir, gitsource.BasicAuth(sc.Username, sc.Token), loc)
			if err != nil {
				return nil, fmt.Errorf("calendar source %s: %w", sc.Name, err)
			}
			sources = append(sources, feed)
		default:
			return nil, fmt.Errorf("calendar source %s: unknown type %q", sc.Name, sc.Type)
		}
	}
	return sources, nil
}
