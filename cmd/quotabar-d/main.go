package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nyxkrage/quotabar/pkg/api"
	"github.com/nyxkrage/quotabar/pkg/dashboard"
	"github.com/nyxkrage/quotabar/pkg/engine"
	"github.com/nyxkrage/quotabar/pkg/provider"
	"github.com/nyxkrage/quotabar/pkg/provider/claude"
	"github.com/nyxkrage/quotabar/pkg/provider/cliexec"
	"github.com/nyxkrage/quotabar/pkg/provider/codex"
	"github.com/nyxkrage/quotabar/pkg/provider/gemini"
	"github.com/nyxkrage/quotabar/pkg/shellenv"
	"github.com/nyxkrage/quotabar/pkg/store"
	redisstore "github.com/nyxkrage/quotabar/pkg/store/redis"
)

// snapshotStore is what both store backends provide.
type snapshotStore interface {
	dashboard.SnapshotStore
	engine.UsageSink
	LoadUsage(ctx context.Context) (map[provider.ID]provider.UsageSnapshot, error)
}

// logNotifier surfaces quota transitions to the daemon log. A desktop
// build would hook system notifications here.
type logNotifier struct {
	log zerolog.Logger
}

func (n logNotifier) Notify(id provider.ID, tr engine.Transition, snap provider.UsageSnapshot) {
	n.log.Info().
		Str("provider", string(id)).
		Str("transition", string(tr)).
		Float64("remaining", snap.Primary.RemainingPercent).
		Msg("session quota transition")
}

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().Str("component", "quotabar-d").Str("addr", cfg.Addr).Msg("daemon starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st     snapshotStore
		closer func() error
	)
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		st = redisstore.NewSnapshotStore(client)
		closer = client.Close
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis snapshot store")
	} else {
		sqlStore, err := store.NewStore(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open snapshot store")
		}
		st = sqlStore
		closer = sqlStore.Close
		log.Info().Str("path", cfg.DBPath).Msg("using sqlite snapshot store")
	}

	// Kick off the single login-shell PATH capture early so the first
	// poll cycle rarely has to wait for it.
	shell := shellenv.NewCache()
	shell.CaptureOnce(cfg.Shell, cliexec.ShellCaptureTimeout, func(path []string) {
		log.Info().Int("entries", len(path)).Msg("login shell PATH captured")
	})

	eng := engine.New(engine.Config{
		FetchTimeout:     cfg.FetchTimeout,
		DepletionEpsilon: cfg.DepletionEpsilon,
		Interval:         cfg.PollInterval,
	}, log)
	eng.SetNotifier(logNotifier{log: log})
	eng.SetUsageSink(st)

	for _, id := range cfg.Providers {
		switch id {
		case provider.Codex:
			eng.RegisterFetcher(codex.NewFetcher(shell))
		case provider.Claude:
			eng.RegisterFetcher(claude.NewFetcher(shell))
		case provider.Gemini:
			eng.RegisterFetcher(gemini.NewFetcher(shell))
		}
		eng.SetProviderConfig(id, engine.ProviderConfig{
			Enabled:       true,
			StatusPageURL: cfg.StatusURLs[id],
		})
	}

	if cfg.CreditsURL != "" {
		eng.SetCreditsFetcher(codex.NewCreditsClient(cfg.CreditsURL, cfg.CreditsToken))
	}

	warm, err := st.LoadUsage(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load warm-start snapshots")
	} else if len(warm) > 0 {
		eng.WarmLoad(warm)
		log.Info().Int("providers", len(warm)).Msg("warm-loaded usage snapshots")
	}

	var rec *dashboard.Reconciler
	if cfg.DashboardURL != "" {
		rec = dashboard.NewReconciler(
			dashboard.NewHTTPClient(cfg.DashboardURL, cfg.CookiePath),
			dashboard.NewCommandImporter(cfg.CookieImportCmd),
			st,
			nil,
			log,
		)
		eng.SetReconciler(rec)
		if snap, ok := warm[provider.Codex]; ok && snap.AccountEmail != "" {
			rec.ColdStart(ctx, snap.AccountEmail)
		}
	}

	var dash api.DashboardInterface
	if rec != nil {
		dash = rec
	}
	srv := api.NewServer(eng, dash, cfg.Addr, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		eng.Refresh(ctx)
		eng.Start(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("daemon exited with error")
	}
	if err := closer(); err != nil {
		log.Error().Err(err).Msg("failed to close snapshot store")
	}
	log.Info().Msg("shutdown complete")
}
