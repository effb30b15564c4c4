package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/dexpilot/config"
	"github.com/alejandrodnm/dexpilot/internal/adapters/httpapi"
	"github.com/alejandrodnm/dexpilot/internal/adapters/jupiter"
	"github.com/alejandrodnm/dexpilot/internal/adapters/notify"
	"github.com/alejandrodnm/dexpilot/internal/adapters/push"
	"github.com/alejandrodnm/dexpilot/internal/adapters/signer"
	"github.com/alejandrodnm/dexpilot/internal/adapters/static"
	"github.com/alejandrodnm/dexpilot/internal/adapters/storage"
	"github.com/alejandrodnm/dexpilot/internal/application/engine/demo"
	"github.com/alejandrodnm/dexpilot/internal/application/engine/live"
	"github.com/alejandrodnm/dexpilot/internal/application/pricing"
	"github.com/alejandrodnm/dexpilot/internal/application/scorer"
	"github.com/alejandrodnm/dexpilot/internal/application/session"
	"github.com/alejandrodnm/dexpilot/internal/application/wallet"
	"github.com/alejandrodnm/dexpilot/internal/domain"
	"github.com/alejandrodnm/dexpilot/internal/observability"
	"github.com/alejandrodnm/dexpilot/internal/ports"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	autoDemo := flag.Bool("demo", false, "start a demo session on boot")
	verify := flag.Bool("verify", false, "run the tradeability check over all assets and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	universe, usd, err := cfg.Universe()
	if err != nil {
		slog.Error("invalid asset universe", "err", err)
		os.Exit(1)
	}

	slog.Info("dexpilot starting",
		"config", *configPath,
		"assets", len(universe.Assets),
		"base", universe.Base.Symbol,
		"storage", cfg.Storage.Driver,
		"live", cfg.Signer.URL != "",
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := observability.NewMetrics("dexpilot")

	opts := []jupiter.Option{jupiter.WithTimeout(time.Duration(cfg.API.TimeoutSeconds) * time.Second)}
	if cfg.API.JupiterAPIKey != "" {
		opts = append(opts, jupiter.WithAPIKey(cfg.API.JupiterAPIKey))
	}
	if cfg.API.RatePerSecond > 0 {
		opts = append(opts, jupiter.WithRateLimit(cfg.API.RatePerSecond, max(cfg.API.Burst, 1)))
	}
	jup := jupiter.NewClient(cfg.API.JupiterBase, opts...)

	resolver := pricing.NewResolver(pricing.Config{
		TTL:         cfg.PriceTTL(),
		CallTimeout: cfg.CallTimeout(),
		SlippageBps: cfg.Pricing.SlippageBps,
	}, jup, metrics,
		jup,
		pricing.NewQuoteSource(jup, usd),
		static.NewTable(cfg.StaticPrices()),
	)
	checker := pricing.NewChecker(resolver, universe.Base, cfg.Pricing.ForwardAmount, cfg.Pricing.MaxRoundTripLoss)

	notifier := notify.NewConsole()

	seed := cfg.Scorer.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	drafts := demo.New(universe, resolver, checker, demo.Config{
		MinFraction:       cfg.Session.Demo.MinFraction,
		MaxFraction:       cfg.Session.Demo.MaxFraction,
		MinTradeUSD:       cfg.Session.Demo.MinTradeUSD,
		CheckTradeability: cfg.Session.Demo.CheckTradeability,
		Workers:           cfg.Session.Demo.Workers,
	}, rand.New(rand.NewPCG(seed, seed>>1)))

	if *verify {
		runVerify(ctx, drafts, notifier)
		return
	}

	backend, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "driver", cfg.Storage.Driver)
		os.Exit(1)
	}
	defer backend.Close()

	hub := push.NewHub(metrics)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	publishers := []ports.EventPublisher{hub}
	if cfg.Server.Console {
		publishers = append(publishers, notifier)
	}

	controller := session.New(session.Config{
		TickInterval:        cfg.TickInterval(),
		DemoStartingBalance: decimal.NewFromFloat(cfg.Session.DemoStartingBalance),
		TradeRetention:      cfg.Session.TradeRetention,
		HistorySize:         cfg.Session.HistorySize,
		PersistTimeout:      cfg.PersistTimeout(),
		ProfitLock: domain.ProfitLockConfig{
			Enabled:          cfg.Session.ProfitLock.Enabled,
			PercentagePoints: cfg.Session.ProfitLock.PercentagePoints,
		},
	}, session.Deps{
		Scorer: scorer.New(scorer.Config{
			Enabled:      *cfg.Scorer.Enabled,
			RetrainEvery: cfg.Scorer.RetrainEvery,
			Seed:         cfg.Scorer.Seed,
		}),
		Store:      wallet.NewStore(backend, metrics),
		Drafts:     drafts,
		Publishers: publishers,
		Metrics:    metrics,
	})

	var trader httpapi.Trader
	if cfg.Signer.URL != "" {
		exec := signer.NewClient(cfg.Signer.URL, cfg.Signer.Token, time.Duration(cfg.Signer.TimeoutSeconds)*time.Second)
		trader = live.New(universe, resolver, checker, exec, controller, live.Config{
			MinTradeUSD:       cfg.Session.Live.MinTradeUSD,
			MaxTradeUSD:       cfg.Session.Live.MaxTradeUSD,
			CheckTradeability: cfg.Session.Live.CheckTradeability,
			ExecuteTimeout:    time.Duration(cfg.Session.Live.ExecuteTimeoutSeconds) * time.Second,
		})
	}

	srv := httpapi.NewServer(cfg.Server.Addr, controller, trader, httpapi.Handlers{
		WS:      hub.Handler(controller, cfg.Server.AllowedOrigins),
		Metrics: metrics.Handler(),
	})
	if err := srv.Start(ctx); err != nil {
		slog.Error("failed to start http server", "err", err, "addr", cfg.Server.Addr)
		os.Exit(1)
	}

	if *autoDemo {
		if _, err := controller.Start(ctx, domain.ModeDemo, ""); err != nil {
			slog.Error("failed to start demo session", "err", err)
		}
	}

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	if err := controller.Close(shutdownCtx); err != nil {
		slog.Error("session close", "err", err)
	}
	stopHub()

	slog.Info("dexpilot stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
