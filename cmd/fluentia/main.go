// Command fluentia is the main entry point for the Fluentia pronunciation
// assessment server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/fluentia/internal/api"
	"github.com/MrWong99/fluentia/internal/assessment"
	"github.com/MrWong99/fluentia/internal/assessment/aiassess"
	"github.com/MrWong99/fluentia/internal/config"
	"github.com/MrWong99/fluentia/internal/health"
	"github.com/MrWong99/fluentia/internal/observe"
	"github.com/MrWong99/fluentia/internal/resilience"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("fluentia", version)
		return 0
	}

	// ── Environment + configuration ───────────────────────────────────────────
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "fluentia: load %s: %v\n", *envPath, err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "fluentia: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "fluentia: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))

	slog.Info("fluentia starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "fluentia", ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Assessment chain ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	assessor, err := buildAssessor(cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build assessment providers", "err", err)
		return 1
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	stores, err := openStores(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open storage", "err", err)
		return 1
	}
	defer stores.Close()

	// ── HTTP ──────────────────────────────────────────────────────────────────
	apiSrv, err := api.New(api.Config{
		Assessor:  assessor,
		Store:     stores.Assessments,
		StoreName: stores.AssessmentsName,
		Live:      stores.Live,
		LiveName:  stores.LiveName,
		Metrics:   metrics,
	})
	if err != nil {
		slog.Error("failed to create API", "err", err)
		return 1
	}

	checkers := append(stores.Checkers, health.Circuits("ai", assessor.Status))
	mux := http.NewServeMux()
	apiSrv.Register(mux)
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", tel.MetricsHandler)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(d config.ConfigDiff, _ *config.Config) {
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.RestartRequired() {
			slog.Warn("configuration changed in a way that needs a restart",
				"server", d.ServerChanged,
				"providers", d.ProvidersChanged,
				"assessment", d.AssessmentChanged,
				"storage", d.StorageChanged,
			)
		}
	})
	if err != nil {
		slog.Error("failed to watch config", "err", err)
		return 1
	}

	printStartupSummary(cfg, stores)

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if err := watcher.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("server ready; press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)

	code := 0
	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// buildAssessor creates the AI clients in priority order and wraps them
// into the assessment fallback chain.
func buildAssessor(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*assessment.Assessor, error) {
	var clients []*aiassess.Client
	for i, entry := range cfg.Providers.Assessor {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("providers.assessor[%d] (%s): %w", i, entry.DisplayName(), err)
		}
		clientOpts := []aiassess.Option{aiassess.WithMinPlausibleScore(cfg.Assessment.MinPlausibleScore)}
		if seed, ok := config.OptInt(entry.Options, "seed"); ok {
			clientOpts = append(clientOpts, aiassess.WithSeed(int64(seed)))
		}
		clients = append(clients, aiassess.New(entry.DisplayName(), p, clientOpts...))
	}

	a := cfg.Assessment
	opts := []assessment.AssessorOption{assessment.WithMetrics(metrics)}
	group := assessment.NewAIGroup(clients, resilience.CircuitBreakerConfig{
		MaxFailures:  a.CircuitBreaker.MaxFailures,
		ResetTimeout: a.CircuitBreaker.ResetTimeout,
		HalfOpenMax:  a.CircuitBreaker.HalfOpenMax,
	}, metrics)
	if group != nil {
		opts = append(opts, assessment.WithAI(group))
	}

	return assessment.NewAssessor(assessment.NewComposer(), assessment.AssessorConfig{
		AITimeout:          a.AITimeout,
		Language:           a.Language,
		DisableLocal:       a.DisableLocal,
		PlaceholderMin:     a.Placeholder.Min,
		PlaceholderMax:     a.Placeholder.Max,
		DisablePlaceholder: a.Placeholder.Disabled,
	}, opts...), nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, st *storage) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Fluentia startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	if len(cfg.Providers.Assessor) == 0 {
		printRow("AI chain", "(local scoring only)")
	}
	for i, p := range cfg.Providers.Assessor {
		kind := "AI primary"
		if i > 0 {
			kind = fmt.Sprintf("AI fallback %d", i)
		}
		value := p.DisplayName()
		if p.Model != "" {
			value += " / " + p.Model
		}
		printRow(kind, value)
	}
	printRow("Language", cfg.Assessment.Language)
	printRow("Store", st.AssessmentsName)
	printRow("Live cache", st.LiveName)
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
