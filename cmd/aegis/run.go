package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mercator-hq/aegis/pkg/audit/ledger"
	"mercator-hq/aegis/pkg/audit/retention"
	"mercator-hq/aegis/pkg/audit/storage"
	"mercator-hq/aegis/pkg/cli"
	"mercator-hq/aegis/pkg/config"
	"mercator-hq/aegis/pkg/governance"
	"mercator-hq/aegis/pkg/governance/engine"
	"mercator-hq/aegis/pkg/governance/hashguard"
	"mercator-hq/aegis/pkg/governance/maci"
	"mercator-hq/aegis/pkg/governance/scoring"
	"mercator-hq/aegis/pkg/governance/thresholds"
	"mercator-hq/aegis/pkg/policy"
	"mercator-hq/aegis/pkg/server"
	"mercator-hq/aegis/pkg/telemetry/health"
	"mercator-hq/aegis/pkg/telemetry/logging"
	"mercator-hq/aegis/pkg/telemetry/metrics"
)

// hashEnvVar names the environment variable carrying the constitutional
// hash. It is validated once at startup against the compiled-in constant.
const hashEnvVar = "AEGIS_CONSTITUTIONAL_HASH"

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Aegis governance server",
	Long: `Start the Aegis governance server with the specified configuration.

The server evaluates agent messages through the governance pipeline and
records every decision in the hash-chained audit ledger. The process
refuses to start unless ` + hashEnvVar + ` matches the compiled-in
constitutional hash.

Examples:
  # Start with default config
  aegis run

  # Start with custom config
  aegis run --config /etc/aegis/config.yaml

  # Override listen address
  aegis run --listen 0.0.0.0:8080

  # Validate config without starting server
  aegis run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	// A .env file is optional; real environment variables win either way.
	_ = godotenv.Load()

	cfg, err := loadRunConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if _, err := logging.Setup(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: verbose,
	}); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	// The constitutional hash gate: a bad or missing token means the
	// process must not come up.
	guard := hashguard.New()
	if err := guard.VerifyStartup(os.Getenv(hashEnvVar)); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Printf("Aegis v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")
	fmt.Println("✓ Constitutional hash validated")

	// Metrics collector (optional)
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled == nil || *cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&metrics.Config{
			Namespace: cfg.Telemetry.Metrics.Namespace,
		}, nil)
	}

	// Audit store and ledger
	store, err := buildAuditStore(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()

	ledgerConfig := &ledger.Config{
		BacklogLimit:  cfg.Audit.BacklogLimit,
		RetryInterval: cfg.Audit.RetryInterval,
		AppendTimeout: cfg.Audit.AppendTimeout,
	}
	if collector != nil {
		ledgerConfig.Observer = collector
	}
	led, err := ledger.New(store, ledgerConfig)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to open audit ledger: %w", err))
	}
	defer led.Close()
	fmt.Printf("✓ Audit ledger initialized (%s backend, next seq %d)\n", cfg.Audit.Backend, led.NextSeq())

	// Adaptive thresholds
	thresholdsConfig := &thresholds.Config{
		Bounds:              convertBounds(cfg.Thresholds.Bounds),
		FeedbackStep:        cfg.Thresholds.FeedbackStep,
		FalseNegativeFactor: cfg.Thresholds.FalseNegativeFactor,
	}
	if collector != nil {
		thresholdsConfig.OnClamp = collector.ClampObserved
	}
	manager := thresholds.NewManager(thresholdsConfig)

	// Impact scoring
	directory := scoring.NewDirectory(&scoring.DirectoryConfig{
		ViolationWindow:  cfg.Scoring.ViolationWindow,
		ViolationBucket:  cfg.Scoring.ViolationBucket,
		TrustTiers:       cfg.Scoring.TrustTiers,
		CriticalityTiers: cfg.Scoring.CriticalityTiers,
	})
	strategy := scoring.NewWeightedStrategy(scoring.Weights{
		Payload:     cfg.Scoring.Weights.Payload,
		Criticality: cfg.Scoring.Weights.Criticality,
		Distrust:    cfg.Scoring.Weights.Distrust,
		Violations:  cfg.Scoring.Weights.Violations,
	})
	scorer := scoring.NewScorer(strategy)

	// Role validation
	validator, err := maci.NewValidator(&maci.Config{
		Actors:      cfg.MACI.Actors,
		QuorumRoles: cfg.MACI.QuorumRoles,
		QuorumSize:  cfg.MACI.QuorumSize,
	})
	if err != nil {
		return cli.NewConfigError("maci", err.Error())
	}
	fmt.Printf("✓ Role validator loaded (%d actors)\n", len(cfg.MACI.Actors))

	// External policy service (optional)
	var policyChecker engine.PolicyChecker
	if cfg.Policy.Endpoint != "" {
		policyChecker = policy.NewClient(&policy.Config{
			Endpoint: cfg.Policy.Endpoint,
			Timeout:  cfg.Policy.Timeout,
		})
		fmt.Printf("✓ Policy service: %s\n", cfg.Policy.Endpoint)
	}

	// Governance engine. OnFatal is bound to the server after both exist.
	var srv *server.Server
	engineConfig := &engine.Config{
		PolicyFloor:            governance.ParseImpactLevel(cfg.Governance.PolicyFloor),
		FatalOnRuntimeMismatch: cfg.Governance.FatalOnRuntimeMismatch == nil || *cfg.Governance.FatalOnRuntimeMismatch,
		MaxTrackedDecisions:    cfg.Governance.MaxTrackedDecisions,
		Escalation: &thresholds.EscalationConfig{
			Window:     cfg.Escalation.Window,
			Bucket:     cfg.Escalation.Bucket,
			HighRate:   cfg.Escalation.HighRate,
			MinSamples: cfg.Escalation.MinSamples,
		},
		OnFatal: func(err error) {
			slog.Error("fatal governance condition, shutting down", "error", err)
			if srv != nil {
				srv.TriggerShutdown()
			}
		},
	}
	if collector != nil {
		engineConfig.OnTransition = collector.TransitionObserved
	}
	components := engine.Components{
		Guard:      guard,
		Scorer:     scorer,
		Directory:  directory,
		Thresholds: manager,
		Validator:  validator,
		Ledger:     led,
		Policy:     policyChecker,
	}
	if collector != nil {
		components.Observer = collector
	}
	eng, err := engine.NewEngine(engineConfig, components)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to build governance engine: %w", err))
	}

	// Health checks: the store must answer and the ledger backlog must
	// have headroom, otherwise readiness flips and the fabric stops
	// routing evaluations here.
	checker := health.New(2 * time.Second)
	checker.RegisterCheck("audit_store", func(ctx context.Context) error {
		_, err := store.Count(ctx)
		return err
	})
	backlogLimit := cfg.Audit.BacklogLimit
	checker.RegisterCheck("audit_backlog", func(ctx context.Context) error {
		if depth := led.Backlog(); depth >= backlogLimit {
			return fmt.Errorf("audit backlog full: %d/%d", depth, backlogLimit)
		}
		return nil
	})

	var metricsHandler http.Handler
	if collector != nil {
		metricsHandler = collector.Handler()
	}
	srv, err = server.NewServer(&cfg.Server, eng, led, checker, metricsHandler, server.BuildInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	ctx, cancel := context.WithCancel(cli.SetupSignalHandler())
	defer cancel()

	// Retention pruning (optional)
	if cfg.Audit.Retention.Enabled {
		pruner := retention.NewPruner(store, &retention.Config{
			RetentionDays: cfg.Audit.Retention.Days,
			PruneSchedule: cfg.Audit.Retention.Schedule,
			MinKeep:       cfg.Audit.Retention.MinKeep,
		}, led.VerifyChain)
		scheduler := retention.NewScheduler(pruner)
		if err := scheduler.Start(ctx); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer scheduler.Stop()
			fmt.Println("✓ Audit retention scheduler started")
		}
	}

	// Hot reload: threshold bounds follow the config file without a
	// restart. Other sections require one.
	if _, err := os.Stat(cfgFile); err == nil {
		watcher, err := config.NewWatcher(cfgFile, time.Second)
		if err != nil {
			slog.Warn("config watcher unavailable", "error", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx, func(next *config.Config) {
					manager.SetBounds(convertBounds(next.Thresholds.Bounds))
					slog.Info("threshold bounds reloaded")
				}); err != nil && ctx.Err() == nil {
					slog.Warn("config watcher stopped", "error", err)
				}
			}()
		}
	}

	fmt.Println()
	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if collector != nil {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Server stopped")
	return nil
}

// loadRunConfig loads the config file, falling back to defaults plus
// environment overrides when the default path does not exist and was not
// explicitly requested.
func loadRunConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) && cfgFile == "config.yaml" {
		return config.DefaultLoadedConfig()
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

// buildAuditStore constructs the audit chain store named by the config.
func buildAuditStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		return storage.NewSQLiteStore(&storage.SQLiteConfig{
			Path:         cfg.Audit.SQLite.Path,
			MaxOpenConns: cfg.Audit.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.Audit.SQLite.MaxIdleConns,
			WALMode:      true,
			BusyTimeout:  cfg.Audit.SQLite.BusyTimeout,
		})
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.Audit.Backend)
	}
}

// convertBounds maps config-level bounds (keyed by level name) onto the
// threshold manager's typed form.
func convertBounds(bounds map[string]config.BoundsConfig) map[governance.ImpactLevel]thresholds.Bounds {
	out := make(map[governance.ImpactLevel]thresholds.Bounds, len(bounds))
	for name, b := range bounds {
		out[governance.ParseImpactLevel(name)] = thresholds.Bounds{Min: b.Min, Max: b.Max}
	}
	return out
}
