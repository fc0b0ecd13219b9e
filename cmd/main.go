package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/aonescu/kubespresso/cmd/server"
	"github.com/aonescu/kubespresso/internal/coffee"
	"github.com/aonescu/kubespresso/internal/config"
	"github.com/aonescu/kubespresso/internal/db"
	k8s "github.com/aonescu/kubespresso/internal/kubernetes"
	"github.com/aonescu/kubespresso/internal/logging"
	"github.com/aonescu/kubespresso/internal/policy"
	"github.com/aonescu/kubespresso/internal/reconciler"
	"github.com/aonescu/kubespresso/internal/state"
	"github.com/aonescu/kubespresso/internal/supervisor"
	"github.com/aonescu/kubespresso/internal/updater"
)

// Version can be set during build with -ldflags
var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg, envErr := config.FromEnv()

	cmd := &cobra.Command{
		Use:   "kubespresso",
		Short: "Order coffee when a long-running Kubernetes job starts",
		Long: `kubespresso watches Jobs and orders a coffee whenever one is expected to
run for a long time. A marker annotation on each Job keeps it from ordering
twice within the cooldown, even with several replicas running.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return fmt.Errorf("invalid environment: %w", envErr)
			}
			return run(cmd.Context(), cfg)
		},
	}

	bindFlags(cmd.PersistentFlags(), &cfg)
	cmd.AddCommand(newExplainCommand(&cfg, &envErr))
	return cmd
}

// bindFlags registers flags over cfg; values loaded from the environment
// become the defaults, so an explicit flag wins.
func bindFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVarP(&cfg.Namespace, "namespace", "n", cfg.Namespace, "namespace to watch, empty for all")
	fs.StringVar(&cfg.Resource, "resource", cfg.Resource, "resource to watch as group/version/resource")
	fs.StringVar(&cfg.TargetKind, "kind", cfg.TargetKind, "kind of resource that can trigger an order")
	fs.DurationVar(&cfg.MinExpectedDuration, "min-expected-duration", cfg.MinExpectedDuration, "shortest expected run that earns a coffee")
	fs.DurationVar(&cfg.Cooldown, "cooldown", cfg.Cooldown, "minimum time between two orders for the same resource")
	fs.StringVar(&cfg.CoffeeURL, "coffee-url", cfg.CoffeeURL, "coffee machine endpoint")
	fs.StringVar(&cfg.Drink, "drink", cfg.Drink, "drink to order")
	fs.DurationVar(&cfg.CoffeeTimeout, "coffee-timeout", cfg.CoffeeTimeout, "timeout for one order")
	fs.DurationVar(&cfg.OrderInterval, "order-interval", cfg.OrderInterval, "average time between orders")
	fs.IntVar(&cfg.OrderBurst, "order-burst", cfg.OrderBurst, "orders allowed back to back")
	fs.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "log orders instead of sending them")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string for the decision journal")
	fs.StringVar(&cfg.APIAddress, "api-address", cfg.APIAddress, "listen address of the API server")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.BoolVar(&cfg.LogDevelopment, "log-development", cfg.LogDevelopment, "human readable log output")
}

func run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	restCfg, err := k8s.Login(logger)
	if err != nil {
		return err
	}
	clients, err := k8s.NewClients(restCfg)
	if err != nil {
		return err
	}
	if v, err := clients.ServerVersion(); err != nil {
		logger.Warn("Cluster not reachable yet", zap.Error(err))
	} else {
		logger.Info("Connected to cluster", zap.String("version", v))
	}

	journal, database, closeJournal := openJournal(cfg.DatabaseURL, logger)
	defer closeJournal()

	pol, err := policy.New(cfg.Policy())
	if err != nil {
		return err
	}
	gvr, err := cfg.GVR()
	if err != nil {
		return err
	}

	resources := k8s.NewResourceClient(clients.Dynamic, gvr, logger)
	markers := updater.New(resources, logger)
	machine, err := coffee.NewMachine(cfg.Coffee(), &http.Client{}, logger)
	if err != nil {
		return err
	}

	api := server.NewAPIServer(server.Config{
		Journal:  journal,
		Policy:   cfg.Policy(),
		Database: database,
		Cluster:  clients.Ping,
		Logger:   logger,
	})
	apiDone := make(chan struct{})
	go func() {
		defer close(apiDone)
		if err := api.Start(ctx, cfg.APIAddress); err != nil {
			logger.Error("API server failed", zap.Error(err))
		}
	}()

	logger.Info("Watching for long-running jobs",
		zap.String("resource", gvr.String()),
		zap.String("namespace", cfg.Namespace),
		zap.String("kind", cfg.TargetKind),
		zap.Duration("cooldown", cfg.Cooldown))

	session := func(ctx context.Context) error {
		source, err := k8s.OpenWatchSource(ctx, clients.Dynamic, gvr, cfg.TargetKind, cfg.Namespace, logger)
		if err != nil {
			return err
		}
		defer source.Stop()

		rec, err := reconciler.New(reconciler.Config{
			Source:  source,
			Policy:  pol,
			Updater: markers,
			Action:  machine,
			Journal: journal,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		return rec.Run(ctx)
	}

	err = supervisor.Supervise(ctx, cfg.Backoff(), session, logger)

	logger.Info("Shutting down, waiting for pending coffee orders")
	machine.Wait()
	<-apiDone

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openJournal prefers Postgres and falls back to memory when it is unreachable.
func openJournal(databaseURL string, logger *zap.Logger) (state.Journal, server.Pinger, func()) {
	pgStore, err := db.NewPostgresStore(databaseURL)
	if err != nil {
		logger.Warn("Failed to connect to PostgreSQL, falling back to in-memory journal", zap.Error(err))
		return state.NewMemoryJournal(), nil, func() {}
	}

	logger.Info("Connected to PostgreSQL")
	return pgStore, pgStore, func() {
		if err := pgStore.Close(); err != nil {
			logger.Warn("Failed to close PostgreSQL", zap.Error(err))
		}
	}
}
