package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aonescu/kubespresso/internal/config"
	"github.com/aonescu/kubespresso/internal/db"
	"github.com/aonescu/kubespresso/internal/formatting"
	k8s "github.com/aonescu/kubespresso/internal/kubernetes"
	"github.com/aonescu/kubespresso/internal/logging"
	"github.com/aonescu/kubespresso/internal/policy"
	"github.com/aonescu/kubespresso/internal/types"
)

func newExplainCommand(cfg *config.Config, envErr *error) *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "explain <name>",
		Short: "Show whether a job would earn a coffee right now",
		Long: `Fetch one resource and evaluate it the way the controller would for a
MODIFIED event at the current time. Nothing is written to the cluster.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if *envErr != nil {
				return fmt.Errorf("invalid environment: %w", *envErr)
			}

			pol, err := policy.New(cfg.Policy())
			if err != nil {
				return err
			}
			gvr, err := cfg.GVR()
			if err != nil {
				return err
			}

			logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
			if err != nil {
				return err
			}
			defer logger.Sync()

			restCfg, err := k8s.Login(logger)
			if err != nil {
				return err
			}
			clients, err := k8s.NewClients(restCfg)
			if err != nil {
				return err
			}

			namespace := cfg.Namespace
			if namespace == "" {
				namespace = "default"
			}

			res, err := k8s.NewResourceClient(clients.Dynamic, gvr, logger).
				Get(cmd.Context(), cfg.TargetKind, namespace, args[0])
			if err != nil {
				return err
			}

			verdict := pol.Evaluate(types.Event{Type: types.Modified, Resource: res}, time.Now())
			out := cmd.OutOrStdout()
			fmt.Fprint(out, formatting.FormatVerdict(res, verdict))

			if history <= 0 {
				return nil
			}

			store, err := db.NewPostgresStore(cfg.DatabaseURL)
			if err != nil {
				logger.Warn("Decision history unavailable", zap.Error(err))
				return nil
			}
			defer store.Close()

			decisions, err := store.ForResource(cmd.Context(), res.Kind, res.Namespace, res.Name, history)
			if err != nil {
				return err
			}
			for _, d := range decisions {
				fmt.Fprint(out, formatting.FormatDecision(d))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&history, "history", 0, "also print this many journaled decisions")
	return cmd
}
