package main

import (
	"fmt"

	"github.com/ethpandaops/gatewaybench/pkg/api"
	"github.com/ethpandaops/gatewaybench/pkg/runindex"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recorded test runs over HTTP",
	Long:  `Start the read-only results API backed by the orchestrator run index.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address, overrides api.listen")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serveListen != "" {
		cfg.API.Listen = serveListen
	}

	if err := cfg.ValidateAPI(); err != nil {
		return fmt.Errorf("validating api config: %w", err)
	}

	store := runindex.NewStore(log, &cfg.Orchestrator.Index.Database)
	srv := api.NewServer(log, &cfg.API, store)

	g, ctx := errgroup.WithContext(cmd.Context())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down API server")

		if err := srv.Stop(); err != nil {
			return fmt.Errorf("stopping api server: %w", err)
		}

		return nil
	})

	return g.Wait()
}
