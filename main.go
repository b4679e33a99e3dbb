package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"autovid-pipeline/config"
	"autovid-pipeline/logging"
	"autovid-pipeline/pipeline"
	"autovid-pipeline/server"
	"autovid-pipeline/types"
)

func main() {
	// .env is a local convenience; deployments set real environment variables
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "autovid",
		Short:         "Generate short vertical videos from a niche",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newRunCmd(&configPath),
		newSuggestCmd(&configPath),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := build(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(app.cfg, server.Deps{
				Runner: app.orchestrator,
				Runs:   app.history,
				Gemini: app.llm,
				Health: app.health,
			})
			return srv.ListenAndServe(ctx)
		},
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	var req types.PipelineRequest

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := pipeline.Validate(req); err != nil {
				return err
			}
			app, err := build(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res := app.orchestrator.Run(ctx, req)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if res.Error != nil {
				return fmt.Errorf("pipeline failed at %s: %s", res.Stage, *res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Niche, "niche", "", "topic area; empty asks for a suggestion")
	cmd.Flags().BoolVar(&req.Upload, "upload", false, "upload the rendered video to YouTube")
	cmd.Flags().BoolVar(&req.Verbose, "verbose", false, "log at debug level for this run")
	return cmd
}

func newSuggestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest",
		Short: "Print one suggested niche",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := build(*configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			niche, err := app.orchestrator.Suggest(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), niche)
			return nil
		},
	}
}

// loadConfig reads config and configures the base logger from it
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Configure(logging.Config{Level: cfg.Logging.Level, Service: "autovid"})
	logger := logging.WithComponent("main")
	logger.Info().
		Bool("dev_mode", cfg.DevMode).
		Bool("fast", cfg.Fast).
		Bool("allow_placeholder", cfg.AllowPlaceholder).
		Msg("config loaded")
	return cfg, nil
}
