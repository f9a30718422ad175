package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/mnemon-lab/mnemon/pkg/cli/config"
	httpctrl "github.com/mnemon-lab/mnemon/pkg/controller/http"
	"github.com/mnemon-lab/mnemon/pkg/service/summary"
	"github.com/mnemon-lab/mnemon/pkg/service/vector"
	"github.com/mnemon-lab/mnemon/pkg/service/worker"
	"github.com/mnemon-lab/mnemon/pkg/usecase"
	"github.com/mnemon-lab/mnemon/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var vectorDBPath string
	var appCfg config.App
	var repoCfg config.Repository
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       "127.0.0.1:7133",
			Sources:     cli.EnvVars("MNEMON_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "vector-db-path",
			Usage:       "Directory for persistent vector storage (in-memory if empty)",
			Sources:     cli.EnvVars("MNEMON_VECTOR_DB_PATH"),
			Destination: &vectorDBPath,
		},
	}

	// Add shared config flags
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// Load pipeline tunables
			appConfig, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load application configuration")
			}

			// Initialize repository based on backend type
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			// The capture pipeline cannot run without an LLM behind it
			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize Gemini client")
			}
			if llmClient == nil {
				return goerr.New("gemini-project is required for the serve command")
			}

			summarizer, err := summary.New(llmClient)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize summarizer")
			}

			ucOpts := []usecase.Option{
				usecase.WithConfig(appConfig.ToPipelineConfig()),
			}

			var vecOpts []vector.Option
			if vectorDBPath != "" {
				vecOpts = append(vecOpts, vector.WithPersistence(vectorDBPath))
			}
			vec, err := vector.New(llmClient, vecOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize vector index")
			}
			ucOpts = append(ucOpts, usecase.WithVectorIndex(vec))
			logging.Default().Info("Semantic search enabled", "persistent", vectorDBPath != "")

			uc := usecase.New(repo, summarizer, ucOpts...)

			// Reap sessions whose capture source died without an end signal
			reaper := worker.NewSessionReaper(repo, uc.Lifecycle,
				appConfig.ReaperInterval(), appConfig.ReaperIdleTTL())
			if err := reaper.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start session reaper")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				reaper.Stop()
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				reaper.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed",
					"in_flight_jobs", uc.Lifecycle.RunningJobs())
				return nil
			}
		},
	}
}
