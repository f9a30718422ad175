package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/mnemon-lab/mnemon/pkg/cli/config"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/service/vector"
	"github.com/mnemon-lab/mnemon/pkg/usecase"
	"github.com/mnemon-lab/mnemon/pkg/utils/logging"
)

// cmdSearch queries the store directly, without a running server. It
// goes through the same retrieval pipeline the HTTP API uses, so
// results are identical between the two surfaces.
func cmdSearch() *cli.Command {
	var project string
	var obsType string
	var limit int
	var format string
	var vectorDBPath string
	var appCfg config.App
	var repoCfg config.Repository
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Restrict results to one project",
			Sources:     cli.EnvVars("MNEMON_PROJECT"),
			Destination: &project,
		},
		&cli.StringFlag{
			Name:        "type",
			Aliases:     []string{"t"},
			Usage:       "Restrict results to one observation type",
			Destination: &obsType,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of results",
			Value:       10,
			Destination: &limit,
		},
		&cli.StringFlag{
			Name:        "format",
			Aliases:     []string{"f"},
			Usage:       "Result projection (index or full)",
			Value:       "index",
			Destination: &format,
		},
		&cli.StringFlag{
			Name:        "vector-db-path",
			Usage:       "Directory for persistent vector storage (lexical-only if empty)",
			Sources:     cli.EnvVars("MNEMON_VECTOR_DB_PATH"),
			Destination: &vectorDBPath,
		},
	}

	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search stored observations",
		ArgsUsage: "<query text>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			text := c.Args().First()
			if text == "" {
				return goerr.Wrap(types.ErrInvalidQuery, "query text argument is required")
			}

			searchFormat, err := types.ParseSearchFormat(format)
			if err != nil {
				return err
			}

			query := usecase.Query{
				Text:    text,
				Project: project,
				Limit:   limit,
				Format:  searchFormat,
			}
			if obsType != "" {
				t, err := types.ParseObservationType(obsType)
				if err != nil {
					return err
				}
				query.Type = t
			}

			appConfig, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load application configuration")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			ucOpts := []usecase.Option{
				usecase.WithConfig(appConfig.ToPipelineConfig()),
			}

			// Semantic retrieval needs both an embedding client and the
			// persisted vectors; without them the search runs lexical-only
			llmClient, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize Gemini client")
			}
			if llmClient != nil && vectorDBPath != "" {
				vec, err := vector.New(llmClient, vector.WithPersistence(vectorDBPath))
				if err != nil {
					return goerr.Wrap(err, "failed to initialize vector index")
				}
				ucOpts = append(ucOpts, usecase.WithVectorIndex(vec))
			}

			uc := usecase.New(repo, nil, ucOpts...)

			resp, err := uc.Search.Search(ctx, query)
			if err != nil {
				return goerr.Wrap(err, "search failed")
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return goerr.Wrap(err, "failed to encode results")
			}

			return nil
		},
	}
}
