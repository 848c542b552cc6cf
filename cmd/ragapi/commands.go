package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/ragapi/internal/cli"
	"github.com/hyperjump/ragapi/internal/models"
	"github.com/hyperjump/ragapi/internal/server"
	"github.com/hyperjump/ragapi/internal/telemetry"
	"github.com/hyperjump/ragapi/internal/watcher"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var watchEnabled bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags, watchEnabled)
		},
	}
	cmd.Flags().BoolVar(&watchEnabled, "watch", true, "watch configured directories and reindex changed files")
	return cmd
}

func runServe(flags *globalFlags, watchEnabled bool) error {
	cfg, resolvedConfigPath, logger, err := setup(flags)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath), zap.Bool("debug", cfg.Debug))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.InitTracing(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	var watchSvc server.WatchService
	if watchEnabled {
		watchOpts := []watcher.Option{}
		if cfg.Debug {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.New(components.Indexer, cfg.Watch.Directories, cfg.Watch.Extensions, cfg.Watch.RecursiveOrDefault(), watchOpts...)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		go w.SyncExistingFiles()
		watchSvc = w
	}

	srv := server.NewServer(components.Engine, components.Indexer, components.Staging, cfg, logger, watchSvc, resolvedConfigPath)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func newIngestCmd(flags *globalFlags) *cobra.Command {
	var (
		serverURL string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "ingest <file|dir>...",
		Short: "Chunk, embed and store documents",
		Long: `Ingest files or directories. Directories are walked recursively and filtered
by watch.extensions. Each file becomes a document named after its file name
without extension. Ingesting a document again adds a second copy of its chunks;
delete it first to replace it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			if serverURL != "" {
				results, err := newAPIClient(serverURL).Ingest(cmd.Context(), args)
				if err != nil {
					return err
				}
				return cli.WriteIngestResults(cmd.OutOrStdout(), results, format)
			}
			return runIngest(cmd, flags, args, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "upload files to a running server instead of writing to the store directly")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func runIngest(cmd *cobra.Command, flags *globalFlags, paths []string, format cli.OutputFormat) error {
	cfg, _, logger, err := setup(flags)
	if err != nil {
		return err
	}
	defer logger.Sync()
	ctx := cmd.Context()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	var results []*models.IngestResult
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if info.IsDir() {
			res, err := components.Indexer.IngestDirectory(ctx, path, cfg.Watch.Extensions)
			results = append(results, res...)
			if err != nil {
				_ = cli.WriteIngestResults(cmd.OutOrStdout(), results, format)
				return err
			}
			continue
		}
		res, err := components.Indexer.IngestFile(ctx, path)
		if err != nil {
			_ = cli.WriteIngestResults(cmd.OutOrStdout(), results, format)
			return err
		}
		results = append(results, res)
	}
	return cli.WriteIngestResults(cmd.OutOrStdout(), results, format)
}

func newQueryCmd(flags *globalFlags) *cobra.Command {
	var (
		serverURL string
		topK      int
		docID     string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Find the chunks most similar to a query",
		Long:  "Query text is all arguments joined by spaces, so quoting is optional.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			req := &models.QueryRequest{Query: buildQuery(args), DocID: docID}
			if cmd.Flags().Changed("top-k") {
				req.SetTopK(topK)
			}
			var resp *models.QueryResponse
			if serverURL != "" {
				resp, err = newAPIClient(serverURL).Query(cmd.Context(), req)
			} else {
				resp, err = runQuery(cmd.Context(), flags, req)
			}
			if err != nil {
				return err
			}
			return cli.WriteQueryResults(cmd.OutOrStdout(), req.Query, resp, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "query a running server instead of the store directly")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of matches (default from query.default_top_k)")
	cmd.Flags().StringVar(&docID, "doc-id", "", "only match chunks of this document")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func runQuery(ctx context.Context, flags *globalFlags, req *models.QueryRequest) (*models.QueryResponse, error) {
	cfg, _, logger, err := setup(flags)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	return components.Engine.Query(ctx, req)
}

// buildQuery joins args with spaces so multi-word queries work with or without quotes.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "delete <docId>",
		Short: "Delete every chunk of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docID := args[0]
			var (
				resp *models.DeleteResponse
				err  error
			)
			if serverURL != "" {
				resp, err = newAPIClient(serverURL).Delete(cmd.Context(), docID)
			} else {
				resp, err = runDelete(cmd.Context(), flags, docID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d chunks of %s\n", resp.DeletedCount, resp.DocID)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "delete through a running server instead of the store directly")
	return cmd
}

func runDelete(ctx context.Context, flags *globalFlags, docID string) (*models.DeleteResponse, error) {
	cfg, _, logger, err := setup(flags)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	n, err := components.Indexer.DeleteDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	return &models.DeleteResponse{DocID: docID, DeletedCount: n}, nil
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	var (
		serverURL string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show collection, embedding and staging status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			var status *models.StatusResponse
			if serverURL != "" {
				status, err = newAPIClient(serverURL).Status(cmd.Context())
			} else {
				status, err = runStatus(cmd.Context(), flags)
			}
			if err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), status, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "ask a running server instead of opening the store directly")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func runStatus(ctx context.Context, flags *globalFlags) (*models.StatusResponse, error) {
	cfg, _, logger, err := setup(flags)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	info, err := components.Engine.Describe(ctx)
	if err != nil {
		return nil, err
	}
	staged, _ := components.Staging.Usage()
	return &models.StatusResponse{
		Collection:        info.Name,
		Backend:           cfg.Vector.Backend,
		Metric:            string(info.Metric),
		Dimension:         info.Dimension,
		IndexType:         info.Index.Type,
		ChunkCount:        info.Rows,
		EmbeddingProvider: cfg.Embedding.Provider,
		EmbeddingModel:    cfg.Embedding.ModelName,
		ChunkSize:         cfg.Chunking.ChunkSize,
		ChunkOverlap:      cfg.Chunking.ChunkOverlap,
		StagingBytes:      staged,
		WatchDirectories:  cfg.Watch.Directories,
	}, nil
}

func newWatchCmd() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the directories a running server watches",
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL, "server URL")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List watched directories",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dirs, err := newAPIClient(serverURL).WatchList(cmd.Context())
				if err != nil {
					return err
				}
				for _, d := range dirs {
					fmt.Fprintln(cmd.OutOrStdout(), d)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <path>",
			Short: "Watch a directory and index its existing files",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				if err := newAPIClient(serverURL).WatchAdd(cmd.Context(), path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <path>",
			Short: "Stop watching a directory",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				if err := newAPIClient(serverURL).WatchRemove(cmd.Context(), path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", path)
				return nil
			},
		},
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ragapi version %s\n", version)
		},
	}
}
