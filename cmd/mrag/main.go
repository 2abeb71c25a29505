package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/embedcache"
	"github.com/xxxsen/mrag/internal/filestore"
	"github.com/xxxsen/mrag/internal/handler"
	"github.com/xxxsen/mrag/internal/loader"
	"github.com/xxxsen/mrag/internal/middleware"
	"github.com/xxxsen/mrag/internal/service"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

func main() {
	var configPath string
	var ingestDir string

	rootCmd := &cobra.Command{
		Use:   "mrag",
		Short: "mrag retrieval augmented chat server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run mrag http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "ingest the data directory once and print stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, ingestDir)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json (optional, env overrides apply)")
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "directory to ingest (defaults to data dir)")
	rootCmd.AddCommand(runCmd, ingestCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded",
		zap.String("config", configPath),
		zap.String("provider", cfg.AI.Provider),
		zap.String("vector_store", cfg.VectorStore.Type),
	)
	return cfg, nil
}

func buildService(cfg *config.Config) (*service.RAGService, vectorstore.Store, error) {
	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("init ai provider: %w", err)
	}
	docEmbedder := ai.NewEmbedder(provider, cfg.AI.EmbeddingModel, cfg.AI.EmbedBatchSize)
	queryEmbedder := embedcache.WrapLruCacheToEmbedder(
		docEmbedder,
		cfg.AI.QueryCacheSize,
		time.Duration(cfg.AI.QueryCacheTTL)*time.Second,
	)
	store, err := vectorstore.New(cfg.VectorStore)
	if err != nil {
		return nil, nil, fmt.Errorf("init vector store: %w", err)
	}
	uploads, err := filestore.NewLocal(cfg.DataDir)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("init upload store: %w", err)
	}
	rag := service.NewRAGService(service.RAGDeps{
		Loader: loader.New(loader.Config{
			ChunkWords:    cfg.Loader.ChunkWords,
			MarkdownPlain: cfg.Loader.MarkdownPlain,
		}),
		DocEmbedder:   docEmbedder,
		QueryEmbedder: queryEmbedder,
		Generator:     ai.NewGenerator(provider, cfg.AI.GenerationModel),
		Store:         store,
		Uploads:       uploads,
		DataDir:       cfg.DataDir,
		Timeout:       time.Duration(cfg.AI.Timeout) * time.Second,
	})
	return rag, store, nil
}

func runIngest(ctx context.Context, cfg *config.Config, dir string) error {
	rag, store, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if dir == "" {
		dir = rag.DataDir()
	}
	stats, err := rag.IngestFolder(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingest %s: %w", dir, err)
	}
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(stats)
}

func runServer(cfg *config.Config) error {
	rag, store, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.String("addr", addr),
		zap.String("data_dir", cfg.DataDir),
		zap.Strings("cors_origins", cfg.CORSOrigins),
	)

	gin.SetMode(gin.ReleaseMode)
	deps := handler.RouterDeps{
		RAG: handler.NewRAGHandler(rag, cfg.MaxUploadBytes),
	}
	if cfg.IngestRateLimitMs > 0 {
		deps.IngestLimit = middleware.RateLimit(time.Duration(cfg.IngestRateLimitMs) * time.Millisecond)
	}
	engine := handler.NewEngine(deps,
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.CORS(cfg.CORSOrigins),
		gzip.Gzip(gzip.DefaultCompression),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logutil.GetLogger(context.Background()).Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
