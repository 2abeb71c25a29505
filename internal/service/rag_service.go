package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mrag/internal/ai"
	"github.com/xxxsen/mrag/internal/filestore"
	"github.com/xxxsen/mrag/internal/loader"
	"github.com/xxxsen/mrag/internal/model"
	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
	"github.com/xxxsen/mrag/internal/vectorstore"
)

const (
	DefaultTopK          = 4
	answerTemperature    = float32(0.2)
	noContextPlaceholder = "(no relevant context)"
)

var ErrAIUnavailable = ai.ErrUnavailable

type RAGDeps struct {
	Loader *loader.Loader
	// DocEmbedder embeds chunks at ingest time. QueryEmbedder embeds questions
	// and falls back to DocEmbedder when nil.
	DocEmbedder   ai.IEmbedder
	QueryEmbedder ai.IEmbedder
	Generator     ai.IGenerator
	Store         vectorstore.Store
	Uploads       filestore.Store
	DataDir       string
	// Timeout bounds each provider call; zero means no deadline.
	Timeout time.Duration
}

type RAGService struct {
	loader        *loader.Loader
	docEmbedder   ai.IEmbedder
	queryEmbedder ai.IEmbedder
	generator     ai.IGenerator
	store         vectorstore.Store
	uploads       filestore.Store
	dataDir       string
	timeout       time.Duration
}

func NewRAGService(deps RAGDeps) *RAGService {
	l := deps.Loader
	if l == nil {
		l = loader.New(loader.Config{})
	}
	query := deps.QueryEmbedder
	if query == nil {
		query = deps.DocEmbedder
	}
	return &RAGService{
		loader:        l,
		docEmbedder:   deps.DocEmbedder,
		queryEmbedder: query,
		generator:     deps.Generator,
		store:         deps.Store,
		uploads:       deps.Uploads,
		dataDir:       deps.DataDir,
		timeout:       deps.Timeout,
	}
}

func (s *RAGService) DataDir() string {
	return s.dataDir
}

// IngestFolder embeds and stores every chunk of every supported file directly
// inside dir. Each run inserts fresh ids, so re-ingesting duplicates content.
func (s *RAGService) IngestFolder(ctx context.Context, dir string) (model.IngestStats, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("dir", dir))
	files, err := s.loader.ListFiles(dir)
	if err != nil {
		return model.IngestStats{}, err
	}
	if len(files) == 0 {
		logger.Info("no supported files to ingest")
		return model.IngestStats{Indexed: 0, Files: 0}, nil
	}

	var chunks []model.Chunk
	for _, path := range files {
		text, err := s.loader.LoadText(path)
		if err != nil {
			logger.Error("failed to load file", zap.String("file", path), zap.Error(err))
			return model.IngestStats{}, fmt.Errorf("load %s: %w", filepath.Base(path), err)
		}
		source := filepath.Base(path)
		before := len(chunks)
		for piece := range s.loader.Chunks(text) {
			chunks = append(chunks, model.Chunk{
				ID:       uuid.NewString(),
				Document: piece,
				Metadata: map[string]string{model.MetadataSource: source},
			})
		}
		logger.Debug("file chunked", zap.String("file", source), zap.Int("chunks", len(chunks)-before))
	}
	if len(chunks) == 0 {
		logger.Info("supported files contained no text", zap.Int("files", len(files)))
		return model.IngestStats{Indexed: 0, Files: len(files)}, nil
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Document)
	}
	vectors, err := s.embed(ctx, s.docEmbedder, texts, ai.TaskRetrievalDocument)
	if err != nil {
		logger.Error("failed to embed chunks", zap.Int("chunks", len(texts)), zap.Error(err))
		return model.IngestStats{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return model.IngestStats{}, &ai.EmbeddingShapeError{
			Index:  -1,
			Reason: fmt.Sprintf("got %d embeddings for %d chunks", len(vectors), len(chunks)),
		}
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	if err := s.store.Add(ctx, chunks); err != nil {
		logger.Error("failed to store chunks", zap.Error(err))
		return model.IngestStats{}, fmt.Errorf("store chunks: %w", err)
	}
	logger.Info("ingest finished", zap.Int("files", len(files)), zap.Int("indexed", len(chunks)))
	return model.IngestStats{Indexed: len(chunks), Files: len(files)}, nil
}

// IngestDataDir re-ingests the configured data directory.
func (s *RAGService) IngestDataDir(ctx context.Context) (model.IngestStats, error) {
	return s.IngestFolder(ctx, s.dataDir)
}

type UploadFile struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Upload saves every file into the data directory, then ingests the whole
// directory.
func (s *RAGService) Upload(ctx context.Context, files []UploadFile) (model.UploadStats, error) {
	if len(files) == 0 {
		return model.UploadStats{}, appErr.ErrNoFiles
	}
	if s.uploads == nil {
		return model.UploadStats{}, fmt.Errorf("upload store not configured")
	}
	logger := logutil.GetLogger(ctx)
	saved := 0
	for _, f := range files {
		if err := s.saveOne(ctx, f); err != nil {
			logger.Error("failed to save upload", zap.String("name", f.Name), zap.Error(err))
			return model.UploadStats{}, err
		}
		saved++
	}
	logger.Info("uploads saved", zap.Int("saved", saved), zap.String("dir", s.uploads.Dir()))
	stats, err := s.IngestFolder(ctx, s.uploads.Dir())
	if err != nil {
		return model.UploadStats{}, err
	}
	return model.UploadStats{Saved: saved, Indexed: stats.Indexed, Files: stats.Files}, nil
}

func (s *RAGService) saveOne(ctx context.Context, f UploadFile) error {
	if _, err := filestore.CleanName(f.Name); err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrInvalid, err)
	}
	r, err := f.Open()
	if err != nil {
		return fmt.Errorf("open upload %s: %w", f.Name, err)
	}
	defer r.Close()
	if _, err := s.uploads.Save(ctx, f.Name, r); err != nil {
		return fmt.Errorf("save upload %s: %w", f.Name, err)
	}
	return nil
}

// Answer retrieves the k nearest chunks for query and asks the generator to
// answer from them. Sources follow retrieval rank and may repeat.
func (s *RAGService) Answer(ctx context.Context, query string, k int) (*model.Answer, error) {
	if k < 0 {
		return nil, appErr.ErrInvalid
	}
	if s.generator == nil {
		return nil, ai.ErrUnavailable
	}
	logger := logutil.GetLogger(ctx).With(zap.Int("k", k))
	hits, err := s.retrieve(ctx, query, k)
	if err != nil {
		logger.Error("failed to retrieve context", zap.Error(err))
		return nil, err
	}
	contexts := make([]string, 0, len(hits))
	sources := make([]string, 0, len(hits))
	for _, hit := range hits {
		contexts = append(contexts, hit.Document)
		sources = append(sources, hit.Source())
	}
	if len(contexts) == 0 {
		contexts = []string{noContextPlaceholder}
	}
	prompt := BuildPrompt(query, contexts)

	genCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	temp := answerTemperature
	text, err := s.generator.Generate(genCtx, prompt, ai.GenerateOptions{Temperature: &temp})
	if err != nil {
		logger.Error("failed to generate answer", zap.Error(err))
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	logger.Info("answer generated", zap.Int("hits", len(hits)))
	return &model.Answer{Answer: text, Sources: sources}, nil
}

func (s *RAGService) retrieve(ctx context.Context, query string, k int) ([]model.Hit, error) {
	if k == 0 {
		return nil, nil
	}
	vectors, err := s.embed(ctx, s.queryEmbedder, []string{query}, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, &ai.EmbeddingShapeError{Index: -1, Reason: fmt.Sprintf("got %d embeddings for 1 query", len(vectors))}
	}
	hits, err := s.store.Query(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}
	return hits, nil
}

func (s *RAGService) embed(ctx context.Context, e ai.IEmbedder, texts []string, taskType string) ([][]float32, error) {
	if e == nil {
		return nil, ai.ErrUnavailable
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return e.Embed(ctx, texts, taskType)
}

func (s *RAGService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
