package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pendocareer/ragpipeline/internal/config"
	"github.com/pendocareer/ragpipeline/internal/core"
	db "github.com/pendocareer/ragpipeline/internal/core/database"
	"github.com/pendocareer/ragpipeline/internal/core/extractors"
	"github.com/pendocareer/ragpipeline/internal/core/llm"
	objectclient "github.com/pendocareer/ragpipeline/internal/core/object-client"
	"github.com/pendocareer/ragpipeline/internal/core/pipeline"
	"github.com/pendocareer/ragpipeline/internal/models"
)

// App holds every wired component for the running service.
type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Embedder     core.EmbeddingProvider
	Manager      *pipeline.Manager
	Server       *Server
	log          *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database initialized")

	objClient, err := objectclient.NewS3Client(appCtx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("object storage initialized", zap.String("bucket", cfg.BucketName))

	embedder, err := newEmbedder(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}
	log.Info("embedder initialized",
		zap.String("provider", cfg.EmbedProvider),
		zap.String("model", cfg.EmbedModel),
		zap.Int("dimension", embedder.Dimension()))

	exMap := map[models.SourceType]core.Extractor{
		models.SourcePDF:     extractors.NewPDFExtractor(cfg.MaxPDFBytes, cfg.MaxPDFPages),
		models.SourceWebsite: extractors.NewWebsiteExtractor(cfg.FetchTimeout, cfg.MaxWebsiteLength),
		models.SourceResume:  extractors.NewResumeExtractor(cfg.MaxPDFBytes),
	}

	manager := pipeline.NewManager(cfg, dbClient, objClient, embedder, exMap, log)
	server := NewServer(cfg, dbClient, objClient, manager, log)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Embedder:     embedder,
		Manager:      manager,
		Server:       server,
		log:          log,
	}, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.EmbedProvider {
	case "gemini":
		return llm.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	case "openai":
		return llm.NewOpenAIEmbedder(cfg.EmbedBaseURL, cfg.EmbedAPIKey, cfg.EmbedModel, cfg.EmbedDim, cfg.EmbedTimeout)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbedProvider)
	}
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
	if closer, ok := a.Embedder.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
