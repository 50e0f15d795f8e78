package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/shipment-qna-assistant/internal/config"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/pipeline"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/ports"
	"github.com/kirillkom/shipment-qna-assistant/internal/core/usecase"
	"github.com/kirillkom/shipment-qna-assistant/internal/infrastructure/blob/azure"
	"github.com/kirillkom/shipment-qna-assistant/internal/infrastructure/blob/localfs"
	"github.com/kirillkom/shipment-qna-assistant/internal/infrastructure/dataset"
	"github.com/kirillkom/shipment-qna-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/shipment-qna-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/shipment-qna-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/shipment-qna-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/shipment-qna-assistant/internal/infrastructure/sandbox/yaegi"
	"github.com/kirillkom/shipment-qna-assistant/internal/infrastructure/search/azsearch"
	"github.com/kirillkom/shipment-qna-assistant/internal/infrastructure/search/memsearch"
)

type App struct {
	Config config.Config

	Questions ports.QuestionService
	Exchanges ports.ExchangeStore
	Queue     ports.MessageQueue
	Cache     ports.DatasetCache

	closeFn func()
}

// Options carries collaborators the caller wants to inject, typically the
// metrics-backed pipeline observer.
type Options struct {
	Observer pipeline.Observer
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	exchanges := postgres.NewExchangeRepository(db)
	if err := exchanges.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	schema := domain.DefaultShipmentSchema()
	if cfg.SchemaFile != "" {
		schema, err = domain.LoadSchemaFile(cfg.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("load schema file: %w", err)
		}
	}

	store, err := newObjectStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}

	cache, err := dataset.NewManager(
		cfg.DatasetCacheDir,
		store,
		cfg.DatasetContainer,
		cfg.DatasetBlobName,
		cfg.DatasetScopeColumn,
		schema,
	)
	if err != nil {
		return nil, fmt.Errorf("init dataset cache: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	chat := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaChatModel, ollama.Options{
		ResilienceExecutor: executor,
	})
	search, err := newSearchIndex(cfg)
	if err != nil {
		return nil, fmt.Errorf("init search index: %w", err)
	}
	sandbox := yaegi.New(time.Duration(cfg.SandboxTimeoutSeconds) * time.Second)

	analytics := usecase.NewAnalyticsUseCase(cache, chat, sandbox, schema)
	answers := usecase.NewAnswerUseCase(chat, cfg.AnswerTemperature)

	questions := pipeline.NewOrchestrator(search, analytics, answers, pipeline.Options{
		Exchanges: exchanges,
		Queue:     queue,
		Observer:  opts.Observer,
		Defaults: pipeline.PlanDefaults{
			TopK:       cfg.RAGTopK,
			VectorK:    cfg.RAGVectorK,
			ScopeField: cfg.SearchScopeField,
		},
	})

	return &App{
		Config:    cfg,
		Questions: questions,
		Exchanges: exchanges,
		Queue:     queue,
		Cache:     cache,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func newSearchIndex(cfg config.Config) (ports.SearchIndex, error) {
	switch cfg.SearchProvider {
	case "azure", "":
		return azsearch.NewWithOptions(cfg.SearchURL, cfg.SearchIndex, cfg.SearchAPIKey, azsearch.Options{
			VectorField: cfg.SearchVectorField,
		}), nil
	case "memory":
		// Empty index for local development; seed via the package API.
		return memsearch.New(), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.SearchProvider)
	}
}

func newObjectStore(cfg config.Config) (ports.ObjectStore, error) {
	switch cfg.BlobProvider {
	case "azure":
		return azure.New(cfg.BlobAccountURL, cfg.BlobSASToken), nil
	case "localfs", "":
		return localfs.New(cfg.BlobLocalPath)
	default:
		return nil, fmt.Errorf("unknown blob provider %q", cfg.BlobProvider)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
