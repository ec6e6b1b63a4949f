package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/corpusqa/corpusqa/internal/config"
	"github.com/corpusqa/corpusqa/internal/core/ports"
	"github.com/corpusqa/corpusqa/internal/core/usecase"
	"github.com/corpusqa/corpusqa/internal/infrastructure/cache"
	"github.com/corpusqa/corpusqa/internal/infrastructure/index/opensearch"
	"github.com/corpusqa/corpusqa/internal/infrastructure/llm/gemini"
	"github.com/corpusqa/corpusqa/internal/infrastructure/llm/ollama"
	"github.com/corpusqa/corpusqa/internal/infrastructure/llm/openaicompat"
	natsqueue "github.com/corpusqa/corpusqa/internal/infrastructure/queue/nats"
	"github.com/corpusqa/corpusqa/internal/infrastructure/repository/postgres"
	"github.com/corpusqa/corpusqa/internal/infrastructure/resilience"
	"github.com/corpusqa/corpusqa/internal/infrastructure/tokenizer"
	"github.com/corpusqa/corpusqa/internal/observability/metrics"
)

// App wires every component once; each binary picks the pieces it serves.
type App struct {
	Config config.Config
	Logger *slog.Logger

	AskService ports.QueryService
	Searcher   ports.FragmentSearcher
	Queue      ports.AnswerQueue
	QueryLog   *postgres.QueryLogRepository
	Index      *opensearch.Client
	Corpora    []string
	Probes     map[string]func(context.Context) error
	Metrics    *metrics.HTTPServerMetrics

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	app := &App{Config: cfg, Logger: logger}
	httpMetrics := metrics.NewHTTPServerMetrics(service)
	app.Metrics = httpMetrics

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closeFns = append(app.closeFns, func() { _ = db.Close() })

	queryLog := postgres.NewQueryLogRepository(db)
	if err := queryLog.EnsureSchema(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	app.QueryLog = queryLog

	retryExec := resilience.NewExecutor(resilience.DefaultPolicy(), logger)
	tierExec := resilience.NewExecutor(resilience.DefaultPolicy().SingleAttempt(), logger)

	primary, profiles, err := config.LoadCorpora(cfg.CorporaPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load corpora: %w", err)
	}

	corpora := make([]opensearch.Corpus, 0, len(profiles))
	for _, profile := range profiles {
		corpora = append(corpora, opensearch.Corpus{
			Name:          profile.Name,
			Index:         profile.Index,
			LexicalFields: profile.LexicalFields,
			VectorField:   profile.VectorField,
		})
		app.Corpora = append(app.Corpora, profile.Name)
	}

	index, err := opensearch.New(
		cfg.OpenSearchURL,
		corpora,
		time.Duration(cfg.OpenSearchTimeoutSeconds)*time.Second,
		retryExec,
		logger,
	)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init search index: %w", err)
	}
	app.Index = index

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	embedder := ollama.NewEmbedder(ollamaClient, retryExec)

	tiers, err := buildGenerationTiers(cfg, ollamaClient, tierExec, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	for i, tier := range tiers {
		tiers[i] = instrumentedProvider{inner: tier, metrics: httpMetrics, service: service}
	}

	counter := buildTokenCounter(cfg, logger)
	coordinator := usecase.NewGenerationCoordinator(
		tiers,
		counter,
		cfg.MaxContextTokens,
		time.Duration(cfg.GenerationTimeoutSeconds)*time.Second,
		logger,
	)

	engines := make(map[string]*usecase.RetrievalEngine, len(profiles))
	for _, profile := range profiles {
		engines[profile.Name] = usecase.NewRetrievalEngine(
			profile.Name,
			index,
			embedder,
			usecase.RetrievalOptions{Overfetch: cfg.OverfetchFactor, RRFK: cfg.RRFK},
			logger,
		)
	}

	answerCache, cacheProbe := buildAnswerCache(cfg, logger, app)
	answerCache = instrumentedCache{inner: answerCache, metrics: httpMetrics, service: service}

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.AnswersSubject, natsqueue.Options{
		Executor: retryExec,
		Logger:   logger,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init answer queue: %w", err)
	}
	app.closeFns = append(app.closeFns, queue.Close)
	app.Queue = queue

	askUC := usecase.NewAskUseCase(
		primary,
		engines,
		coordinator,
		answerCache,
		queue,
		time.Duration(cfg.CacheTTLSeconds)*time.Second,
		logger,
	)
	app.AskService = askUC
	app.Searcher = askUC

	app.Probes = map[string]func(context.Context) error{
		"index":    index.Ping,
		"cache":    cacheProbe,
		"database": queryLog.Ping,
		"queue":    queue.Ping,
	}

	return app, nil
}

func (a *App) Close() {
	// Reverse order: consumers before the connections they use.
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
}

func buildGenerationTiers(
	cfg config.Config,
	ollamaClient *ollama.Client,
	executor *resilience.Executor,
	logger *slog.Logger,
) ([]ports.GenerationProvider, error) {
	tiers := make([]ports.GenerationProvider, 0, 3)
	for _, raw := range strings.Split(cfg.ProviderTiers, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
		case ollama.ProviderName:
			tiers = append(tiers, ollama.NewProvider(ollamaClient, executor))
		case gemini.ProviderName:
			if cfg.GeminiAPIKey == "" {
				logger.Warn("generation tier skipped, credentials missing", "provider", name)
				continue
			}
			tiers = append(tiers, gemini.New(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, executor))
		case openaicompat.ProviderName:
			if cfg.OpenAIAPIKey == "" {
				logger.Warn("generation tier skipped, credentials missing", "provider", name)
				continue
			}
			tiers = append(tiers, openaicompat.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, executor))
		default:
			return nil, fmt.Errorf("unknown generation provider %q in PROVIDER_TIERS", name)
		}
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no usable generation tiers in %q", cfg.ProviderTiers)
	}
	return tiers, nil
}

func buildTokenCounter(cfg config.Config, logger *slog.Logger) ports.TokenCounter {
	counter, err := tokenizer.New(cfg.TokenEncoding)
	if err != nil {
		logger.Warn("token encoding unavailable, using heuristic sizing",
			"encoding", cfg.TokenEncoding, "error", err)
		return nil
	}
	return counter
}

// buildAnswerCache picks Redis when an address is configured and the
// in-process LRU otherwise. The probe matches the chosen backend.
func buildAnswerCache(cfg config.Config, logger *slog.Logger, app *App) (ports.AnswerCache, func(context.Context) error) {
	if cfg.RedisAddr == "" {
		logger.Info("answer cache: in-process LRU", "max_entries", cfg.CacheMaxEntries)
		memory := cache.NewMemory(cfg.CacheMaxEntries)
		return memory, func(context.Context) error { return nil }
	}

	redisCache := cache.NewRedis(cfg.RedisAddr, logger)
	app.closeFns = append(app.closeFns, func() { _ = redisCache.Close() })
	logger.Info("answer cache: redis", "addr", cfg.RedisAddr)
	return redisCache, redisCache.Ping
}
