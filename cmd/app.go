package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"conference-assistant/handler"
	"conference-assistant/internal/audio"
	"conference-assistant/internal/chunker"
	"conference-assistant/internal/config"
	"conference-assistant/internal/embedding"
	"conference-assistant/internal/extract"
	"conference-assistant/internal/integrations/openai"
	"conference-assistant/internal/integrations/paramstore"
	"conference-assistant/internal/integrations/translate"
	"conference-assistant/internal/repository"
	"conference-assistant/internal/resilience"
	"conference-assistant/internal/usecase"
	"conference-assistant/internal/vectorindex"
)

const tokenParameter = "open-ai-token"

type closableIndex interface {
	usecase.VectorIndex
	Close() error
}

// app holds the wired object graph.
type app struct {
	handler     *handler.Handler
	conferences *usecase.ConferenceService
	index       closableIndex
}

func (a *app) Close() error {
	if a.index == nil {
		return nil
	}
	return a.index.Close()
}

func buildApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	aws, err := loadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}

	policy := resilience.New(resilience.Config{
		MaxRetries:        cfg.Resilience.MaxRetries,
		RequestsPerSecond: cfg.Resilience.RequestsPerSecond,
		Burst:             cfg.Resilience.Burst,
		Timeout:           cfg.Resilience.Timeout(),
	})

	llm, err := newOpenAIClient(cfg, aws, policy)
	if err != nil {
		return nil, err
	}

	var embedder vectorindex.Embedder = embedding.NewHashing(cfg.Embedder.Dimension)
	if cfg.Embedder.Type == "openai" {
		embedder = llm
	}
	index, err := newIndex(ctx, cfg.VectorStore, embedder)
	if err != nil {
		return nil, err
	}
	a := &app{index: index}

	store, err := newConferenceStore(cfg.ConferenceStore, aws)
	if err != nil {
		a.Close()
		return nil, err
	}

	splitter, err := chunker.New(chunker.WithChunkSize(cfg.Chunker.ChunkSize), chunker.WithOverlap(cfg.Chunker.Overlap))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("chunker: %w", err)
	}
	runner := extract.ExecRunner{}
	extractor := extract.New(
		extract.WithRunner(runner),
		extract.WithPDFToText(cfg.Tools.PDFToText),
		extract.WithTesseract(cfg.Tools.Tesseract),
	)
	if dir := cfg.Storage.TempDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			a.Close()
			return nil, fmt.Errorf("create audio temp dir: %w", err)
		}
	}
	converter, err := audio.NewConverter(runner,
		audio.WithFFmpeg(cfg.Tools.FFmpeg),
		audio.WithTempDir(cfg.Storage.TempDir),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	translator := translate.NewClient(
		translate.WithHTTPClient(&http.Client{Timeout: cfg.Translate.Timeout()}),
		translate.WithBaseURL(cfg.Translate.URL),
		translate.WithAPIKey(cfg.Translate.APIKey),
		translate.WithPolicy(policy),
	)

	docs, err := usecase.NewDocumentService(extractor, splitter, index, cfg.Storage.UploadDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	queries, err := usecase.NewQueryService(index, llm, translator, cfg.OpenAI.ChatModel)
	if err != nil {
		a.Close()
		return nil, err
	}
	conferences, err := usecase.NewConferenceService(usecase.ConferenceDeps{
		Store:         store,
		Converter:     converter,
		Transcriber:   llm,
		Index:         index,
		Translator:    translator,
		RecordingsDir: cfg.Storage.RecordingsDir,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	h, err := handler.NewHandler(docs, queries, conferences)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.handler = h
	a.conferences = conferences
	return a, nil
}

type awsClients struct {
	ssm    *awsssm.Client
	dynamo *awsdynamodb.Client
}

func loadAWS(ctx context.Context, cfg *config.AppConfig) (*awsClients, error) {
	if !cfg.UsesAWS() {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &awsClients{
		ssm:    awsssm.NewFromConfig(awsCfg),
		dynamo: awsdynamodb.NewFromConfig(awsCfg),
	}, nil
}

func newOpenAIClient(cfg *config.AppConfig, aws *awsClients, policy *resilience.Policy) (*openai.Client, error) {
	var tokens openai.TokenSource = paramstore.EnvToken(cfg.OpenAI.APIKeyEnv)
	if cfg.OpenAI.SSMPrefix != "" {
		params, err := paramstore.New(aws.ssm, cfg.OpenAI.SSMPrefix)
		if err != nil {
			return nil, err
		}
		ts, err := paramstore.NewTokenSource(params, tokenParameter)
		if err != nil {
			return nil, err
		}
		tokens = ts
		slog.Info("openai api key resolved from parameter store", "prefix", cfg.OpenAI.SSMPrefix)
	}
	return openai.NewClient(tokens,
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.OpenAI.Timeout()}),
		openai.WithPolicy(policy),
		openai.WithEmbeddingModel(cfg.Embedder.Model),
		openai.WithTranscriptionModel(cfg.OpenAI.TranscriptionModel),
	)
}

func newIndex(ctx context.Context, cfg config.VectorStoreConfig, e vectorindex.Embedder) (closableIndex, error) {
	switch cfg.Type {
	case "memory":
		return vectorindex.NewMemory(e)
	case "sqlite":
		return vectorindex.NewSQLite(ctx, cfg.SQLitePath, e)
	case "postgres":
		return vectorindex.NewPostgres(ctx, cfg.PostgresDSN, e)
	}
	return nil, fmt.Errorf("unknown vector store type %q", cfg.Type)
}

func newConferenceStore(cfg config.ConferenceStoreConfig, aws *awsClients) (usecase.ConferenceStore, error) {
	switch cfg.Type {
	case "memory":
		return repository.NewMemory(), nil
	case "file":
		return repository.OpenFile(cfg.Path)
	case "dynamodb":
		if aws == nil {
			return nil, errors.New("dynamodb conference store requires AWS config")
		}
		return repository.NewDynamo(aws.dynamo, cfg.Table)
	}
	return nil, fmt.Errorf("unknown conference store type %q", cfg.Type)
}
