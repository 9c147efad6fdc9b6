package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/qna-labs/qna-service/internal/adapters/docs"
	"github.com/qna-labs/qna-service/internal/adapters/finance"
	httpadapter "github.com/qna-labs/qna-service/internal/adapters/http"
	"github.com/qna-labs/qna-service/internal/adapters/llm"
	"github.com/qna-labs/qna-service/internal/adapters/rest"
	"github.com/qna-labs/qna-service/internal/app/qna"
	"github.com/qna-labs/qna-service/internal/app/session"
	"github.com/qna-labs/qna-service/internal/config"
	"github.com/qna-labs/qna-service/internal/domain"
	"github.com/qna-labs/qna-service/internal/observability"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	observability.Init(cfg.LogLevel)
	log := observability.Logger()

	prompt := loadDefaultPrompt(ctx, cfg)

	factory, err := buildGatewayFactory(ctx, cfg)
	if err != nil {
		log.Error("error initializing model gateway", "gateway", cfg.Gateway, "error", err)
		os.Exit(1)
	}

	registry := session.NewRegistry()
	jobs := session.NewJobStore()
	restClient := rest.NewClient(time.Duration(cfg.RestTimeoutSeconds) * time.Second)

	handler := httpadapter.NewServer(httpadapter.ServerConfig{
		Registry:      registry,
		Jobs:          jobs,
		Rest:          restClient,
		Factory:       factory,
		DefaultPrompt: prompt,
		DefaultModel:  cfg.DefaultModel(),
		Version:       cfg.APIVersion,
		MountPrefix:   cfg.MountPrefix,
		CORSOrigins:   cfg.CORSOrigins,
	})

	addr := cfg.Host + ":" + cfg.Port
	log.Info("qna-api listening", "addr", addr, "gateway", cfg.Gateway, "mount_prefix", cfg.MountPrefix)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// loadDefaultPrompt reads the deployment prompt file, falling back to the
// built-in prompt, and appends the document directory text and the market
// data block when either is configured.
func loadDefaultPrompt(ctx context.Context, cfg *config.Config) string {
	log := observability.Logger()

	prompt := qna.DefaultPrompt
	if cfg.DefaultPromptPath != "" {
		if raw, err := os.ReadFile(cfg.DefaultPromptPath); err == nil {
			prompt = string(raw)
		} else {
			log.Warn("default prompt file not readable, using built-in prompt",
				"path", cfg.DefaultPromptPath, "error", err)
		}
	}

	if cfg.DocumentsPath != "" {
		documents, err := docs.ReadDirectory(cfg.DocumentsPath)
		if err != nil {
			log.Error("error loading documents", "path", cfg.DocumentsPath, "error", err)
			os.Exit(1)
		}
		prompt += docs.RenderDocuments(documents)

		if digest, err := docs.HashDirectory(cfg.DocumentsPath); err == nil {
			log.Info("documents loaded", "count", len(documents), "digest", digest)
		}
	}

	if len(cfg.FinanceTickers) > 0 {
		client := finance.NewClient(time.Duration(cfg.RestTimeoutSeconds) * time.Second)
		data, err := client.FetchStockData(ctx, cfg.FinanceTickers, cfg.FinancePeriod)
		if err != nil {
			log.Error("error fetching stock data", "tickers", cfg.FinanceTickers, "error", err)
			os.Exit(1)
		}
		prompt += "\n\n" + data
		log.Info("stock data loaded", "tickers", cfg.FinanceTickers, "period", cfg.FinancePeriod)
	}

	return prompt
}

// buildGatewayFactory wires the configured backend. The OpenAI-compatible
// backend builds one client per session so callers can override key, base
// URL and timeout on init; the others share one client and ignore the
// overrides.
func buildGatewayFactory(ctx context.Context, cfg *config.Config) (httpadapter.GatewayFactory, error) {
	log := observability.Logger()

	switch cfg.Gateway {
	case "mock":
		log.Info("using mock model gateway")
		shared := llm.NewMockGateway()
		return func(httpadapter.GatewayOverrides) (domain.ModelGateway, error) {
			return shared, nil
		}, nil

	case "gemini":
		shared, err := llm.NewGeminiClient(ctx, cfg.GCPProjectID, cfg.GCPLocation)
		if err != nil {
			return nil, err
		}
		return func(httpadapter.GatewayOverrides) (domain.ModelGateway, error) {
			return shared, nil
		}, nil

	case "anthropic":
		shared := llm.NewAnthropicClient()
		return func(httpadapter.GatewayOverrides) (domain.ModelGateway, error) {
			return shared, nil
		}, nil

	default:
		return func(o httpadapter.GatewayOverrides) (domain.ModelGateway, error) {
			apiKey := o.APIKey
			if apiKey == "" {
				apiKey = cfg.OpenAIAPIKey
			}
			baseURL := o.BaseURL
			if baseURL == "" {
				baseURL = cfg.OpenAIBaseURL
			}
			return llm.NewOpenAIClient(llm.OpenAIConfig{
				APIKey:     apiKey,
				BaseURL:    baseURL,
				Timeout:    o.Timeout,
				MaxRetries: o.MaxRetries,
			})
		}, nil
	}
}
