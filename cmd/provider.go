package cmd

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ats-analyzer/internal/ai"
	"github.com/spigell/ats-analyzer/internal/ai/gemini"
	"github.com/spigell/ats-analyzer/internal/analyzer"
	"github.com/spigell/ats-analyzer/internal/logger"
	"github.com/spigell/ats-analyzer/internal/secrets"
)

// provider is what the commands need from a completion backend.
type provider interface {
	ai.Generator
	ai.ModelProber
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

// mustConfig loads and validates the config, exiting on any error diagnostic.
func mustConfig(l *zap.Logger) *Config {
	config, err := getConfig(viper.GetViper())
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}

	if logDiagnostics(l, validateConfig(config)) {
		l.Fatal("configuration is invalid", zap.String("hint", "fix the keys reported above"))
	}

	return config
}

// newProvider falls back to ai.Unavailable when no api key is configured so the
// service can still start and answer with degraded results.
func newProvider(ctx context.Context, config *AIConfig, l *zap.Logger) (provider, error) {
	model := strings.TrimSpace(config.Gemini.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.Gemini.APIKey,
		File:  config.Gemini.APIKeyFile,
		Env:   envBindings["ai.gemini.api-key"],
	})
	if errors.Is(err, secrets.ErrNotConfigured) {
		l.Warn("ai provider is unavailable, analyses will degrade",
			zap.String(logger.FieldProvider, providerGemini),
			zap.String(logger.FieldModel, model),
			zap.Error(err),
		)
		return &ai.Unavailable{Reason: err.Error(), ModelName: model}, nil
	}
	if err != nil {
		return nil, err
	}

	g, err := gemini.NewGenerator(ctx, apiKey, model, logger.WithProvider(l, providerGemini, model))
	if err != nil {
		return nil, err
	}
	return g, nil
}

func newAnalyzer(config *AIConfig, p provider, l *zap.Logger) *analyzer.Analyzer {
	timeout := time.Duration(config.TimeoutMS) * time.Millisecond
	invoker := analyzer.NewInvoker(p, timeout, config.MaxConcurrentCalls)

	return analyzer.New(invoker, logger.WithProvider(l, providerGemini, p.Model()), config.MaxLogLength)
}
