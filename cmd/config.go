package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ats-analyzer/internal/analyzer"
	"github.com/spigell/ats-analyzer/internal/server"
)

const (
	providerGemini     = "gemini"
	defaultGeminiModel = "gemini-2.5-flash"
	defaultPort        = 5000
)

type Config struct {
	Server *ServerConfig `mapstructure:"server"`
	AI     *AIConfig     `mapstructure:"ai"`
}

type ServerConfig struct {
	Port             int      `mapstructure:"port"`
	CORSAllowOrigins []string `mapstructure:"cors-allow-origins"`
	MaxUploadBytes   int64    `mapstructure:"max-upload-bytes"`
}

type AIConfig struct {
	Provider           string        `mapstructure:"provider"`
	TimeoutMS          int           `mapstructure:"timeout-ms"`
	MaxConcurrentCalls int           `mapstructure:"max-concurrent-calls"`
	MaxLogLength       int           `mapstructure:"max-log-length"`
	Gemini             *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey          string   `mapstructure:"api-key"`
	APIKeyFile      string   `mapstructure:"api-key-file"`
	Model           string   `mapstructure:"model"`
	CandidateModels []string `mapstructure:"candidate-models"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"ai.gemini.api-key":         "GEMINI_API_KEY",
	"ai.gemini.api-key-file":    "GEMINI_API_KEY_FILE",
	"ai.gemini.model":           "GEMINI_MODEL",
	"ai.timeout-ms":             "AI_TIMEOUT_MS",
	"server.port":               "PORT",
	"server.cors-allow-origins": "CORS_ALLOW_ORIGINS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.cors-allow-origins", []string{"*"})
	v.SetDefault("server.max-upload-bytes", server.DefaultMaxUploadBytes)
	v.SetDefault("ai.provider", providerGemini)
	v.SetDefault("ai.timeout-ms", int(analyzer.DefaultTimeout.Milliseconds()))
	v.SetDefault("ai.max-concurrent-calls", 16)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.gemini.model", defaultGeminiModel)
	v.SetDefault("ai.gemini.candidate-models", []string{defaultGeminiModel, "gemini-2.5-pro", "gemini-2.0-flash"})
}

func bindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s environment variable: %w", env, err)
		}
	}
	return nil
}

func getConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}

	return config, nil
}

type severity string

const (
	severityWarning severity = "warning"
	severityError   severity = "error"
)

// Diagnostic is a single finding from config validation.
type Diagnostic struct {
	Severity severity
	Key      string
	Message  string
}

// validateConfig checks the loaded config once at startup. Errors make the
// config unusable; warnings describe degraded but runnable setups.
func validateConfig(config *Config) []Diagnostic {
	var diags []Diagnostic
	add := func(s severity, key, format string, args ...any) {
		diags = append(diags, Diagnostic{Severity: s, Key: key, Message: fmt.Sprintf(format, args...)})
	}

	if p := config.Server.Port; p <= 0 || p > 65535 {
		add(severityError, "server.port", "port %d is out of range 1-65535", p)
	}
	if config.Server.MaxUploadBytes <= 0 {
		add(severityError, "server.max-upload-bytes", "must be positive, got %d", config.Server.MaxUploadBytes)
	}
	if len(config.Server.CORSAllowOrigins) == 0 {
		add(severityWarning, "server.cors-allow-origins", "no origins configured, browsers will reject cross-origin calls")
	}

	if provider := strings.ToLower(strings.TrimSpace(config.AI.Provider)); provider != "" && provider != providerGemini {
		add(severityError, "ai.provider", "unsupported ai provider %q", config.AI.Provider)
	}
	if config.AI.TimeoutMS <= 0 {
		add(severityError, "ai.timeout-ms", "must be positive, got %d", config.AI.TimeoutMS)
	}
	if config.AI.MaxConcurrentCalls < 0 {
		add(severityError, "ai.max-concurrent-calls", "must not be negative, got %d", config.AI.MaxConcurrentCalls)
	}
	if config.AI.MaxLogLength <= 0 {
		add(severityWarning, "ai.max-log-length", "not positive, the default will be used")
	}

	gemini := config.AI.Gemini
	if strings.TrimSpace(gemini.APIKey) == "" && strings.TrimSpace(gemini.APIKeyFile) == "" {
		add(severityWarning, "ai.gemini.api-key", "no api key configured (set GEMINI_API_KEY or GEMINI_API_KEY_FILE), every analysis will return the fallback result")
	}
	if strings.TrimSpace(gemini.Model) == "" {
		add(severityWarning, "ai.gemini.model", "no model configured, %s will be used", defaultGeminiModel)
	}

	return diags
}

// logDiagnostics reports every finding and returns true when any is an error.
func logDiagnostics(logger *zap.Logger, diags []Diagnostic) bool {
	failed := false
	for _, d := range diags {
		fields := []zap.Field{zap.String("key", d.Key), zap.String("problem", d.Message)}
		if d.Severity == severityError {
			failed = true
			logger.Error("invalid configuration", fields...)
			continue
		}
		logger.Warn("configuration warning", fields...)
	}
	return failed
}
