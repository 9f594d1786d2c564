package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/ats-analyzer/internal/ai"
)

const (
	defaultModel    = "gemini-2.5-flash"
	listPageSize    = 100
	maxListedPages  = 10
	modelNamePrefix = "models/"
)

// modelService is the subset of genai.Models used by the Generator.
type modelService interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
	List(ctx context.Context, config *genai.ListModelsConfig) (genai.Page[genai.Model], error)
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models    modelService
	modelName string
	logger    *zap.Logger
}

var (
	_ ai.Generator   = (*Generator)(nil)
	_ ai.ModelProber = (*Generator)(nil)
)

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, model, logger), nil
}

func newGenerator(models modelService, model string, logger *zap.Logger) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{models: models, modelName: model, logger: logger}
}

// Generate sends the prompt to Gemini once and returns the raw response.
// The response is left untouched; callers normalize it.
func (g *Generator) Generate(ctx context.Context, prompt string) (ai.Completion, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini generator is not initialized")
	}

	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt must not be empty")
	}

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", describeAPIError(err))
	}
	if resp == nil {
		return nil, errors.New("gemini api returned empty response")
	}

	if resp.UsageMetadata != nil {
		g.logger.Debug("gemini usage",
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("candidates_tokens", resp.UsageMetadata.CandidatesTokenCount),
			zap.Int32("total_tokens", resp.UsageMetadata.TotalTokenCount),
		)
	}

	return resp, nil
}

// CheckModel fetches metadata for the named model, defaulting to the configured one.
func (g *Generator) CheckModel(ctx context.Context, name string) (*ai.ModelInfo, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini generator is not initialized")
	}

	if name = strings.TrimSpace(name); name == "" {
		name = g.modelName
	}

	model, err := g.models.Get(ctx, name, nil)
	if err != nil {
		return nil, fmt.Errorf("get model %s: %w", name, describeAPIError(err))
	}
	if model == nil {
		return nil, fmt.Errorf("get model %s: empty response", name)
	}

	info := toModelInfo(model)
	return &info, nil
}

// ListModels returns every model visible to the configured credential.
func (g *Generator) ListModels(ctx context.Context) ([]ai.ModelInfo, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini generator is not initialized")
	}

	page, err := g.models.List(ctx, &genai.ListModelsConfig{PageSize: listPageSize})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", describeAPIError(err))
	}

	var out []ai.ModelInfo
	for pages := 1; ; pages++ {
		for _, model := range page.Items {
			if model == nil {
				continue
			}
			out = append(out, toModelInfo(model))
		}

		if page.NextPageToken == "" || pages >= maxListedPages {
			break
		}

		page, err = page.Next(ctx)
		if errors.Is(err, genai.ErrPageDone) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list models: %w", describeAPIError(err))
		}
	}

	return out, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func toModelInfo(m *genai.Model) ai.ModelInfo {
	return ai.ModelInfo{
		Name:             strings.TrimPrefix(m.Name, modelNamePrefix),
		DisplayName:      m.DisplayName,
		Description:      m.Description,
		Version:          m.Version,
		InputTokenLimit:  m.InputTokenLimit,
		OutputTokenLimit: m.OutputTokenLimit,
		SupportedActions: m.SupportedActions,
	}
}

// describeAPIError turns genai API errors into a readable message while
// keeping the original error in the chain.
func describeAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = apiErr.Status
		}
		return fmt.Errorf("gemini api error %d: %s: %w", apiErr.Code, msg, err)
	}
	return err
}
