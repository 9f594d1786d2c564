package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeModels struct {
	mu sync.Mutex

	generateResp *genai.GenerateContentResponse
	generateErr  error
	prompts      []string
	models       []string

	getModel *genai.Model
	getErr   error
	gotNames []string

	listPage genai.Page[genai.Model]
	listErr  error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, model)
	for _, content := range contents {
		for _, part := range content.Parts {
			f.prompts = append(f.prompts, part.Text)
		}
	}
	return f.generateResp, f.generateErr
}

func (f *fakeModels) Get(_ context.Context, model string, _ *genai.GetModelConfig) (*genai.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotNames = append(f.gotNames, model)
	return f.getModel, f.getErr
}

func (f *fakeModels) List(context.Context, *genai.ListModelsConfig) (genai.Page[genai.Model], error) {
	return f.listPage, f.listErr
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGeneratorGenerateReturnsRawResponse(t *testing.T) {
	models := &fakeModels{generateResp: textResponse(`{"atsScore": 10}`)}
	g := newGenerator(models, "gemini-test", zap.NewNop())

	out, err := g.Generate(context.Background(), "analyze this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, ok := out.(*genai.GenerateContentResponse)
	if !ok {
		t.Fatalf("expected raw genai response, got %T", out)
	}
	if resp.Text() != `{"atsScore": 10}` {
		t.Fatalf("unexpected response text: %q", resp.Text())
	}

	if len(models.models) != 1 || models.models[0] != "gemini-test" {
		t.Fatalf("unexpected model calls: %v", models.models)
	}
	if len(models.prompts) != 1 || models.prompts[0] != "analyze this" {
		t.Fatalf("unexpected prompts: %v", models.prompts)
	}
}

func TestGeneratorGenerateWrapsAPIError(t *testing.T) {
	models := &fakeModels{generateErr: genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted",
	}}
	g := newGenerator(models, "gemini-test", zap.NewNop())

	_, err := g.Generate(context.Background(), "prompt")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("expected provider message in error, got %v", err)
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error to stay in chain: %v", err)
	}
	if len(models.models) != 1 {
		t.Fatalf("expected a single call, got %d", len(models.models))
	}
}

func TestGeneratorGenerateRejectsEmptyPrompt(t *testing.T) {
	models := &fakeModels{generateResp: textResponse("ok")}
	g := newGenerator(models, "", zap.NewNop())

	if _, err := g.Generate(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if len(models.models) != 0 {
		t.Fatalf("expected no provider calls, got %d", len(models.models))
	}
	if g.Model() != defaultModel {
		t.Fatalf("expected default model, got %q", g.Model())
	}
}

func TestGeneratorCheckModelDefaultsToConfigured(t *testing.T) {
	models := &fakeModels{getModel: &genai.Model{
		Name:             "models/gemini-test",
		DisplayName:      "Gemini Test",
		InputTokenLimit:  1000,
		SupportedActions: []string{"generateContent"},
	}}
	g := newGenerator(models, "gemini-test", zap.NewNop())

	info, err := g.CheckModel(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info.Name != "gemini-test" {
		t.Fatalf("expected prefix to be trimmed, got %q", info.Name)
	}
	if info.DisplayName != "Gemini Test" || info.InputTokenLimit != 1000 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if len(models.gotNames) != 1 || models.gotNames[0] != "gemini-test" {
		t.Fatalf("unexpected probed names: %v", models.gotNames)
	}
}

func TestGeneratorCheckModelError(t *testing.T) {
	models := &fakeModels{getErr: genai.APIError{Code: http.StatusNotFound, Status: "NOT_FOUND"}}
	g := newGenerator(models, "gemini-test", zap.NewNop())

	_, err := g.CheckModel(context.Background(), "missing-model")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "missing-model") || !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGeneratorListModels(t *testing.T) {
	models := &fakeModels{listPage: genai.Page[genai.Model]{
		Items: []*genai.Model{
			{Name: "models/gemini-a"},
			nil,
			{Name: "models/gemini-b", Version: "001"},
		},
	}}
	g := newGenerator(models, "gemini-a", zap.NewNop())

	list, err := g.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(list) != 2 {
		t.Fatalf("expected 2 models, got %d", len(list))
	}
	if list[0].Name != "gemini-a" || list[1].Name != "gemini-b" || list[1].Version != "001" {
		t.Fatalf("unexpected models: %+v", list)
	}
}

func TestNilGenerator(t *testing.T) {
	var g *Generator

	if _, err := g.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error from nil generator")
	}
	if g.Model() != "" {
		t.Fatalf("expected empty model name")
	}
}
