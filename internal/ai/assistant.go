package ai

import (
	"context"
	"errors"
	"strings"
)

// Result is the structured verdict produced for a resume and job description pair.
type Result struct {
	ATSScore      int      `json:"atsScore" mapstructure:"atsScore"`
	MatchedSkills []string `json:"matchedSkills" mapstructure:"matchedSkills"`
	MissingSkills []string `json:"missingSkills" mapstructure:"missingSkills"`
	Improvements  []string `json:"improvements" mapstructure:"improvements"`
}

// Completion is whatever a provider hands back for a prompt. Its shape is not
// guaranteed and must be normalized before use.
type Completion any

// Generator sends a single prompt to a text-completion provider.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Completion, error)
}

// ModelInfo describes a provider model for diagnostics.
type ModelInfo struct {
	Name             string   `json:"name"`
	DisplayName      string   `json:"displayName,omitempty"`
	Description      string   `json:"description,omitempty"`
	Version          string   `json:"version,omitempty"`
	InputTokenLimit  int32    `json:"inputTokenLimit,omitempty"`
	OutputTokenLimit int32    `json:"outputTokenLimit,omitempty"`
	SupportedActions []string `json:"supportedActions,omitempty"`
}

// ModelProber exposes diagnostic calls against the provider.
type ModelProber interface {
	Model() string
	CheckModel(ctx context.Context, name string) (*ModelInfo, error)
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// Unavailable is used in place of a real provider when it could not be
// configured, e.g. the API key is missing. Every call fails with Reason.
type Unavailable struct {
	Reason    string
	ModelName string
}

func (u *Unavailable) err() error {
	reason := strings.TrimSpace(u.Reason)
	if reason == "" {
		reason = "ai provider is not configured"
	}
	return errors.New(reason)
}

func (u *Unavailable) Generate(context.Context, string) (Completion, error) {
	return nil, u.err()
}

func (u *Unavailable) Model() string {
	return u.ModelName
}

func (u *Unavailable) CheckModel(context.Context, string) (*ModelInfo, error) {
	return nil, u.err()
}

func (u *Unavailable) ListModels(context.Context) ([]ModelInfo, error) {
	return nil, u.err()
}
