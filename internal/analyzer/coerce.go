package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/ats-analyzer/internal/ai"
)

const (
	stageStrict    = "strict"
	stageBraceSpan = "brace_span"

	minScore = 0
	maxScore = 100
)

var listFields = []string{"matchedSkills", "missingSkills", "improvements"}

var errNoBraceSpan = errors.New("no brace-delimited span found")

// Attempt records a single parse stage so both stages can be logged.
type Attempt struct {
	Stage     string
	Candidate string
	Err       error
}

// Coerce parses normalized provider text into a Result. The whole text is tried
// first, then the span from the first '{' to the last '}'. The returned attempts
// describe every stage that ran.
func Coerce(text string) (ai.Result, []Attempt, error) {
	attempts := make([]Attempt, 0, 2)

	result, strictErr := decodeResult(text)
	attempts = append(attempts, Attempt{Stage: stageStrict, Candidate: text, Err: strictErr})
	if strictErr == nil {
		return result, attempts, nil
	}

	span, ok := braceSpan(text)
	if !ok {
		attempts = append(attempts, Attempt{Stage: stageBraceSpan, Err: errNoBraceSpan})
		return ai.Result{}, attempts, newMalformedResponseError(strictErr, text)
	}

	result, spanErr := decodeResult(span)
	attempts = append(attempts, Attempt{Stage: stageBraceSpan, Candidate: span, Err: spanErr})
	if spanErr == nil {
		return result, attempts, nil
	}

	return ai.Result{}, attempts, newMalformedResponseError(strictErr, text)
}

// braceSpan returns the greedy substring from the first '{' to the last '}'.
func braceSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func decodeResult(candidate string) (ai.Result, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return ai.Result{}, fmt.Errorf("parse json: %w", err)
	}
	if raw == nil {
		return ai.Result{}, errors.New("parse json: expected an object")
	}

	if err := validateShape(raw); err != nil {
		return ai.Result{}, err
	}

	var result ai.Result
	if err := mapstructure.Decode(raw, &result); err != nil {
		return ai.Result{}, fmt.Errorf("decode result: %w", err)
	}

	for _, list := range []*[]string{&result.MatchedSkills, &result.MissingSkills, &result.Improvements} {
		if *list == nil {
			*list = []string{}
		}
	}

	return result, nil
}

// validateShape checks field presence and types and normalizes the score to an integer.
func validateShape(raw map[string]any) error {
	score, ok := raw["atsScore"].(float64)
	if !ok {
		return errors.New("schema: atsScore must be a number")
	}
	if math.IsNaN(score) || score < minScore || score > maxScore {
		return fmt.Errorf("schema: atsScore %v is out of range %d-%d", score, minScore, maxScore)
	}
	raw["atsScore"] = int(math.Round(score))

	for _, field := range listFields {
		items, ok := raw[field].([]any)
		if !ok {
			return fmt.Errorf("schema: %s must be an array", field)
		}
		for i, item := range items {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("schema: %s[%d] must be a string", field, i)
			}
		}
	}

	return nil
}
