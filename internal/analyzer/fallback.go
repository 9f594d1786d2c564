package analyzer

import (
	"strings"

	"github.com/spigell/ats-analyzer/internal/ai"
)

const (
	fallbackScore        = 50
	defaultFailureReason = "analysis failed"
)

// Verdict is the outcome of an analysis. It always carries a well-formed Result;
// Error is set only for degraded verdicts.
type Verdict struct {
	ai.Result
	Error    string `json:"error,omitempty"`
	Degraded bool   `json:"-"`
}

// Fallback builds the fixed degraded verdict for a pipeline failure.
func Fallback(err error) *Verdict {
	reason := defaultFailureReason
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			reason = msg
		}
	}

	return &Verdict{
		Result: ai.Result{
			ATSScore:      fallbackScore,
			MatchedSkills: []string{"Basic resume structure detected"},
			MissingSkills: []string{"Unable to fully analyze (AI timeout)"},
			Improvements:  []string{"Retry analysis", "Use shorter resume", "Ensure text-based PDF"},
		},
		Error:    reason,
		Degraded: true,
	}
}
