package analyzer

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/ats-analyzer/internal/utils"
)

const defaultMaxLogLength = 200

// Analyzer scores a resume against a job description with a completion provider.
// It holds no per-request state and is safe for concurrent use.
type Analyzer struct {
	invoker   *Invoker
	logger    *zap.Logger
	maxLogLen int
}

func New(invoker *Invoker, logger *zap.Logger, maxLogLength int) *Analyzer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Analyzer{
		invoker:   invoker,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Analyze returns ErrInvalidRequest for missing input and never calls the
// provider in that case. Every other failure yields a degraded Verdict.
func (a *Analyzer) Analyze(ctx context.Context, resumeText, jobDescription string) (*Verdict, error) {
	req, err := NewRequest(resumeText, jobDescription)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(req.ResumeText, req.JobDescription)

	a.logger.Debug("analysis request",
		zap.Int("resume_length", utf8.RuneCountInString(resumeText)),
		zap.Int("job_description_length", utf8.RuneCountInString(jobDescription)),
		zap.Bool("resume_truncated", len(req.ResumeText) < len(resumeText)),
		zap.Bool("job_description_truncated", len(req.JobDescription) < len(jobDescription)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.Duration("timeout", a.invoker.Timeout()),
		zap.String("prompt_preview", utils.TruncateForLog(utils.Collapse(prompt), a.maxLogLen)),
	)

	started := time.Now()
	completion, err := a.invoker.Invoke(ctx, prompt)
	if err != nil {
		return a.degrade(err, zap.Duration("elapsed", time.Since(started))), nil
	}

	text, probe := Normalize(completion)

	a.logger.Debug("analysis response",
		zap.String("shape", probe),
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("response_length", utf8.RuneCountInString(text)),
		zap.String("response_preview", utils.TruncateForLog(utils.Collapse(text), a.maxLogLen)),
	)

	result, attempts, err := Coerce(text)
	if err != nil {
		fields := []zap.Field{zap.String("shape", probe)}
		for _, attempt := range attempts {
			if attempt.Err != nil {
				fields = append(fields, zap.NamedError(attempt.Stage+"_error", attempt.Err))
			}
		}
		var malformed *MalformedResponseError
		if errors.As(err, &malformed) {
			fields = append(fields, zap.String("response_snippet", malformed.Snippet))
		}
		return a.degrade(err, fields...), nil
	}

	if len(attempts) > 1 {
		a.logger.Debug("analysis response recovered from surrounding text",
			zap.String("stage", attempts[len(attempts)-1].Stage),
		)
	}

	return &Verdict{Result: result}, nil
}

func (a *Analyzer) degrade(err error, fields ...zap.Field) *Verdict {
	fields = append(fields, zap.Error(err), zap.String("kind", errorKind(err)))
	a.logger.Error("analysis degraded", fields...)
	return Fallback(err)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	default:
		return "unknown"
	}
}
