package analyzer

import "strings"

const (
	// MaxResumeRunes bounds the resume text placed into the prompt.
	MaxResumeRunes = 4000
	// MaxJobDescriptionRunes bounds the job description placed into the prompt.
	MaxJobDescriptionRunes = 3000
)

// Request holds validated, truncated inputs for a single analysis.
type Request struct {
	ResumeText     string
	JobDescription string
}

// NewRequest validates both inputs and truncates them silently to their limits.
func NewRequest(resumeText, jobDescription string) (Request, error) {
	if strings.TrimSpace(resumeText) == "" {
		return Request{}, invalidRequest("resumeText")
	}
	if strings.TrimSpace(jobDescription) == "" {
		return Request{}, invalidRequest("jobDescription")
	}

	return Request{
		ResumeText:     truncateRunes(resumeText, MaxResumeRunes),
		JobDescription: truncateRunes(jobDescription, MaxJobDescriptionRunes),
	}, nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
