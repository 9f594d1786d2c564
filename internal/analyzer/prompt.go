package analyzer

import (
	_ "embed"
	"strings"
)

//go:embed prompt.md
var promptTemplate string

const (
	resumePlaceholder         = "{{RESUME_TEXT}}"
	jobDescriptionPlaceholder = "{{JOB_DESCRIPTION}}"
)

// BuildPrompt renders the analysis instructions around the resume and job description.
// Inputs are inserted verbatim in a single pass.
func BuildPrompt(resumeText, jobDescription string) string {
	return strings.NewReplacer(
		resumePlaceholder, resumeText,
		jobDescriptionPlaceholder, jobDescription,
	).Replace(promptTemplate)
}
