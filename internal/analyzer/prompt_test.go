package analyzer

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Go developer, 5 years", "Backend engineer: Go, Kubernetes")

	for _, want := range []string{
		"Go developer, 5 years",
		"Backend engineer: Go, Kubernetes",
		`"atsScore"`,
		`"matchedSkills"`,
		`"missingSkills"`,
		`"improvements"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt is missing %q", want)
		}
	}

	resumeAt := strings.Index(prompt, "Resume:")
	jdAt := strings.Index(prompt, "Job Description:")
	if resumeAt == -1 || jdAt == -1 || resumeAt > jdAt {
		t.Fatalf("expected resume section before job description section")
	}
	if strings.Contains(prompt, resumePlaceholder) || strings.Contains(prompt, jobDescriptionPlaceholder) {
		t.Fatal("placeholders must be replaced")
	}
}

func TestBuildPromptInsertsVerbatim(t *testing.T) {
	// Input that looks like a placeholder must not be expanded again.
	resume := "my notes: " + jobDescriptionPlaceholder + " {\"x\": 1} ```"
	prompt := BuildPrompt(resume, "JD text")

	if !strings.Contains(prompt, resume) {
		t.Fatalf("resume was not inserted verbatim:\n%s", prompt)
	}
	if strings.Count(prompt, "JD text") != 1 {
		t.Fatalf("job description must appear exactly once")
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	if BuildPrompt("a", "b") != BuildPrompt("a", "b") {
		t.Fatal("prompt must be deterministic")
	}
}
