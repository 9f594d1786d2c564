package analyzer

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/ats-analyzer/internal/ai"
)

type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
	resp    ai.Completion
	err     error
	delay   time.Duration
}

func (r *recordingGenerator) Generate(ctx context.Context, prompt string) (ai.Completion, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, prompt)
	r.mu.Unlock()

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.resp, r.err
}

func (r *recordingGenerator) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prompts)
}

func newTestAnalyzer(gen ai.Generator, timeout time.Duration) (*Analyzer, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(NewInvoker(gen, timeout, 0), zap.New(core), 0), logs
}

func TestAnalyzeEndToEnd(t *testing.T) {
	gen := &recordingGenerator{
		resp: "```json\n{\"atsScore\": 72, \"matchedSkills\": [\"Go\"], \"missingSkills\": [\"Kubernetes\"], \"improvements\": [\"Add Kubernetes experience\"]}\n```",
	}
	a, _ := newTestAnalyzer(gen, time.Second)

	verdict, err := a.Analyze(context.Background(), "Go developer, 5 years", "Backend engineer: Go, Kubernetes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := ai.Result{
		ATSScore:      72,
		MatchedSkills: []string{"Go"},
		MissingSkills: []string{"Kubernetes"},
		Improvements:  []string{"Add Kubernetes experience"},
	}
	if !reflect.DeepEqual(verdict.Result, want) {
		t.Fatalf("expected %+v, got %+v", want, verdict.Result)
	}
	if verdict.Degraded || verdict.Error != "" {
		t.Fatalf("expected a clean verdict, got %+v", verdict)
	}
	if gen.calls() != 1 {
		t.Fatalf("expected one provider call, got %d", gen.calls())
	}
	if !strings.Contains(gen.prompts[0], "Go developer, 5 years") || !strings.Contains(gen.prompts[0], "Backend engineer: Go, Kubernetes") {
		t.Fatalf("prompt does not carry both inputs:\n%s", gen.prompts[0])
	}
}

func TestAnalyzeRecoversFromChatter(t *testing.T) {
	gen := &recordingGenerator{
		resp: `Sure! {"atsScore":80,"matchedSkills":["Go"],"missingSkills":["K8s"],"improvements":["Add metrics"]} Hope that helps.`,
	}
	a, logs := newTestAnalyzer(gen, time.Second)

	verdict, err := a.Analyze(context.Background(), "resume", "jd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Degraded || verdict.ATSScore != 80 {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
	if logs.FilterMessage("analysis response recovered from surrounding text").Len() != 1 {
		t.Fatal("expected recovery to be logged")
	}
}

func TestAnalyzeInvalidRequestSkipsProvider(t *testing.T) {
	gen := &recordingGenerator{resp: "{}"}
	a, _ := newTestAnalyzer(gen, time.Second)

	for _, in := range [][2]string{{"", "jd"}, {"resume", "   "}} {
		verdict, err := a.Analyze(context.Background(), in[0], in[1])
		if !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest, got %v", err)
		}
		if verdict != nil {
			t.Fatalf("expected no verdict, got %+v", verdict)
		}
	}
	if gen.calls() != 0 {
		t.Fatalf("expected no provider calls, got %d", gen.calls())
	}
}

func TestAnalyzeDegrades(t *testing.T) {
	tests := []struct {
		name      string
		gen       *recordingGenerator
		timeout   time.Duration
		wantKind  string
		wantError string
	}{
		{
			name:      "timeout",
			gen:       &recordingGenerator{resp: "{}", delay: time.Second},
			timeout:   30 * time.Millisecond,
			wantKind:  "timeout",
			wantError: "timed out",
		},
		{
			name:      "upstream",
			gen:       &recordingGenerator{err: errors.New("rate limited")},
			timeout:   time.Second,
			wantKind:  "upstream",
			wantError: "rate limited",
		},
		{
			name:      "malformed",
			gen:       &recordingGenerator{resp: "I cannot help with that."},
			timeout:   time.Second,
			wantKind:  "malformed_response",
			wantError: "malformed response",
		},
		{
			name:      "schema violation",
			gen:       &recordingGenerator{resp: `{"atsScore": 500, "matchedSkills": [], "missingSkills": [], "improvements": []}`},
			timeout:   time.Second,
			wantKind:  "malformed_response",
			wantError: "out of range",
		},
		{
			name:      "nil completion",
			gen:       &recordingGenerator{},
			timeout:   time.Second,
			wantKind:  "malformed_response",
			wantError: "malformed response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, logs := newTestAnalyzer(tt.gen, tt.timeout)

			start := time.Now()
			verdict, err := a.Analyze(context.Background(), "Go developer", "Go engineer")
			if err != nil {
				t.Fatalf("degraded analysis must not return an error: %v", err)
			}
			if time.Since(start) > tt.timeout+500*time.Millisecond {
				t.Fatalf("analysis settled too late: %s", time.Since(start))
			}

			if !verdict.Degraded || verdict.ATSScore != fallbackScore {
				t.Fatalf("expected fallback verdict, got %+v", verdict)
			}
			if !strings.Contains(verdict.Error, tt.wantError) {
				t.Fatalf("expected error containing %q, got %q", tt.wantError, verdict.Error)
			}
			if tt.gen.calls() != 1 {
				t.Fatalf("expected exactly one provider call, got %d", tt.gen.calls())
			}

			entries := logs.FilterMessage("analysis degraded").All()
			if len(entries) != 1 {
				t.Fatalf("expected one degraded log entry, got %d", len(entries))
			}
			if entries[0].Level != zapcore.ErrorLevel {
				t.Fatalf("expected error level, got %s", entries[0].Level)
			}
			if kind := entries[0].ContextMap()["kind"]; kind != tt.wantKind {
				t.Fatalf("expected kind %q, got %v", tt.wantKind, kind)
			}
		})
	}
}

func TestAnalyzeLogsMalformedSnippet(t *testing.T) {
	gen := &recordingGenerator{resp: "not json at all"}
	a, logs := newTestAnalyzer(gen, time.Second)

	if _, err := a.Analyze(context.Background(), "resume", "jd"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry := logs.FilterMessage("analysis degraded").All()[0]
	fields := entry.ContextMap()
	if fields["response_snippet"] != "not json at all" {
		t.Fatalf("expected snippet field, got %v", fields)
	}
	if _, ok := fields["strict_error"]; !ok {
		t.Fatalf("expected strict stage error field, got %v", fields)
	}
	if _, ok := fields["brace_span_error"]; !ok {
		t.Fatalf("expected brace span stage error field, got %v", fields)
	}
}

func TestAnalyzeTruncatesInputs(t *testing.T) {
	gen := &recordingGenerator{resp: `{"atsScore": 1, "matchedSkills": [], "missingSkills": [], "improvements": []}`}
	a, logs := newTestAnalyzer(gen, time.Second)

	resume := strings.Repeat("ж", MaxResumeRunes+100)
	jd := strings.Repeat("ю", MaxJobDescriptionRunes+100)
	if _, err := a.Analyze(context.Background(), resume, jd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := gen.prompts[0]
	if n := strings.Count(prompt, "ж"); n != MaxResumeRunes {
		t.Fatalf("expected %d resume runes in prompt, got %d", MaxResumeRunes, n)
	}
	if n := strings.Count(prompt, "ю"); n != MaxJobDescriptionRunes {
		t.Fatalf("expected %d job description runes in prompt, got %d", MaxJobDescriptionRunes, n)
	}

	entry := logs.FilterMessage("analysis request").All()[0]
	if entry.ContextMap()["resume_truncated"] != true {
		t.Fatalf("expected truncation to be logged, got %v", entry.ContextMap())
	}
	if entry.ContextMap()["timeout"] != time.Second {
		t.Fatalf("expected call timeout to be logged, got %v", entry.ContextMap()["timeout"])
	}
}

func TestAnalyzeConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	gen := generatorFunc(func(_ context.Context, prompt string) (ai.Completion, error) {
		calls.Add(1)
		return `{"atsScore": 60, "matchedSkills": ["Go"], "missingSkills": [], "improvements": []}`, nil
	})
	a := New(NewInvoker(gen, time.Second, 4), zap.NewNop(), 0)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			verdict, err := a.Analyze(context.Background(), "resume", "jd")
			if err != nil {
				errs <- err
				return
			}
			if verdict.Degraded || verdict.ATSScore != 60 {
				errs <- errors.New("unexpected verdict")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
	if calls.Load() != n {
		t.Fatalf("expected %d provider calls, got %d", n, calls.Load())
	}
}
