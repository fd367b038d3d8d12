package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/langflow-ai/flowbuild/pkg/domain"
)

// renderer prints build progress to stdout. Hook callbacks arrive
// serially per attempt, but the interrupt path may print concurrently,
// hence the mutex.
type renderer struct {
	mu      sync.Mutex
	profile termenv.Profile
}

func newRenderer(noColor bool) *renderer {
	profile := termenv.ColorProfile()
	if noColor {
		profile = termenv.Ascii
	}
	return &renderer{profile: profile}
}

func (r *renderer) colored(s, hex string) string {
	return termenv.String(s).Foreground(r.profile.Color(hex)).String()
}

func (r *renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Printf(format, args...)
}

func (r *renderer) hooks() *domain.BuildHooks {
	return &domain.BuildHooks{
		OnOrdered: func(_ context.Context, ev *domain.VerticesSortedEvent) {
			r.printf("%s %d vertices, %d to run\n",
				r.colored("order", "#818cf8"), len(ev.IDs), len(ev.ToRun))
		},
		OnVertexDone: func(_ context.Context, out domain.VertexOutcome) {
			switch o := out.(type) {
			case domain.Built:
				r.printf("  %s %s\n", r.colored("✓", "#34d399"), o.Result.ID)
			case domain.Errored:
				r.printf("  %s %s  %s\n",
					r.colored("✗", "#f87171"), o.ID, strings.Join(o.Messages, "; "))
			case domain.Inactive:
				r.printf("  %s %s\n", r.colored("○", "#6b7280"), o.ID)
			}
		},
		OnError: func(_ context.Context, err *domain.BuildError) {
			if err.AttemptLevel() {
				r.printf("%s %s\n", r.colored("error", "#f87171"), err.Message.Text)
			}
		},
	}
}

func (r *renderer) printStopped() {
	r.printf("%s\n", r.colored("build stopped", "#fbbf24"))
}

func (r *renderer) printSummary(summary *domain.BuildSummary, messages []domain.Message) {
	verdict := r.colored("valid", "#34d399")
	if !summary.Valid {
		verdict = r.colored("invalid", "#f87171")
	}
	r.printf("\nbuild %s: %d built, %d failed, %d inactive\n",
		verdict, summary.Built, summary.Failed, summary.Inactive)

	if len(messages) == 0 {
		return
	}
	render := newMarkdown(r.profile)
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		out, err := render(msg.Text)
		if err != nil {
			out = msg.Text + "\n"
		}
		r.printf("%s", out)
	}
}

// newMarkdown returns a markdown-to-terminal renderer. Falls back to
// plain text when the terminal cannot be probed.
func newMarkdown(profile termenv.Profile) func(string) (string, error) {
	if profile == termenv.Ascii || os.Getenv("NO_COLOR") != "" {
		return func(s string) (string, error) { return s + "\n", nil }
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return func(s string) (string, error) { return s + "\n", nil }
	}
	return r.Render
}
