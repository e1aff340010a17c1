package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jihwankim/skill-evaluator/pkg/model"
)

// ProgressPrinter is a plain-text observer.StatusObserver/ResultObserver
// that prints one line per event. Terminal UI and JSON progress rendering
// are out of scope; the host composes a richer presentation layer on top
// of the same observer interfaces if it wants one.
type ProgressPrinter struct {
	out     io.Writer
	verbose bool
	mu      sync.Mutex
}

// NewProgressPrinter constructs a printer writing to out.
func NewProgressPrinter(out io.Writer, verbose bool) *ProgressPrinter {
	return &ProgressPrinter{out: out, verbose: verbose}
}

// OnStatus implements observer.StatusObserver.
func (p *ProgressPrinter) OnStatus(s model.ContainerStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mem := s.HumanMemory
	if mem == "" {
		mem = "-"
	}
	fmt.Fprintf(p.out, "[%s] %-11s elapsed=%6.1fs mem=%s\n", s.Label, s.State, s.ElapsedSecs, mem)
}

// OnResult implements observer.ResultObserver.
func (p *ProgressPrinter) OnResult(r model.RunResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	errTag := "none"
	if r.Error != "" {
		errTag = r.Error
	}
	fmt.Fprintf(p.out, "[%s] done exit=%d duration=%.2fs error=%s\n", r.Label, r.ExitCode, r.DurationSec, errTag)

	if p.verbose {
		if r.Stdout != "" {
			fmt.Fprintf(p.out, "  stdout:\n%s\n", indent(r.Stdout))
		}
		if r.Stderr != "" {
			fmt.Fprintf(p.out, "  stderr:\n%s\n", indent(r.Stderr))
		}
	}
}

func indent(s string) string {
	return "    " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n    ")
}
