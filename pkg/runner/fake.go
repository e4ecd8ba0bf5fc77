package runner

import (
	"context"
	"strings"
	"sync"
)

// Fake records invocations and answers them from Handler. A nil Handler
// succeeds every command with empty output.
type Fake struct {
	Handler func(argv []string) Result

	mu    sync.Mutex
	calls [][]string
}

var _ Runner = (*Fake)(nil)

func (f *Fake) Run(_ context.Context, argv []string, _ Options) Result {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), argv...))
	f.mu.Unlock()

	if f.Handler == nil {
		return Result{}
	}
	return f.Handler(argv)
}

// Calls returns every recorded argv.
func (f *Fake) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CommandLines returns the recorded argvs joined by spaces.
func (f *Fake) CommandLines() []string {
	calls := f.Calls()
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, strings.Join(c, " "))
	}
	return out
}
