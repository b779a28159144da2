// Package p4test provides a scripted p4.Runner for tests.
package p4test

import (
	"context"
	"strings"
	"sync"

	"github.com/schaermu/p4vhelper/internal/p4"
)

// Response is the canned outcome of one call.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Err is returned as the launch error when set.
	Err error
}

// Runner answers invocations from a script keyed by subcommand.
// Responses for a key are consumed in order; the last one repeats.
type Runner struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     []p4.Invocation
}

// NewRunner creates an empty scripted runner. Unscripted calls succeed with no output.
func NewRunner() *Runner {
	return &Runner{responses: make(map[string][]Response)}
}

// On scripts the responses for a key. The key is the subcommand plus any
// leading flags that start with "-", e.g. "login -s", "change -o", "info".
func (r *Runner) On(key string, resp ...Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[key] = append(r.responses[key], resp...)
	return r
}

// Calls returns a copy of every invocation seen so far.
func (r *Runner) Calls() []p4.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]p4.Invocation(nil), r.calls...)
}

// Commands returns the argument vectors of every call joined by spaces.
func (r *Runner) Commands() []string {
	var out []string
	for _, c := range r.Calls() {
		out = append(out, strings.Join(c.Args, " "))
	}
	return out
}

// Run implements p4.Runner.
func (r *Runner) Run(_ context.Context, inv p4.Invocation) (p4.Result, error) {
	resp := r.next(inv)
	if resp.Err != nil {
		return p4.Result{}, resp.Err
	}
	return p4.Result{ExitCode: resp.ExitCode, Stdout: resp.Stdout, Stderr: resp.Stderr}, nil
}

// Stream implements p4.Runner by replaying Stdout line by line.
func (r *Runner) Stream(_ context.Context, inv p4.Invocation, onLine func(string)) (p4.Result, error) {
	resp := r.next(inv)
	if resp.Err != nil {
		return p4.Result{}, resp.Err
	}
	for _, line := range strings.Split(resp.Stdout, "\n") {
		if strings.TrimSpace(line) != "" && onLine != nil {
			onLine(strings.TrimRight(line, "\r"))
		}
	}
	return p4.Result{ExitCode: resp.ExitCode, Stderr: resp.Stderr}, nil
}

func (r *Runner) next(inv p4.Invocation) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, inv)

	for _, key := range keysFor(inv.Args) {
		queue, ok := r.responses[key]
		if !ok || len(queue) == 0 {
			continue
		}
		resp := queue[0]
		if len(queue) > 1 {
			r.responses[key] = queue[1:]
		}
		return resp
	}
	return Response{}
}

// keysFor returns lookup keys from most to least specific.
func keysFor(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	key := args[0]
	keys := []string{key}
	for _, a := range args[1:] {
		if !strings.HasPrefix(a, "-") {
			break
		}
		key += " " + a
		keys = append([]string{key}, keys...)
	}
	return keys
}
