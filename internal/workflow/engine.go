// Package workflow sequences p4 calls into the named operations of the tool
// and reports each step, its progress and user-facing messages.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/schaermu/p4vhelper/internal/config"
	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/desktop"
	"github.com/schaermu/p4vhelper/internal/p4"
	"github.com/schaermu/p4vhelper/internal/parse"
)

// Reporter receives workflow events. Engine calls it from the goroutine
// running the workflow.
type Reporter interface {
	// Transition is called when op enters state.
	Transition(op Op, state State)
	// Progress is called for every streamed item of a sync or submit.
	Progress(op Op, p Progress)
	// Note carries a message for the user.
	Note(tag console.Tag, msg string)
}

// Prompter supplies the free-text reason for a submission. It is the only
// point where a workflow waits for a person.
type Prompter interface {
	Reason(ctx context.Context, files parse.ReconcileSet, choices []string) (string, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, files parse.ReconcileSet, choices []string) (string, error)

// Reason implements Prompter.
func (f PrompterFunc) Reason(ctx context.Context, files parse.ReconcileSet, choices []string) (string, error) {
	return f(ctx, files, choices)
}

// Engine runs workflows against one p4 client and filesystem.
type Engine struct {
	cfg      *config.Config
	p4       *p4.Client
	fs       afero.Fs
	opener   desktop.Opener
	reporter Reporter
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a workflow engine
func NewEngine(cfg *config.Config, client *p4.Client, fs afero.Fs, opener desktop.Opener, reporter Reporter, logger *slog.Logger) *Engine {
	if opener == nil {
		opener = desktop.Noop{}
	}
	if reporter == nil {
		reporter = Discard{}
	}
	return &Engine{
		cfg:      cfg,
		p4:       client,
		fs:       fs,
		opener:   opener,
		reporter: reporter,
		logger:   logger,
		now:      time.Now,
	}
}

// Client returns the p4 client used by the engine.
func (e *Engine) Client() *p4.Client {
	return e.p4
}

func (e *Engine) step(op Op, state State) {
	e.logger.Debug("workflow step", "op", op, "state", state)
	e.reporter.Transition(op, state)
}

func (e *Engine) note(tag console.Tag, format string, args ...any) {
	e.reporter.Note(tag, fmt.Sprintf(format, args...))
}

// fail moves op to Failed and wraps the failing step's outcome.
func (e *Engine) fail(op Op, state State, res p4.Result, err error) error {
	e.logger.Warn("workflow step failed", "op", op, "state", state, "exit_code", res.ExitCode, "error", err)
	e.reporter.Transition(op, StateFailed)
	if err != nil {
		return &StepError{Op: op, State: state, Err: err}
	}
	return &StepError{Op: op, State: state, Stderr: res.Message()}
}

// failChange is fail for steps that run after a changelist was created.
func (e *Engine) failChange(op Op, state State, change int, res p4.Result, err error) error {
	stepErr := e.fail(op, state, res, err).(*StepError)
	stepErr.Change = change
	return stepErr
}

// Discard is a Reporter that drops every event.
type Discard struct{}

func (Discard) Transition(Op, State)     {}
func (Discard) Progress(Op, Progress)    {}
func (Discard) Note(console.Tag, string) {}
