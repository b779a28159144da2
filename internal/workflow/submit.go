package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/layout"
	"github.com/schaermu/p4vhelper/internal/p4"
	"github.com/schaermu/p4vhelper/internal/parse"
)

// SubmitRequest selects the folder to reconcile and the case it belongs to.
type SubmitRequest struct {
	Target layout.Path
	Case   string
}

// ReconcileSubmit opens offline adds, edits and deletes under the target
// folder, asks for a reason, and submits them in a new changelist. When
// reconcile finds nothing the run ends as NoOp and no changelist is created.
func (e *Engine) ReconcileSubmit(ctx context.Context, req SubmitRequest, prompt Prompter) (*SubmitResult, error) {
	if err := requireCase(req.Case); err != nil {
		return nil, err
	}
	if err := e.requireDir(req.Target.Local); err != nil {
		return nil, err
	}

	local := req.Target.Local
	e.logger.Info("starting reconcile", "local", local, "case", req.Case)

	e.step(OpSubmit, StateReconciling)
	res, err := e.p4.Reconcile(ctx, layout.Wildcard(local))
	if err != nil {
		return nil, e.fail(OpSubmit, StateReconciling, res, err)
	}
	files := parse.ParseReconcile(res.Stdout)
	opened := parse.CountLines(res.Stdout)
	if opened == 0 {
		if !res.OK() && !nothingToReconcile(res.Stderr) {
			return nil, e.fail(OpSubmit, StateReconciling, res, nil)
		}
		e.note(console.Info, "No changes detected in %s", local)
		e.step(OpSubmit, StateNoOp)
		return &SubmitResult{Outcome: OutcomeNoOp}, nil
	}
	e.note(console.Info, "Reconciled %s", files.Summary())
	if other := opened - files.Total(); other > 0 {
		e.note(console.Info, "%d other file(s) opened", other)
	}

	e.step(OpSubmit, StateAwaitingReason)
	reason, err := prompt.Reason(ctx, files, e.cfg.Submit.Reasons)
	if err == nil && strings.TrimSpace(reason) == "" {
		err = ErrDeclined
	}
	if err != nil {
		return nil, e.fail(OpSubmit, StateAwaitingReason, p4.Result{}, err)
	}
	description := fmt.Sprintf("%s %s Reconciled offline work", strings.TrimSpace(reason), req.Case)

	e.step(OpSubmit, StateCreatingChangelist)
	tmpl, err := e.p4.ChangeTemplate(ctx)
	if err != nil || !tmpl.OK() {
		return nil, e.fail(OpSubmit, StateCreatingChangelist, tmpl, err)
	}

	e.step(OpSubmit, StateEditingForOpen)
	change, err := e.saveChange(ctx, tmpl.Stdout, description, true)
	if err != nil {
		return nil, e.fail(OpSubmit, StateEditingForOpen, p4.Result{}, err)
	}
	e.note(console.Info, "Created changelist %d: %s", change, description)

	e.step(OpSubmit, StateSubmitting)
	tr := newTracker(opened, e.now)
	res, err = e.p4.Submit(ctx, change, func(line string) {
		e.reporter.Progress(OpSubmit, tr.advance(line))
	})
	if err != nil || !res.OK() {
		return nil, e.failChange(OpSubmit, StateSubmitting, change, res, err)
	}

	result := &SubmitResult{
		Outcome:     OutcomeSubmitted,
		Change:      change,
		Description: description,
		Files:       files,
		Submitted:   tr.processed,
		Elapsed:     tr.elapsed(),
	}
	e.note(console.Success, "Changelist %d submitted in %s", change, FormatElapsed(result.Elapsed))
	e.note(console.Success, "Summary: %s", files.Summary())
	e.logger.Info("submit completed", "change", change, "files", opened)

	e.step(OpSubmit, StateDone)
	return result, nil
}

// saveChange writes description into a "change -o" template, saves it and
// returns the new changelist number. keepFiles controls whether files open in
// the default changelist move along.
func (e *Engine) saveChange(ctx context.Context, template, description string, keepFiles bool) (int, error) {
	spec, err := parse.SetChangeDescription(template, description)
	if err != nil {
		return 0, err
	}
	if !keepFiles {
		spec = parse.DropFiles(spec)
	}

	res, err := e.p4.SaveChange(ctx, spec)
	if err != nil {
		return 0, err
	}
	if !res.OK() {
		return 0, fmt.Errorf("change -i: %s", res.Message())
	}
	return parse.ParseChangeCreation(res.Stdout)
}

func nothingToReconcile(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "no file(s) to reconcile")
}

func requireCase(c string) error {
	if strings.TrimSpace(c) == "" {
		return &layout.ValidationError{Field: "case", Message: "SF Case is required."}
	}
	return nil
}

func (e *Engine) requireDir(path string) error {
	ok, err := afero.DirExists(e.fs, path)
	if err != nil {
		return &FilesystemError{Op: "stat", Path: path, Err: err}
	}
	if !ok {
		return &layout.ValidationError{Field: "root", Message: fmt.Sprintf("Local path does not exist: %s", path)}
	}
	return nil
}
