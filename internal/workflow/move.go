package workflow

import (
	"context"
	"strings"

	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/layout"
	"github.com/schaermu/p4vhelper/internal/p4"
	"github.com/schaermu/p4vhelper/internal/parse"
)

// MoveRequest renames and/or relocates the source folder.
type MoveRequest struct {
	Source layout.Path
	// NewName is the folder name at the destination.
	NewName string
	// NewLocation is the destination parent; empty keeps the current parent.
	NewLocation string
	Case        string
}

// Destination returns the folder the source ends up in.
func (r MoveRequest) Destination() string {
	location := r.NewLocation
	if strings.TrimSpace(location) == "" {
		location = layout.Parent(r.Source.Local)
	}
	return layout.Join(location, r.NewName)
}

const moveSteps = 4

// RenameMove opens the source folder for edit in a new changelist, moves it
// and submits. A failing step stops the run; earlier steps are not undone.
func (e *Engine) RenameMove(ctx context.Context, req MoveRequest) (*MoveResult, error) {
	if err := requireCase(req.Case); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.NewName) == "" {
		return nil, &layout.ValidationError{Field: "name", Message: "New name is required."}
	}
	from := req.Source.Local
	to := req.Destination()
	if to == from {
		return nil, &layout.ValidationError{Field: "name", Message: "New location must differ from the current path."}
	}
	if err := e.requireDir(from); err != nil {
		return nil, err
	}

	e.logger.Info("starting move", "from", from, "to", to, "case", req.Case)
	description := req.Case + " Rename/move file(s)"

	e.step(OpMove, StateCreatingChangelist)
	e.reporter.Progress(OpMove, Progress{Processed: 0, Total: moveSteps, Item: string(StateCreatingChangelist)})
	tmpl, err := e.p4.ChangeTemplate(ctx)
	if err != nil || !tmpl.OK() {
		return nil, e.fail(OpMove, StateCreatingChangelist, tmpl, err)
	}
	change, err := e.saveChange(ctx, tmpl.Stdout, description, false)
	if err != nil {
		return nil, e.fail(OpMove, StateCreatingChangelist, p4.Result{}, err)
	}
	e.note(console.Info, "Created changelist %d: %s", change, description)

	e.step(OpMove, StateOpeningForEdit)
	e.reporter.Progress(OpMove, Progress{Processed: 1, Total: moveSteps, Item: string(StateOpeningForEdit)})
	res, err := e.p4.Edit(ctx, change, layout.Wildcard(from))
	if err != nil || !res.OK() {
		return nil, e.failChange(OpMove, StateOpeningForEdit, change, res, err)
	}

	e.step(OpMove, StateMoving)
	e.reporter.Progress(OpMove, Progress{Processed: 2, Total: moveSteps, Item: string(StateMoving)})
	res, err = e.p4.Move(ctx, change, layout.Wildcard(from), layout.Wildcard(to))
	if err != nil || !res.OK() {
		return nil, e.failChange(OpMove, StateMoving, change, res, err)
	}
	moved := parse.CountLines(res.Stdout)
	e.note(console.Info, "Moved %d file(s) to %s", moved, to)

	e.step(OpMove, StateSubmitting)
	e.reporter.Progress(OpMove, Progress{Processed: 3, Total: moveSteps, Item: string(StateSubmitting)})
	res, err = e.p4.Submit(ctx, change, nil)
	if err != nil || !res.OK() {
		return nil, e.failChange(OpMove, StateSubmitting, change, res, err)
	}

	e.reporter.Progress(OpMove, Progress{Processed: moveSteps, Total: moveSteps, Item: string(StateDone)})
	e.note(console.Success, "Changelist %d submitted: %s -> %s", change, from, to)
	e.logger.Info("move completed", "change", change, "moved", moved)

	e.step(OpMove, StateDone)
	return &MoveResult{Change: change, From: from, To: to, Moved: moved}, nil
}
