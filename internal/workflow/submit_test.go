package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/p4vhelper/internal/layout"
	"github.com/schaermu/p4vhelper/internal/p4/p4test"
	"github.com/schaermu/p4vhelper/internal/parse"
	"github.com/schaermu/p4vhelper/internal/testutil"
)

func reason(r string) PrompterFunc {
	return func(context.Context, parse.ReconcileSet, []string) (string, error) {
		return r, nil
	}
}

func TestReconcileSubmit_NothingToReconcile(t *testing.T) {
	h := newHarness(t)
	target := h.target(t, "Foo")
	require.NoError(t, h.fs.MkdirAll(target.Local, 0o755))
	h.runner.On("reconcile -f -m", p4test.Response{ExitCode: 1, Stderr: target.Local + "/... - no file(s) to reconcile.\n"})

	asked := false
	prompt := PrompterFunc(func(context.Context, parse.ReconcileSet, []string) (string, error) {
		asked = true
		return "Update", nil
	})

	result, err := h.engine.ReconcileSubmit(context.Background(), SubmitRequest{Target: target, Case: "00123456"}, prompt)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoOp, result.Outcome)
	assert.False(t, asked)
	assert.Len(t, h.runner.Calls(), 1)
	assert.Equal(t, []State{StateReconciling, StateNoOp}, h.rec.states)
}

func TestReconcileSubmit_UnclassifiedLinesStillSubmit(t *testing.T) {
	h := newHarness(t)
	target := h.target(t, "Foo")
	require.NoError(t, h.fs.MkdirAll(target.Local, 0o755))
	h.runner.
		On("reconcile -f -m", p4test.Response{Stdout: "//depot/UE5-UserContent/5.3/AssetPacks/Foo/x.uasset#1 - opened for integrate\n"}).
		On("change -o", p4test.Response{Stdout: testutil.P4Output(t, "change_template.txt")}).
		On("change -i", p4test.Response{Stdout: "Change 10702 created with 1 open file(s).\n"}).
		On("submit -c", p4test.Response{Stdout: "Change 10702 submitted.\n"})

	asked := false
	prompt := PrompterFunc(func(_ context.Context, set parse.ReconcileSet, _ []string) (string, error) {
		asked = true
		assert.True(t, set.Empty())
		return "Update", nil
	})

	result, err := h.engine.ReconcileSubmit(context.Background(), SubmitRequest{Target: target, Case: "00123456"}, prompt)
	require.NoError(t, err)

	assert.True(t, asked)
	assert.Equal(t, OutcomeSubmitted, result.Outcome)
	assert.Equal(t, 10702, result.Change)
	assert.Len(t, h.runner.Calls(), 4)
	assert.Contains(t, strings.Join(h.rec.notes, "\n"), "1 other file(s) opened")
}

func TestReconcileSubmit_FullRun(t *testing.T) {
	h := newHarness(t)
	target := h.target(t, "Foo")
	require.NoError(t, h.fs.MkdirAll(target.Local, 0o755))

	reconciled := testutil.P4Output(t, "reconcile.txt")
	files := parse.ParseReconcile(reconciled)
	h.runner.
		On("reconcile -f -m", p4test.Response{Stdout: reconciled}).
		On("change -o", p4test.Response{Stdout: testutil.P4Output(t, "change_template.txt")}).
		On("change -i", p4test.Response{Stdout: "Change 10700 created with 5 open file(s).\n"}).
		On("submit -c", p4test.Response{Stdout: strings.Join(files.Added, "\n") + "\nChange 10700 submitted.\n"})

	var gotChoices []string
	prompt := PrompterFunc(func(_ context.Context, set parse.ReconcileSet, choices []string) (string, error) {
		gotChoices = choices
		assert.Equal(t, files.Total(), set.Total())
		return "Update", nil
	})

	result, err := h.engine.ReconcileSubmit(context.Background(), SubmitRequest{Target: target, Case: "00123456"}, prompt)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSubmitted, result.Outcome)
	assert.Equal(t, 10700, result.Change)
	assert.Equal(t, "Update 00123456 Reconciled offline work", result.Description)
	assert.Equal(t, []string{"New Submission", "Update", "Add"}, gotChoices)
	assert.Equal(t, []State{
		StateReconciling, StateAwaitingReason, StateCreatingChangelist,
		StateEditingForOpen, StateSubmitting, StateDone,
	}, h.rec.states)

	calls := h.runner.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "submit -c 10700", strings.Join(calls[3].Args, " "))

	spec := calls[2].Stdin
	assert.Contains(t, spec, "Description:\n\tUpdate 00123456 Reconciled offline work\n")
	assert.NotContains(t, spec, "<enter description here>")
	assert.Contains(t, spec, "Files:", "reconciled files stay in the new changelist")
}

func TestReconcileSubmit_ChangeCreationFails(t *testing.T) {
	h := newHarness(t)
	target := h.target(t, "Foo")
	require.NoError(t, h.fs.MkdirAll(target.Local, 0o755))
	h.runner.
		On("reconcile -f -m", p4test.Response{Stdout: testutil.P4Output(t, "reconcile.txt")}).
		On("change -o", p4test.Response{Stdout: testutil.P4Output(t, "change_template.txt")}).
		On("change -i", p4test.Response{ExitCode: 1, Stderr: "Error in change specification.\n"})

	_, err := h.engine.ReconcileSubmit(context.Background(), SubmitRequest{Target: target, Case: "00123456"}, reason("Add"))
	require.Error(t, err)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StateEditingForOpen, stepErr.State)
	assert.Contains(t, err.Error(), "Error in change specification.")
	assert.Equal(t, StateFailed, h.rec.last())
	for _, cmd := range h.runner.Commands() {
		assert.False(t, strings.HasPrefix(cmd, "submit"), "unexpected %q", cmd)
	}
}

func TestReconcileSubmit_SubmitFailureLeavesChangeOpen(t *testing.T) {
	h := newHarness(t)
	target := h.target(t, "Foo")
	require.NoError(t, h.fs.MkdirAll(target.Local, 0o755))
	h.runner.
		On("reconcile -f -m", p4test.Response{Stdout: testutil.P4Output(t, "reconcile.txt")}).
		On("change -o", p4test.Response{Stdout: testutil.P4Output(t, "change_template.txt")}).
		On("change -i", p4test.Response{Stdout: "Change 10700 created.\n"}).
		On("submit -c", p4test.Response{ExitCode: 1, Stderr: "Out of date files must be resolved or reverted.\n"})

	_, err := h.engine.ReconcileSubmit(context.Background(), SubmitRequest{Target: target, Case: "00123456"}, reason("Add"))

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StateSubmitting, stepErr.State)
	assert.Equal(t, 10700, stepErr.Change)
}

func TestReconcileSubmit_DeclinedReason(t *testing.T) {
	h := newHarness(t)
	target := h.target(t, "Foo")
	require.NoError(t, h.fs.MkdirAll(target.Local, 0o755))
	h.runner.On("reconcile -f -m", p4test.Response{Stdout: testutil.P4Output(t, "reconcile.txt")})

	_, err := h.engine.ReconcileSubmit(context.Background(), SubmitRequest{Target: target, Case: "00123456"}, reason("  "))
	require.ErrorIs(t, err, ErrDeclined)
	assert.Len(t, h.runner.Calls(), 1)
	assert.Equal(t, []State{StateReconciling, StateAwaitingReason, StateFailed}, h.rec.states)
}

func TestReconcileSubmit_Validation(t *testing.T) {
	h := newHarness(t)
	target := h.target(t, "Foo")

	_, err := h.engine.ReconcileSubmit(context.Background(), SubmitRequest{Target: target}, reason("Add"))
	var verr *layout.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "case", verr.Field)

	_, err = h.engine.ReconcileSubmit(context.Background(), SubmitRequest{Target: target, Case: "1"}, reason("Add"))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "root", verr.Field)

	assert.Empty(t, h.runner.Calls())
	assert.Empty(t, h.rec.states)
}
