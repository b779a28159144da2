package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/p4vhelper/internal/p4/p4test"
)

const depotFoo = "//depot/UE5-UserContent/5.3/AssetPacks/Foo"

func TestSync_StreamsProgressAndOpensFolder(t *testing.T) {
	h := newHarness(t)
	target := h.target(t, "Foo")
	h.write(t, filepath.Join(target.Local, "Content", "Rock.uasset"))
	h.write(t, filepath.Join(target.Local, "Content", "Tree.uasset"))

	h.runner.
		On("files", p4test.Response{Stdout: depotFoo + "/Content/Rock.uasset#3 - edit change 10452 (binary)\n" +
			depotFoo + "/Content/Tree.uasset#1 - add change 10452 (binary)\n"}).
		On("sync -f", p4test.Response{Stdout: depotFoo + "/Content/Rock.uasset#3 - refreshing\n" +
			depotFoo + "/Content/Tree.uasset#1 - refreshing\n"})

	result, err := h.engine.Sync(context.Background(), target, true)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"files " + depotFoo + "/...",
		"sync -f " + depotFoo + "/...#head",
	}, h.runner.Commands())
	assert.Equal(t, []State{StateCountingFiles, StateSyncing, StateDone}, h.rec.states)

	require.Len(t, h.rec.progress, 2)
	assert.Equal(t, 1, h.rec.progress[0].Processed)
	assert.InDelta(t, 100.0, h.rec.progress[1].Percent(), 0.001)
	assert.Contains(t, h.rec.progress[1].Item, "Tree.uasset")

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 2, result.LocalFiles)
	assert.Equal(t, []string{target.Local}, h.opener.opened)
}

func TestSync_NoFiles(t *testing.T) {
	h := newHarness(t)
	h.runner.On("files", p4test.Response{ExitCode: 1, Stderr: depotFoo + "/... - no such file(s).\n"})

	_, err := h.engine.Sync(context.Background(), h.target(t, "Foo"), true)
	require.ErrorIs(t, err, ErrNoFiles)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StateCountingFiles, stepErr.State)
	assert.Equal(t, StateFailed, h.rec.last())
	assert.Len(t, h.runner.Calls(), 1)
	assert.Empty(t, h.opener.opened)
}

func TestSync_FailureCarriesStderr(t *testing.T) {
	h := newHarness(t)
	h.runner.
		On("files", p4test.Response{Stdout: depotFoo + "/a.uasset#1 - add change 1 (binary)\n"}).
		On("sync -f", p4test.Response{ExitCode: 1, Stderr: "Connect to server failed; check $P4PORT.\n"})

	_, err := h.engine.Sync(context.Background(), h.target(t, "Foo"), false)
	require.Error(t, err)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StateSyncing, stepErr.State)
	assert.Equal(t, "Connect to server failed; check $P4PORT.", stepErr.Stderr)
	assert.Equal(t, []State{StateCountingFiles, StateSyncing, StateFailed}, h.rec.states)
}

func TestSync_StderrOnSuccessIsAWarning(t *testing.T) {
	h := newHarness(t)
	h.runner.
		On("files", p4test.Response{Stdout: depotFoo + "/a.uasset#1 - add change 1 (binary)\n"}).
		On("sync -f", p4test.Response{Stdout: depotFoo + "/a.uasset#1 - refreshing\n", Stderr: "file(s) up-to-date.\n"})

	_, err := h.engine.Sync(context.Background(), h.target(t, "Foo"), false)
	require.NoError(t, err)
	assert.Contains(t, h.rec.notes, "file(s) up-to-date.")
	assert.Equal(t, StateDone, h.rec.last())
}
