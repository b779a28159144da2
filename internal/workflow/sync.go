package workflow

import (
	"context"
	"strings"

	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/layout"
	"github.com/schaermu/p4vhelper/internal/parse"
)

// Sync force-syncs the target's depot folder to head, reporting progress per
// synced file. On success the local folder is opened when open is set.
func (e *Engine) Sync(ctx context.Context, target layout.Path, open bool) (*SyncResult, error) {
	depot := target.Depot(e.cfg.DepotRoot())
	files := layout.Wildcard(depot)

	e.logger.Info("starting sync", "depot", depot, "local", target.Local)

	e.step(OpSync, StateCountingFiles)
	res, err := e.p4.Files(ctx, files)
	if err != nil {
		return nil, e.fail(OpSync, StateCountingFiles, res, err)
	}
	if !res.OK() {
		if strings.Contains(strings.ToLower(res.Stderr), "no such file") {
			return nil, e.fail(OpSync, StateCountingFiles, res, ErrNoFiles)
		}
		return nil, e.fail(OpSync, StateCountingFiles, res, nil)
	}
	total := parse.CountLines(res.Stdout)
	if total == 0 {
		return nil, e.fail(OpSync, StateCountingFiles, res, ErrNoFiles)
	}
	e.note(console.Info, "Found %d files in %s", total, depot)

	e.step(OpSync, StateSyncing)
	tr := newTracker(total, e.now)
	res, err = e.p4.Sync(ctx, files, func(line string) {
		e.reporter.Progress(OpSync, tr.advance(line))
	})
	if err != nil {
		return nil, e.fail(OpSync, StateSyncing, res, err)
	}
	if !res.OK() {
		return nil, e.fail(OpSync, StateSyncing, res, nil)
	}
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		e.note(console.Warning, "%s", msg)
	}

	result := &SyncResult{
		Depot:   depot,
		Local:   target.Local,
		Total:   total,
		Synced:  tr.processed,
		Elapsed: tr.elapsed(),
	}

	count, err := countFiles(e.fs, target.Local)
	if err != nil {
		e.logger.Warn("counting local files failed", "path", target.Local, "error", err)
	}
	result.LocalFiles = count

	e.note(console.Success, "Sync complete: %d files in %s (%s)", count, target.Local, FormatElapsed(result.Elapsed))
	e.logger.Info("sync completed", "depot", depot, "synced", result.Synced, "local_files", count)

	if open {
		e.openFolder(ctx, target.Local)
	}

	e.step(OpSync, StateDone)
	return result, nil
}

func (e *Engine) openFolder(ctx context.Context, path string) {
	if err := e.opener.OpenFolder(ctx, path); err != nil {
		e.logger.Warn("opening folder failed", "path", path, "error", err)
		e.note(console.Warning, "Could not open %s: %v", path, err)
	}
}
