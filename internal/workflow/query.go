package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/layout"
	"github.com/schaermu/p4vhelper/internal/parse"
)

// Search lists depot folders named app at the content depth of the depot,
// in the order p4 returns them. A non-empty match keeps only folders
// matching that doublestar pattern.
func (e *Engine) Search(ctx context.Context, app, match string) ([]string, error) {
	if err := layout.ValidateApp(app); err != nil {
		return nil, err
	}
	if match != "" && !doublestar.ValidatePattern(match) {
		return nil, &layout.ValidationError{Field: "match", Message: fmt.Sprintf("Invalid match pattern %q.", match)}
	}

	pattern := e.cfg.SearchPattern(app)
	e.logger.Info("searching depot", "pattern", pattern)

	e.step(OpSearch, StateQuerying)
	res, err := e.p4.Dirs(ctx, pattern)
	if err != nil {
		return nil, e.fail(OpSearch, StateQuerying, res, err)
	}
	dirs := parse.ParseDirs(res.Stdout)
	if !res.OK() && len(dirs) == 0 && !noSuchFile(res.Stderr) {
		return nil, e.fail(OpSearch, StateQuerying, res, nil)
	}

	if match != "" {
		kept := dirs[:0]
		for _, d := range dirs {
			if ok, _ := doublestar.Match(match, d); ok {
				kept = append(kept, d)
			}
		}
		dirs = kept
	}

	if len(dirs) == 0 {
		e.note(console.Warning, "No folders found for %s", app)
	} else {
		e.note(console.Success, "Found %d folder(s) for %s", len(dirs), app)
	}

	e.step(OpSearch, StateDone)
	return dirs, nil
}

// History lists submitted changelists of user under the depot root, newest
// first. An empty user means the user p4 reports as logged in.
func (e *Engine) History(ctx context.Context, user string, limit int) ([]parse.HistoryRow, error) {
	if limit <= 0 {
		limit = e.cfg.History.PageSize
	}

	e.step(OpHistory, StateQuerying)
	if user == "" {
		res, err := e.p4.Info(ctx, 0)
		if err != nil || !res.OK() {
			return nil, e.fail(OpHistory, StateQuerying, res, err)
		}
		user = parse.ParseInfo(res.Stdout).User
		if user == "" {
			return nil, e.fail(OpHistory, StateQuerying, res, ErrNoUser)
		}
	}

	e.logger.Info("fetching history", "user", user, "path", e.cfg.HistoryPath(), "limit", limit)
	res, err := e.p4.Changes(ctx, user, e.cfg.HistoryPath(), limit)
	if err != nil || !res.OK() {
		return nil, e.fail(OpHistory, StateQuerying, res, err)
	}

	rows, perr := parse.ParseHistory(res.Stdout)
	if perr != nil {
		e.logger.Warn("history output partly unreadable", "error", perr)
		e.note(console.Warning, "%v", perr)
	}
	if len(rows) == 0 {
		e.note(console.Info, "No submitted changes found for %s", user)
	}

	e.step(OpHistory, StateDone)
	return rows, nil
}

// Describe returns the raw "p4 describe" text of a changelist.
func (e *Engine) Describe(ctx context.Context, change int) (string, error) {
	if change <= 0 {
		return "", &layout.ValidationError{Field: "change", Message: fmt.Sprintf("Invalid changelist number %d.", change)}
	}

	e.step(OpDescribe, StateQuerying)
	res, err := e.p4.Describe(ctx, change)
	if err != nil || !res.OK() {
		return "", e.fail(OpDescribe, StateQuerying, res, err)
	}

	e.step(OpDescribe, StateDone)
	return res.Stdout, nil
}

func noSuchFile(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "no such file")
}
