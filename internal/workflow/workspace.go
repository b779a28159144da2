package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/layout"
	"github.com/schaermu/p4vhelper/internal/p4"
	"github.com/schaermu/p4vhelper/internal/parse"
)

// CreateFolder creates the target's local folder and optionally opens it.
func (e *Engine) CreateFolder(ctx context.Context, target layout.Path, open bool) (bool, error) {
	exists, err := afero.DirExists(e.fs, target.Local)
	if err != nil {
		return false, &FilesystemError{Op: "stat", Path: target.Local, Err: err}
	}

	if exists {
		e.note(console.Info, "Folder already exists: %s", target.Local)
	} else {
		e.step(OpCreate, StateWriting)
		if err := e.fs.MkdirAll(target.Local, 0o755); err != nil {
			e.reporter.Transition(OpCreate, StateFailed)
			return false, &FilesystemError{Op: "mkdir", Path: target.Local, Err: err}
		}
		e.logger.Info("folder created", "path", target.Local)
		e.note(console.Success, "Folder created: %s", target.Local)
	}

	if open {
		e.openFolder(ctx, target.Local)
	}
	e.step(OpCreate, StateDone)
	return !exists, nil
}

// ClearWorkspace empties every <content>/<version>/<method> folder under
// root. The method folders themselves stay. Paths matching one of the keep
// patterns (doublestar, relative to root, slash separated) are left alone.
// A failing item is reported and the clear carries on.
func (e *Engine) ClearWorkspace(ctx context.Context, root string, keep []string) (*ClearResult, error) {
	if strings.TrimSpace(root) == "" {
		return nil, &layout.ValidationError{Field: "root", Message: "Please select a workspace folder first."}
	}
	for _, k := range keep {
		if !doublestar.ValidatePattern(k) {
			return nil, &layout.ValidationError{Field: "keep", Message: fmt.Sprintf("Invalid keep pattern %q.", k)}
		}
	}
	if err := e.requireDir(root); err != nil {
		return nil, err
	}

	e.logger.Info("clearing workspace", "root", root, "keep", keep)
	e.step(OpClear, StateWriting)

	c := &clearer{fs: e.fs, root: root, keep: keep, result: &ClearResult{}, e: e}
	for _, content := range contentDirs(root) {
		for _, methodDir := range c.methodDirs(content) {
			if err := ctx.Err(); err != nil {
				e.reporter.Transition(OpClear, StateFailed)
				return c.result, err
			}
			c.clear(methodDir)
		}
	}

	if n := len(c.result.Failures); n > 0 {
		e.note(console.Warning, "Workspace cleared with %d error(s): %d item(s) removed", n, c.result.Removed)
	} else {
		e.note(console.Success, "Workspace cleared: %d item(s) removed", c.result.Removed)
	}
	e.step(OpClear, StateDone)
	return c.result, nil
}

type clearer struct {
	fs     afero.Fs
	root   string
	keep   []string
	result *ClearResult
	e      *Engine
}

// methodDirs lists <content>/<version>/<method> directories.
func (c *clearer) methodDirs(contentDir string) []string {
	var dirs []string
	for _, version := range c.subdirs(contentDir) {
		dirs = append(dirs, c.subdirs(version)...)
	}
	return dirs
}

// contentDirs returns the per-version content folders below root, joined in
// the root's own separator style.
func contentDirs(root string) []string {
	dirs := make([]string, 0, len(layout.ContentRoots))
	for _, content := range layout.ContentRoots {
		dirs = append(dirs, layout.Join(root, content))
	}
	return dirs
}

func (c *clearer) subdirs(dir string) []string {
	infos, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.failed(&FilesystemError{Op: "read", Path: dir, Err: err})
		}
		return nil
	}
	var dirs []string
	for _, info := range infos {
		if info.IsDir() {
			dirs = append(dirs, layout.Join(dir, info.Name()))
		}
	}
	return dirs
}

type entry struct {
	path  string
	isDir bool
}

func (c *clearer) clear(dir string) {
	var entries []entry
	pinned := make(map[string]bool)

	err := afero.Walk(c.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			c.failed(&FilesystemError{Op: "walk", Path: path, Err: err})
			if info != nil && info.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if path == dir {
			return nil
		}
		if c.kept(path) {
			c.result.Kept++
			for p := filepath.Dir(path); p != dir && len(p) > len(dir); p = filepath.Dir(p) {
				pinned[p] = true
			}
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, entry{path: path, isDir: info.IsDir()})
		return nil
	})
	if err != nil {
		c.failed(&FilesystemError{Op: "walk", Path: dir, Err: err})
	}

	// Walk order is parents first; reversed, children go before their parents.
	for i := len(entries) - 1; i >= 0; i-- {
		en := entries[i]
		if en.isDir {
			if pinned[en.path] {
				continue
			}
			if err := c.fs.Remove(en.path); err != nil {
				c.failed(&FilesystemError{Op: "remove directory", Path: en.path, Err: err})
				continue
			}
		} else {
			_ = c.fs.Chmod(en.path, 0o777)
			if err := c.fs.Remove(en.path); err != nil {
				c.failed(&FilesystemError{Op: "remove file", Path: en.path, Err: err})
				continue
			}
		}
		c.result.Removed++
	}
}

func (c *clearer) kept(path string) bool {
	if len(c.keep) == 0 {
		return false
	}
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.keep {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (c *clearer) failed(err *FilesystemError) {
	c.result.Failures = append(c.result.Failures, err)
	c.e.logger.Warn("clear workspace item failed", "op", err.Op, "path", err.Path, "error", err.Err)
	c.e.note(console.Error, "%v", err)
}

// countFiles returns the number of regular files under dir.
func countFiles(fs afero.Fs, dir string) (int, error) {
	n := 0
	err := afero.Walk(fs, dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			n++
		}
		return nil
	})
	return n, err
}

// FileAction is a p4 command that opens or reverts files.
type FileAction string

const (
	ActionAdd    FileAction = "add"
	ActionEdit   FileAction = "edit"
	ActionRevert FileAction = "revert"
)

// addBatch bounds the number of files passed to one "p4 add".
const addBatch = 200

// OpenFiles runs action on every file under the target's local folder and
// returns the number of files p4 reported.
func (e *Engine) OpenFiles(ctx context.Context, action FileAction, target layout.Path) (int, error) {
	if err := e.requireDir(target.Local); err != nil {
		return 0, err
	}

	e.step(OpFiles, StateWriting)
	var results []p4.Result
	switch action {
	case ActionAdd:
		files, err := listFiles(e.fs, target.Local)
		if err != nil {
			e.reporter.Transition(OpFiles, StateFailed)
			return 0, &FilesystemError{Op: "walk", Path: target.Local, Err: err}
		}
		for start := 0; start < len(files); start += addBatch {
			end := min(start+addBatch, len(files))
			res, err := e.p4.Add(ctx, files[start:end]...)
			if err != nil || !res.OK() {
				return 0, e.fail(OpFiles, StateWriting, res, err)
			}
			results = append(results, res)
		}
	case ActionEdit, ActionRevert:
		run := e.p4.Revert
		if action == ActionEdit {
			run = func(ctx context.Context, path string) (p4.Result, error) { return e.p4.Edit(ctx, 0, path) }
		}
		res, err := run(ctx, layout.Wildcard(target.Local))
		if err != nil || !res.OK() {
			return 0, e.fail(OpFiles, StateWriting, res, err)
		}
		results = append(results, res)
	default:
		return 0, fmt.Errorf("unknown file action %q", action)
	}

	n := 0
	for _, res := range results {
		n += parse.CountLines(res.Stdout)
		if msg := strings.TrimSpace(res.Stderr); msg != "" {
			e.note(console.Warning, "%s", msg)
		}
	}
	e.note(console.Success, "%s: %d file(s) under %s", action, n, target.Local)
	e.step(OpFiles, StateDone)
	return n, nil
}

// listFiles returns every file under dir. Hidden files and directories
// (names starting with ".") are skipped.
func listFiles(fs afero.Fs, dir string) ([]string, error) {
	var files []string
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(info.Name(), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
