package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/schaermu/p4vhelper/internal/config"
	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/desktop"
	"github.com/schaermu/p4vhelper/internal/p4"
	"github.com/schaermu/p4vhelper/internal/parse"
	"github.com/schaermu/p4vhelper/internal/session"
	"github.com/schaermu/p4vhelper/internal/taskq"
	"github.com/schaermu/p4vhelper/internal/workflow"
)

// Seams replaced by tests.
var (
	appFs = afero.NewOsFs()

	newRunner = func(cfg *config.Config, logger *slog.Logger) (p4.Runner, error) {
		binary, err := p4.Locate(cfg.P4.Binary)
		if err != nil {
			return nil, err
		}
		return p4.NewShellRunner(binary, logger), nil
	}

	newOpener = func() desktop.Opener {
		return desktop.NewClient()
	}
)

// cmdEnv is what every command constructor shares.
type cmdEnv struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	target *targetFlags
	in     *bufio.Reader
}

func (env *cmdEnv) reader() *bufio.Reader {
	if env.in == nil {
		env.in = bufio.NewReader(env.stdin)
	}
	return env.in
}

// app holds the collaborators of one command run. The goroutine that
// created it owns the console; workflows run on the pool and post back.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *session.Store
	session session.Config
	console *console.Console
	engine  *workflow.Engine
	pool    *taskq.Pool
	loop    *taskq.Loop
	in      *bufio.Reader
	out     io.Writer
	cancel  context.CancelFunc
}

// newApp loads configuration and session and wires the engine. With needP4
// set, a missing p4 executable is an error; otherwise p4 calls fail lazily.
func newApp(env *cmdEnv, needP4 bool) (*app, error) {
	logger := setupLogger(env.stderr)

	cfg, err := loadConfig(appFs, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	path, err := sessionPath(cfg)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(appFs, path)
	sess, err := store.Load()
	if err != nil {
		logger.Warn("session file unreadable, using defaults", "path", path, "error", err)
	}

	runner, err := newRunner(cfg, logger)
	if err != nil {
		if needP4 {
			return nil, err
		}
		runner = unavailableRunner{err: err}
	}

	ctx, cancel := setupSignalHandler()
	a := &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		session: sess,
		console: console.New(env.stdout, console.Options{NoColor: noColor, Light: !sess.DarkMode}),
		pool:    taskq.NewPool(ctx, cfg.Workers),
		loop:    taskq.NewLoop(),
		in:      env.reader(),
		out:     env.stdout,
		cancel:  cancel,
	}
	go func() {
		<-ctx.Done()
		a.pool.Cancel()
	}()

	conn := p4.Connection{Port: cfg.P4.Port, User: cfg.P4.User, Client: cfg.P4.Client}
	if conn.Port == "" {
		conn.Port = sess.P4.Port
	}
	if conn.User == "" {
		conn.User = sess.P4.User
	}
	client := p4.NewClient(runner, conn)
	a.engine = workflow.NewEngine(cfg, client, appFs, newOpener(), &loopReporter{app: a}, logger)
	return a, nil
}

// close stops the signal handler and waits for running workflows.
func (a *app) close() {
	a.cancel()
	a.pool.Wait()
	a.loop.Close()
}

// runOp runs fn on the pool as op and services the loop until it finishes.
func runOp[T any](a *app, op workflow.Op, fn func(ctx context.Context) (T, error)) (T, error) {
	f, err := taskq.Submit(a.pool, string(op), fn)
	if err != nil {
		var zero T
		return zero, err
	}
	a.loop.RunUntil(f.Done())
	return f.Wait(context.Background())
}

// saveSession applies fn to the session and persists it. A failing write
// is reported but does not fail the command.
func (a *app) saveSession(fn func(*session.Config)) {
	cfg, err := a.store.Update(fn)
	if err != nil {
		a.logger.Warn("saving session failed", "path", a.store.Path(), "error", err)
		a.console.Logf(console.Warning, "Could not save session: %v", err)
		return
	}
	a.session = cfg
}

func (a *app) rememberRoot(root string) {
	if root == "" || root == a.session.Root {
		return
	}
	a.saveSession(func(c *session.Config) { c.Root = root })
}

// readLine reads one line from stdin without the line ending.
func (a *app) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// confirm asks a yes/no question; anything but y/yes is a no.
func (a *app) confirm(question string) (bool, error) {
	_, _ = fmt.Fprintf(a.out, "%s [y/N]: ", question)
	answer, err := a.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// reasonPrompter returns fixed when set, or asks on the loop goroutine.
func (a *app) reasonPrompter(fixed string) workflow.Prompter {
	if strings.TrimSpace(fixed) != "" {
		return workflow.PrompterFunc(func(context.Context, parse.ReconcileSet, []string) (string, error) {
			return fixed, nil
		})
	}
	return workflow.PrompterFunc(func(ctx context.Context, files parse.ReconcileSet, choices []string) (string, error) {
		var answer string
		var err error
		if !a.loop.Call(ctx.Done(), func() { answer, err = a.askReason(files, choices) }) {
			return "", taskq.ErrCancelled
		}
		return answer, err
	})
}

// askReason lists the reconciled files and reads a reason. A number picks
// one of choices; any other text is used as is.
func (a *app) askReason(files parse.ReconcileSet, choices []string) (string, error) {
	for _, group := range []struct {
		title string
		lines []string
	}{
		{"Added", files.Added},
		{"Edited", files.Edited},
		{"Deleted", files.Deleted},
	} {
		if len(group.lines) == 0 {
			continue
		}
		a.console.Logf(console.Header, "%s (%d)", group.title, len(group.lines))
		a.console.Log(console.Info, strings.Join(group.lines, "\n"))
	}
	for i, c := range choices {
		_, _ = fmt.Fprintf(a.out, "  %d) %s\n", i+1, c)
	}
	_, _ = fmt.Fprint(a.out, "Reason (number or text, empty to cancel): ")

	answer, err := a.readLine()
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(choices) {
		return choices[n-1], nil
	}
	return answer, nil
}

// askPassword reads the p4 password on the loop goroutine.
func (a *app) askPassword(ctx context.Context) (string, error) {
	var password string
	var err error
	if !a.loop.Call(ctx.Done(), func() {
		_, _ = fmt.Fprint(a.out, "P4 password: ")
		password, err = a.readLine()
	}) {
		return "", taskq.ErrCancelled
	}
	return password, err
}

// loopReporter forwards workflow events to the console through the loop.
// Events arriving after cancellation are dropped.
type loopReporter struct {
	app *app
}

func (r *loopReporter) post(fn func()) {
	if r.app.pool.Cancelled() {
		return
	}
	r.app.loop.Post(fn)
}

func (r *loopReporter) Transition(op workflow.Op, state workflow.State) {
	r.post(func() {
		switch state {
		case workflow.StateDone, workflow.StateNoOp:
			r.app.console.Separator()
		case workflow.StateFailed:
			// run reports the error once the command returns
		default:
			r.app.console.Logf(console.Info, "%s", stateLabel(op, state))
		}
	})
}

func (r *loopReporter) Progress(_ workflow.Op, p workflow.Progress) {
	r.post(func() { r.app.console.Progress(p.Percent(), p.Item) })
}

func (r *loopReporter) Note(tag console.Tag, msg string) {
	r.post(func() { r.app.console.Log(tag, msg) })
}

var stateLabels = map[workflow.State]string{
	workflow.StateCountingFiles:      "Counting files...",
	workflow.StateSyncing:            "Syncing...",
	workflow.StateReconciling:        "Reconciling offline work...",
	workflow.StateAwaitingReason:     "Waiting for a submit reason",
	workflow.StateCreatingChangelist: "Creating changelist...",
	workflow.StateEditingForOpen:     "Saving changelist...",
	workflow.StateOpeningForEdit:     "Opening files for edit...",
	workflow.StateMoving:             "Moving files...",
	workflow.StateSubmitting:         "Submitting...",
	workflow.StateQuerying:           "Querying server...",
	workflow.StateProbing:            "Checking connection...",
	workflow.StateCheckingLogin:      "Checking login...",
	workflow.StateLoggingIn:          "Logging in...",
	workflow.StateReadingClient:      "Reading client workspace...",
	workflow.StateWriting:            "Updating local files...",
}

func stateLabel(op workflow.Op, state workflow.State) string {
	if label, ok := stateLabels[state]; ok {
		return fmt.Sprintf("%s: %s", op, label)
	}
	return fmt.Sprintf("%s: %s", op, state)
}

// unavailableRunner stands in when p4 could not be located and the command
// does not need it.
type unavailableRunner struct {
	err error
}

func (r unavailableRunner) Run(context.Context, p4.Invocation) (p4.Result, error) {
	return p4.Result{}, r.err
}

func (r unavailableRunner) Stream(context.Context, p4.Invocation, func(string)) (p4.Result, error) {
	return p4.Result{}, r.err
}
