package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/schaermu/p4vhelper/internal/config"
	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/handoff"
	"github.com/schaermu/p4vhelper/internal/layout"
	"github.com/schaermu/p4vhelper/internal/p4"
	"github.com/schaermu/p4vhelper/internal/workflow"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile     string
	sessionFile string
	logLevel    string
	logFormat   string
	noColor     bool
)

// Exit codes returned by run.
const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if stdin == nil {
		stdin = strings.NewReader("")
	}

	rootCmd := newRootCmd(stdin, stdout, stderr)
	rootCmd.SetArgs(args[1:])
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}
	report(stderr, err)

	var verr *layout.ValidationError
	if errors.As(err, &verr) {
		return exitValidation
	}
	return exitFailure
}

// report prints a failed command's error once, followed by a hint where
// one applies.
func report(stderr io.Writer, err error) {
	con := console.New(stderr, console.Options{NoColor: noColor})
	con.Log(console.Error, err.Error())

	var perr *p4.ProcessError
	switch {
	case errors.As(err, &perr):
		con.Log(console.Hint, perr.Hint())
	case errors.Is(err, workflow.ErrUnreachable):
		con.Log(console.Hint, p4.VPNHint)
	case errors.Is(err, handoff.ErrMalformed):
		con.Log(console.Hint, handoff.MalformedHint)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "p4vhelper",
		Short: "Perforce helper for the UE user content pipeline",
		Long: `p4vhelper wraps the Perforce command-line client (p4) to keep the
<root>/<UE4|UE5>-UserContent/<version>/<method>/<app> folder convention and
to run the recurring content workflows: get revision, reconcile and submit,
rename/move, depot search and submission history.

The target folder is built from --ue, --method and --app, or from the product
data copied from the SF Helper (--payload).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/p4vhelper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session", "", "session file (default is $HOME/.config/p4vhelper/session.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable coloured output")

	tf := &targetFlags{}
	tf.register(rootCmd)

	env := &cmdEnv{stdin: stdin, stdout: stdout, stderr: stderr, target: tf}
	rootCmd.AddCommand(
		newResolveCmd(env),
		newCreateCmd(env),
		newSyncCmd(env),
		newSubmitCmd(env),
		newMoveCmd(env),
		newFindCmd(env),
		newHistoryCmd(env),
		newDescribeCmd(env),
		newConnectCmd(env),
		newClearCmd(env),
		newFilesCmd(env),
		newEngineInfoCmd(env),
		newSessionCmd(env),
		newVersionCmd(env),
	)
	return rootCmd
}

func setupLogger(w io.Writer) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// configDir returns $HOME/.config/p4vhelper.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".config", "p4vhelper"), nil
}

func loadConfig(fsys afero.Fs, logger *slog.Logger) (*config.Config, error) {
	// Determine config file path; only an explicit path has to exist.
	configPath := cfgFile
	optional := configPath == ""
	if optional {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(fsys, configPath, optional)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"p4_binary", cfg.P4.Binary,
		"depot_root", cfg.Depot.Root,
		"probe_timeout", cfg.P4.ProbeTimeout,
		"workers", cfg.Workers)

	return cfg, nil
}

// sessionPath picks the session file: flag, then config, then the default.
func sessionPath(cfg *config.Config) (string, error) {
	if sessionFile != "" {
		return sessionFile, nil
	}
	if cfg.Paths.SessionFile != "" {
		return cfg.Paths.SessionFile, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "session.yaml"), nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
