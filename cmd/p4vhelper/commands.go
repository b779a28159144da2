package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/handoff"
	"github.com/schaermu/p4vhelper/internal/layout"
	"github.com/schaermu/p4vhelper/internal/parse"
	"github.com/schaermu/p4vhelper/internal/session"
	"github.com/schaermu/p4vhelper/internal/workflow"
)

// probe checks the server before a workflow that changes anything.
func (a *app) probe() error {
	_, err := runOp(a, workflow.OpConnect, func(ctx context.Context) (parse.ConnectionInfo, error) {
		return a.engine.Probe(ctx)
	})
	return err
}

func newResolveCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Print the local and depot path of the target folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, false)
			if err != nil {
				return err
			}
			defer a.close()

			target, _, err := a.resolveTarget(env)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(env.stdout, "local: %s\ndepot: %s\n", target.Local, target.Depot(a.cfg.DepotRoot()))
			return nil
		},
	}
}

func newCreateCmd(env *cmdEnv) *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the target folder in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, false)
			if err != nil {
				return err
			}
			defer a.close()

			target, _, err := a.resolveTarget(env)
			if err != nil {
				return err
			}
			if _, err := runOp(a, workflow.OpCreate, func(ctx context.Context) (bool, error) {
				return a.engine.CreateFolder(ctx, target, open)
			}); err != nil {
				return err
			}
			a.rememberRoot(target.Root)
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "open the folder afterwards")
	return cmd
}

func newSyncCmd(env *cmdEnv) *cobra.Command {
	var noOpen bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Get the latest revision of the target folder",
		Long: `Sync force-syncs <depot>/<UE4|UE5>-UserContent/<version>/<method>/<app>/...
to head, printing progress for every file, and counts the files that ended
up in the local folder. The folder is opened afterwards unless --no-open is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, true)
			if err != nil {
				return err
			}
			defer a.close()

			target, _, err := a.resolveTarget(env)
			if err != nil {
				return err
			}
			if err := a.probe(); err != nil {
				return err
			}
			if _, err := runOp(a, workflow.OpSync, func(ctx context.Context) (*workflow.SyncResult, error) {
				return a.engine.Sync(ctx, target, !noOpen)
			}); err != nil {
				return err
			}
			a.rememberRoot(target.Root)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noOpen, "no-open", false, "do not open the folder when the sync succeeds")
	return cmd
}

func newSubmitCmd(env *cmdEnv) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Reconcile offline work in the target folder and submit it",
		Long: `Submit runs "p4 reconcile" on the target folder. When files were added,
edited or deleted it asks for a reason (unless --reason is given), creates a
changelist described as "<reason> <case> Reconciled offline work" and submits it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, true)
			if err != nil {
				return err
			}
			defer a.close()

			target, f, err := a.resolveTarget(env)
			if err != nil {
				return err
			}
			if err := a.probe(); err != nil {
				return err
			}
			req := workflow.SubmitRequest{Target: target, Case: f.sfCase}
			if _, err := runOp(a, workflow.OpSubmit, func(ctx context.Context) (*workflow.SubmitResult, error) {
				return a.engine.ReconcileSubmit(ctx, req, a.reasonPrompter(reason))
			}); err != nil {
				return err
			}
			a.rememberRoot(target.Root)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "submit reason, skips the prompt")
	return cmd
}

func newMoveCmd(env *cmdEnv) *cobra.Command {
	var name, to string
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Rename or move the target folder in one changelist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, true)
			if err != nil {
				return err
			}
			defer a.close()

			target, f, err := a.resolveTarget(env)
			if err != nil {
				return err
			}
			if err := a.probe(); err != nil {
				return err
			}
			req := workflow.MoveRequest{Source: target, NewName: name, NewLocation: to, Case: f.sfCase}
			_, err = runOp(a, workflow.OpMove, func(ctx context.Context) (*workflow.MoveResult, error) {
				return a.engine.RenameMove(ctx, req)
			})
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new folder name")
	cmd.Flags().StringVar(&to, "to", "", "new parent folder (default is the current parent)")
	return cmd
}

func newFindCmd(env *cmdEnv) *cobra.Command {
	var match string
	cmd := &cobra.Command{
		Use:   "find [app]",
		Short: "Search the depot for folders of an app",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, true)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := a.resolveFields(env)
			if err != nil {
				return err
			}
			name := f.app
			if len(args) == 1 {
				name = args[0]
			}

			dirs, err := runOp(a, workflow.OpSearch, func(ctx context.Context) ([]string, error) {
				return a.engine.Search(ctx, name, match)
			})
			if err != nil || len(dirs) == 0 {
				return err
			}

			table := tablewriter.NewWriter(a.out)
			table.SetBorder(false)
			table.SetAutoWrapText(false)
			if f.root == "" {
				table.SetHeader([]string{"Depot path"})
			} else {
				table.SetHeader([]string{"Depot path", "Local path"})
			}
			for _, d := range dirs {
				if f.root == "" {
					table.Append([]string{d})
				} else {
					table.Append([]string{d, layout.LocalFromDepot(f.root, a.cfg.DepotRoot(), d)})
				}
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "only keep depot paths matching this glob (** allowed)")
	return cmd
}

func newHistoryCmd(env *cmdEnv) *cobra.Command {
	var user string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List submitted changelists of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, true)
			if err != nil {
				return err
			}
			defer a.close()

			rows, err := runOp(a, workflow.OpHistory, func(ctx context.Context) ([]parse.HistoryRow, error) {
				return a.engine.History(ctx, user, limit)
			})
			if err != nil || len(rows) == 0 {
				return err
			}

			table := tablewriter.NewWriter(a.out)
			table.SetHeader([]string{"Change", "Date", "User", "Description"})
			table.SetBorder(false)
			table.SetAutoWrapText(false)
			for _, r := range rows {
				table.Append([]string{strconv.Itoa(r.ID), r.Date, r.User, r.Description})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "p4 user (default is the logged in user)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of changes (default from config)")
	return cmd
}

func newDescribeCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <change>",
		Short: "Show a submitted changelist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			change, err := strconv.Atoi(args[0])
			if err != nil {
				return &layout.ValidationError{Field: "change", Message: fmt.Sprintf("Invalid changelist number %q.", args[0])}
			}

			a, err := newApp(env, true)
			if err != nil {
				return err
			}
			defer a.close()

			text, err := runOp(a, workflow.OpDescribe, func(ctx context.Context) (string, error) {
				return a.engine.Describe(ctx, change)
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(a.out, text)
			return nil
		},
	}
}

func newConnectCmd(env *cmdEnv) *cobra.Command {
	var port, user string
	var passwordStdin bool
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Log in to the p4 server and show the connection details",
		Long: `Connect checks that the server answers, logs in when the ticket is missing
or expired, and prints the connection details and client view. Server and
user are remembered for the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, true)
			if err != nil {
				return err
			}
			defer a.close()

			creds := workflow.Credentials{Port: port, User: user, Password: a.askPassword}
			if passwordStdin {
				password, err := a.readLine()
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				creds.Password = func(context.Context) (string, error) { return password, nil }
			}

			result, err := runOp(a, workflow.OpConnect, func(ctx context.Context) (*workflow.ConnectResult, error) {
				return a.engine.Connect(ctx, creds)
			})
			if err != nil {
				return err
			}

			conn := a.engine.Client().Connection()
			a.saveSession(func(c *session.Config) {
				if conn.Port != "" {
					c.P4.Port = conn.Port
				}
				if conn.User != "" {
					c.P4.User = conn.User
				}
				if root := result.Info.ClientRoot; root != "" && c.Root == "" {
					c.Root = root
				}
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "p4 server address (P4PORT)")
	cmd.Flags().StringVar(&user, "user", "", "p4 user name (P4USER)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newClearCmd(env *cmdEnv) *cobra.Command {
	var yes bool
	var keep []string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the contents of every version/method folder in the workspace",
		Long: `Clear walks <root>/<UE4|UE5>-UserContent/<version>/<method> and deletes
everything below the method folders. Paths matching a --keep pattern
(relative to the root, ** allowed) are left in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, false)
			if err != nil {
				return err
			}
			defer a.close()

			root := env.target.root
			if root == "" {
				root = a.session.Root
			}
			if root == "" {
				return &layout.ValidationError{Field: "root", Message: "Please select a workspace folder first."}
			}
			if !yes {
				ok, err := a.confirm(fmt.Sprintf("Delete all content folders under %s?", root))
				if err != nil {
					return err
				}
				if !ok {
					a.console.Log(console.Info, "Clear cancelled")
					return nil
				}
			}

			result, err := runOp(a, workflow.OpClear, func(ctx context.Context) (*workflow.ClearResult, error) {
				return a.engine.ClearWorkspace(ctx, root, keep)
			})
			if err != nil {
				return err
			}
			if n := len(result.Failures); n > 0 {
				return fmt.Errorf("%d item(s) could not be removed", n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().StringSliceVar(&keep, "keep", nil, "glob of paths to keep, relative to the root (repeatable)")
	return cmd
}

func newFilesCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:       "files <add|edit|revert>",
		Short:     "Open or revert every file of the target folder",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(workflow.ActionAdd), string(workflow.ActionEdit), string(workflow.ActionRevert)},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, true)
			if err != nil {
				return err
			}
			defer a.close()

			target, _, err := a.resolveTarget(env)
			if err != nil {
				return err
			}
			_, err = runOp(a, workflow.OpFiles, func(ctx context.Context) (int, error) {
				return a.engine.OpenFiles(ctx, workflow.FileAction(args[0]), target)
			})
			return err
		},
	}
}

func newEngineInfoCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "engine-info",
		Short: "Print the product info block with the custom engine version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, false)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := a.resolveFields(env)
			if err != nil {
				return err
			}
			if err := layout.Validate(f.version, f.method, f.app); err != nil {
				return err
			}
			if _, ok := handoff.CustomEngineVersion(f.version); !ok {
				a.console.Logf(console.Warning, "No custom engine build known for UE %s", f.version)
			}
			_, _ = fmt.Fprintln(a.out, handoff.InfoBlock(f.app, f.method, f.version))
			return nil
		},
	}
}

func newSessionCmd(env *cmdEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show or change the remembered session",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the session file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, false)
			if err != nil {
				return err
			}
			defer a.close()

			data, err := session.Encode(a.session)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "# %s\n%s", a.store.Path(), data)
			return nil
		},
	}

	themeCmd := &cobra.Command{
		Use:       "theme <dark|light|toggle>",
		Short:     "Set the colour theme",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"dark", "light", "toggle"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(env, false)
			if err != nil {
				return err
			}
			defer a.close()

			a.saveSession(func(c *session.Config) {
				switch strings.ToLower(args[0]) {
				case "dark":
					c.DarkMode = true
				case "light":
					c.DarkMode = false
				default:
					c.DarkMode = !c.DarkMode
				}
			})
			theme := "light"
			if a.session.DarkMode {
				theme = "dark"
			}
			a.console.Logf(console.Success, "Theme set to %s", theme)
			return nil
		},
	}

	cmd.AddCommand(showCmd, themeCmd)
	return cmd
}

func newVersionCmd(env *cmdEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(env.stdout, "p4vhelper %s\n", version)
			_, _ = fmt.Fprintf(env.stdout, "  commit: %s\n", commit)
			_, _ = fmt.Fprintf(env.stdout, "  built:  %s\n", date)
		},
	}
}
