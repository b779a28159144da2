package p4

import (
	"context"
	"strconv"
	"time"
)

// Connection carries the server/user/workspace overrides passed to every call.
type Connection struct {
	Port   string
	User   string
	Client string
}

func (c Connection) env() []string {
	var env []string
	if c.Port != "" {
		env = append(env, "P4PORT="+c.Port)
	}
	if c.User != "" {
		env = append(env, "P4USER="+c.User)
	}
	if c.Client != "" {
		env = append(env, "P4CLIENT="+c.Client)
	}
	return env
}

// Client issues the p4 subcommands used by the workflows.
type Client struct {
	runner Runner
	conn   Connection
}

// NewClient creates a client on top of runner.
func NewClient(runner Runner, conn Connection) *Client {
	return &Client{runner: runner, conn: conn}
}

// Connection returns the overrides currently in use.
func (c *Client) Connection() Connection {
	return c.conn
}

// SetConnection replaces the overrides, e.g. after an interactive login.
func (c *Client) SetConnection(conn Connection) {
	c.conn = conn
}

func (c *Client) run(ctx context.Context, stdin string, args ...string) (Result, error) {
	return c.runner.Run(ctx, Invocation{Args: args, Stdin: stdin, Env: c.conn.env()})
}

func (c *Client) stream(ctx context.Context, onLine func(string), args ...string) (Result, error) {
	return c.runner.Stream(ctx, Invocation{Args: args, Env: c.conn.env()}, onLine)
}

// Version runs "p4 -V".
func (c *Client) Version(ctx context.Context) (Result, error) {
	return c.run(ctx, "", "-V")
}

// Info runs "p4 info". A positive timeout bounds the call.
func (c *Client) Info(ctx context.Context, timeout time.Duration) (Result, error) {
	return c.runner.Run(ctx, Invocation{Args: []string{"info"}, Env: c.conn.env(), Timeout: timeout})
}

// LoginStatus runs "p4 login -s".
func (c *Client) LoginStatus(ctx context.Context) (Result, error) {
	return c.run(ctx, "", "login", "-s")
}

// Login runs "p4 login -a" with the password on stdin.
func (c *Client) Login(ctx context.Context, password string) (Result, error) {
	return c.run(ctx, password+"\n", "login", "-a")
}

// ClientSpec runs "p4 client -o [name]".
func (c *Client) ClientSpec(ctx context.Context, name string) (Result, error) {
	if name == "" {
		return c.run(ctx, "", "client", "-o")
	}
	return c.run(ctx, "", "client", "-o", name)
}

// ChangeTemplate runs "p4 change -o" and returns a new changelist spec.
func (c *Client) ChangeTemplate(ctx context.Context) (Result, error) {
	return c.run(ctx, "", "change", "-o")
}

// SaveChange runs "p4 change -i" with spec on stdin.
func (c *Client) SaveChange(ctx context.Context, spec string) (Result, error) {
	return c.run(ctx, spec, "change", "-i")
}

// Submit runs "p4 submit -c <id>" and streams its output.
func (c *Client) Submit(ctx context.Context, change int, onLine func(string)) (Result, error) {
	return c.stream(ctx, onLine, "submit", "-c", strconv.Itoa(change))
}

// Files runs "p4 files <path>".
func (c *Client) Files(ctx context.Context, path string) (Result, error) {
	return c.run(ctx, "", "files", path)
}

// Sync runs "p4 sync -f <path>#head" and streams its output.
func (c *Client) Sync(ctx context.Context, path string, onLine func(string)) (Result, error) {
	return c.stream(ctx, onLine, "sync", "-f", path+"#head")
}

// Add runs "p4 add <file>...". p4 add takes no "..." wildcard, so files are listed.
func (c *Client) Add(ctx context.Context, files ...string) (Result, error) {
	return c.run(ctx, "", append([]string{"add"}, files...)...)
}

// Edit runs "p4 edit [-c <id>] <path>". A zero change opens into the default changelist.
func (c *Client) Edit(ctx context.Context, change int, path string) (Result, error) {
	if change == 0 {
		return c.run(ctx, "", "edit", path)
	}
	return c.run(ctx, "", "edit", "-c", strconv.Itoa(change), path)
}

// Revert runs "p4 revert <path>".
func (c *Client) Revert(ctx context.Context, path string) (Result, error) {
	return c.run(ctx, "", "revert", path)
}

// Reconcile runs "p4 reconcile -f -m <path>".
func (c *Client) Reconcile(ctx context.Context, path string) (Result, error) {
	return c.run(ctx, "", "reconcile", "-f", "-m", path)
}

// Move runs "p4 move -c <id> <from> <to>".
func (c *Client) Move(ctx context.Context, change int, from, to string) (Result, error) {
	return c.run(ctx, "", "move", "-c", strconv.Itoa(change), from, to)
}

// Dirs runs "p4 dirs -C <pattern>".
func (c *Client) Dirs(ctx context.Context, pattern string) (Result, error) {
	return c.run(ctx, "", "dirs", "-C", pattern)
}

// Describe runs "p4 describe <id>".
func (c *Client) Describe(ctx context.Context, change int) (Result, error) {
	return c.run(ctx, "", "describe", strconv.Itoa(change))
}

// Changes runs "p4 changes -s submitted -l -m <max> -u <user> <path>".
func (c *Client) Changes(ctx context.Context, user, path string, limit int) (Result, error) {
	return c.run(ctx, "", "changes", "-s", "submitted", "-l", "-m", strconv.Itoa(limit), "-u", user, path)
}
