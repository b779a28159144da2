package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/p4"
	"github.com/schaermu/p4vhelper/internal/parse"
)

// Credentials identify the server and user for a login. Empty fields keep
// the client's current settings. Password is only called when the server
// asks for a new login.
type Credentials struct {
	Port     string
	User     string
	Password func(ctx context.Context) (string, error)
}

// Probe checks that the server answers "p4 info" within the configured timeout.
func (e *Engine) Probe(ctx context.Context) (parse.ConnectionInfo, error) {
	info, err := e.probe(ctx)
	if err != nil {
		return parse.ConnectionInfo{}, err
	}
	e.step(OpConnect, StateDone)
	return info, nil
}

func (e *Engine) probe(ctx context.Context) (parse.ConnectionInfo, error) {
	e.step(OpConnect, StateProbing)
	res, err := e.p4.Info(ctx, e.cfg.P4.ProbeTimeout)
	switch {
	case err != nil:
		return parse.ConnectionInfo{}, e.fail(OpConnect, StateProbing, res, fmt.Errorf("%w: %w", ErrUnreachable, err))
	case !res.OK():
		return parse.ConnectionInfo{}, e.fail(OpConnect, StateProbing, res, fmt.Errorf("%w: %s", ErrUnreachable, res.Message()))
	}

	info := parse.ParseInfo(res.Stdout)
	e.logger.Info("p4 server reachable", "server", info.ServerAddress, "user", info.User)
	return info, nil
}

// Connect makes sure the user holds a valid ticket, logging in when the
// server requires it, and returns the connection details with the client
// view. The workspace root comes from the client spec when info lacks it.
func (e *Engine) Connect(ctx context.Context, creds Credentials) (*ConnectResult, error) {
	conn := e.p4.Connection()
	if creds.Port != "" {
		conn.Port = creds.Port
	}
	if creds.User != "" {
		conn.User = creds.User
	}
	e.p4.SetConnection(conn)

	if _, err := e.probe(ctx); err != nil {
		return nil, err
	}

	result := &ConnectResult{}

	e.step(OpConnect, StateCheckingLogin)
	status, err := e.p4.LoginStatus(ctx)
	if err != nil {
		return nil, e.fail(OpConnect, StateCheckingLogin, status, err)
	}
	if !status.OK() {
		if !parse.NeedsLogin(status.Stderr + status.Stdout) {
			return nil, e.fail(OpConnect, StateCheckingLogin, status, nil)
		}

		e.step(OpConnect, StateLoggingIn)
		if creds.Password == nil {
			return nil, e.fail(OpConnect, StateLoggingIn, p4.Result{}, ErrLoginRequired)
		}
		password, err := creds.Password(ctx)
		if err != nil {
			return nil, e.fail(OpConnect, StateLoggingIn, p4.Result{}, err)
		}
		res, err := e.p4.Login(ctx, password)
		if err != nil || !res.OK() {
			return nil, e.fail(OpConnect, StateLoggingIn, res, err)
		}
		result.LoggedIn = true
		e.note(console.Success, "Login successful")
	}

	e.step(OpConnect, StateReadingClient)
	res, err := e.p4.Info(ctx, 0)
	if err != nil || !res.OK() {
		return nil, e.fail(OpConnect, StateReadingClient, res, err)
	}
	info := parse.ParseInfo(res.Stdout)

	if info.Client != "" && !strings.EqualFold(info.Client, "*unknown*") {
		spec, err := e.p4.ClientSpec(ctx, info.Client)
		if err != nil {
			return nil, e.fail(OpConnect, StateReadingClient, spec, err)
		}
		if spec.OK() {
			cs := parse.ParseClientSpec(spec.Stdout)
			info.View = cs.View
			if info.ClientRoot == "" {
				info.ClientRoot = cs.Root
			}
		} else {
			e.note(console.Warning, "Could not read client %s: %s", info.Client, spec.Message())
		}
	}
	result.Info = info

	e.note(console.Header, "Connection details")
	e.note(console.Info, "Server address: %s", info.ServerAddress)
	e.note(console.Info, "User name: %s", info.User)
	e.note(console.Info, "Client name: %s", info.Client)
	e.note(console.Info, "Client root: %s", info.ClientRoot)
	if len(info.View) > 0 {
		e.note(console.Header, "View mappings")
		for _, m := range info.View {
			e.note(console.Info, "%s", m)
		}
	}

	e.logger.Info("connected", "server", info.ServerAddress, "user", info.User, "client", info.Client, "logged_in", result.LoggedIn)
	e.step(OpConnect, StateDone)
	return result, nil
}
