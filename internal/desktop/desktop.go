// Package desktop hands folders to the platform file browser.
package desktop

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Opener shows a folder to the user
type Opener interface {
	// OpenFolder opens path in the platform file browser
	OpenFolder(ctx context.Context, path string) error
}

// Client implements Opener by shelling out to the platform launcher
type Client struct {
	goos string
}

// NewClient creates a new desktop client for the running platform
func NewClient() *Client {
	return &Client{goos: runtime.GOOS}
}

// command returns the launcher invocation for path
func (c *Client) command(path string) (string, []string) {
	switch c.goos {
	case "windows":
		return "explorer", []string{path}
	case "darwin":
		return "open", []string{path}
	default:
		return "xdg-open", []string{path}
	}
}

// OpenFolder opens path in the file browser
func (c *Client) OpenFolder(ctx context.Context, path string) error {
	name, args := c.command(path)
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// explorer exits with 1 even when the window opened
		if exitErr, ok := err.(*exec.ExitError); ok && c.goos == "windows" && exitErr.ExitCode() == 1 {
			return nil
		}
		return fmt.Errorf("%s %s failed: %w: %s", name, path, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Noop implements Opener without opening anything, for headless runs
type Noop struct{}

// OpenFolder does nothing
func (Noop) OpenFolder(context.Context, string) error {
	return nil
}
