// Package console is the user-facing log: append-only, one timestamped line
// per message, coloured by tag.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Tag classifies a console line.
type Tag int

const (
	Info Tag = iota
	Success
	Warning
	Error
	Hint
	Header
)

func (t Tag) String() string {
	switch t {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Hint:
		return "hint"
	case Header:
		return "header"
	default:
		return "info"
	}
}

// Options configures a Console.
type Options struct {
	// NoColor disables ANSI colour codes.
	NoColor bool
	// ForceColor keeps colour codes even when out is not a terminal.
	ForceColor bool
	// Light switches the info colour for light terminal backgrounds.
	Light bool
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Console writes tagged lines to an io.Writer. It is safe for concurrent use,
// but the CLI keeps a single writer by posting through the UI loop.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	now    func() time.Time
	colors map[Tag]*color.Color
}

// New creates a console writing to out.
func New(out io.Writer, opts Options) *Console {
	info := color.New(color.FgHiWhite)
	if opts.Light {
		info = color.New(color.Reset)
	}
	colors := map[Tag]*color.Color{
		Info:    info,
		Success: color.New(color.FgGreen),
		Warning: color.New(color.FgYellow),
		Error:   color.New(color.FgRed),
		Hint:    color.New(color.FgYellow, color.Italic),
		Header:  color.New(color.FgCyan, color.Bold),
	}
	for _, c := range colors {
		switch {
		case opts.NoColor:
			c.DisableColor()
		case opts.ForceColor:
			c.EnableColor()
		}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Console{out: out, now: now, colors: colors}
}

// Log writes one message. Multi-line messages keep the timestamp on the first
// line and indent the rest.
func (c *Console) Log(tag Tag, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := c.now().Format("[15:04:05]")
	lines := strings.Split(strings.TrimRight(msg, "\n"), "\n")
	for i, line := range lines {
		prefix := stamp
		if i > 0 {
			prefix = strings.Repeat(" ", len(stamp))
		}
		_, _ = fmt.Fprintf(c.out, "%s %s\n", prefix, c.colors[tag].Sprint(line))
	}
}

// Logf formats and writes one message.
func (c *Console) Logf(tag Tag, format string, args ...any) {
	c.Log(tag, fmt.Sprintf(format, args...))
}

// Separator writes a horizontal rule between operations.
func (c *Console) Separator() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, strings.Repeat("-", 60))
}

// Progress renders a text progress bar for percent in [0,100].
func (c *Console) Progress(percent float64, item string) {
	const width = 30
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * width)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
	c.Logf(Info, "[%s] %5.1f%% %s", bar, percent, item)
}

// Writer returns the underlying writer for tabular output.
func (c *Console) Writer() io.Writer {
	return c.out
}
