package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 14, 9, 3, 7, 0, time.UTC)
}

func TestConsole_TimestampedLines(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, Options{NoColor: true, Now: fixedClock})

	c.Log(Info, "Checking connection")
	c.Logf(Success, "Changelist %d submitted", 42)
	c.Log(Error, "first\nsecond\n")

	assert.Equal(t,
		"[09:03:07] Checking connection\n"+
			"[09:03:07] Changelist 42 submitted\n"+
			"[09:03:07] first\n"+
			"           second\n",
		buf.String())
}

func TestConsole_Colors(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, Options{ForceColor: true, Now: fixedClock})

	c.Log(Error, "boom")
	assert.Contains(t, buf.String(), "\x1b[31mboom\x1b[0m")

	buf.Reset()
	c.Log(Success, "ok")
	assert.Contains(t, buf.String(), "\x1b[32mok\x1b[0m")
}

func TestConsole_Progress(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, Options{NoColor: true, Now: fixedClock})

	c.Progress(50, "file.uasset")
	c.Progress(250, "done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "[09:03:07] [###############...............]  50.0% file.uasset", lines[0])
	assert.Contains(t, lines[1], "100.0% done")
}

func TestConsole_Separator(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{NoColor: true}).Separator()
	assert.Equal(t, strings.Repeat("-", 60)+"\n", buf.String())
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "info", Info.String())
	assert.Equal(t, "hint", Hint.String())
	assert.Equal(t, "error", Error.String())
}
