package desktop

import (
	"context"
	"runtime"
	"testing"
)

func TestNewClient(t *testing.T) {
	c := NewClient()
	if c == nil {
		t.Fatal("NewClient returned nil")
	}
	if c.goos != runtime.GOOS {
		t.Fatalf("expected goos %s, got %s", runtime.GOOS, c.goos)
	}
}

func TestCommand(t *testing.T) {
	for _, tc := range []struct {
		goos string
		want string
	}{
		{goos: "windows", want: "explorer"},
		{goos: "darwin", want: "open"},
		{goos: "linux", want: "xdg-open"},
		{goos: "freebsd", want: "xdg-open"},
	} {
		c := &Client{goos: tc.goos}
		name, args := c.command(`C:\ws\UE5-UserContent`)
		if name != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.goos, tc.want, name)
		}
		if len(args) != 1 || args[0] != `C:\ws\UE5-UserContent` {
			t.Errorf("%s: unexpected args %v", tc.goos, args)
		}
	}
}

func TestNoop(t *testing.T) {
	var o Opener = Noop{}
	if err := o.OpenFolder(context.Background(), "/tmp"); err != nil {
		t.Fatalf("Noop returned error: %v", err)
	}
}
