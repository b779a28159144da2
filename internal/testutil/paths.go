// Package testutil holds helpers shared by package tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// FindProjectRoot walks up the directory tree from the current file to find go.mod
func FindProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(1)
	if !ok {
		return "", fmt.Errorf("failed to get caller information")
	}

	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// P4Output returns a captured p4 output sample from testdata/p4. Line endings
// are normalized so samples behave the same on every platform.
func P4Output(t testing.TB, name string) string {
	t.Helper()

	root, err := FindProjectRoot()
	if err != nil {
		t.Fatalf("locating project root: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "testdata", "p4", name))
	if err != nil {
		t.Fatalf("reading p4 sample %s: %v", name, err)
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n")
}
