//go:build integration

package p4d

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const appFolder = "UE5-UserContent/5.3/AssetPacks/Foo"

func TestWorkflows(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	h := NewHarness(t)
	defer h.Cleanup()

	if err := h.BuildBinary(ctx); err != nil {
		t.Fatalf("build binary: %v", err)
	}
	if err := h.StartServer(ctx); err != nil {
		t.Fatalf("start server: %v", err)
	}

	target := []string{"--root", h.workspace, "--ue", "5.3", "--app", "Foo"}

	t.Run("A_CreateAndSubmit", func(t *testing.T) {
		h.MustRun(ctx, append([]string{"create"}, target...)...)
		h.WriteFile(appFolder+"/Content/Rock.uasset", "rock")
		h.WriteFile(appFolder+"/Content/Tree.uasset", "tree")

		out := h.MustRun(ctx, append([]string{"submit", "--case", "00000001", "--reason", "New Submission"}, target...)...)
		if !strings.Contains(out, "submitted") {
			t.Errorf("expected submission, got:\n%s", out)
		}

		stdout, _, _, err := h.P4(ctx, "", "files", "//depot/"+appFolder+"/...")
		if err != nil {
			t.Fatal(err)
		}
		if n := len(strings.Split(strings.TrimSpace(stdout), "\n")); n != 2 {
			t.Errorf("expected 2 depot files, got %d:\n%s", n, stdout)
		}
	})

	t.Run("B_NoOpSubmit", func(t *testing.T) {
		out := h.MustRun(ctx, append([]string{"submit", "--case", "00000001", "--reason", "Update"}, target...)...)
		if !strings.Contains(out, "No changes detected") {
			t.Errorf("expected no-op, got:\n%s", out)
		}
	})

	t.Run("C_History", func(t *testing.T) {
		out := h.MustRun(ctx, "history", "--user", testUser)
		if !strings.Contains(out, "New Submission 00000001 Reconciled offline work") {
			t.Errorf("history misses the submission:\n%s", out)
		}
	})

	t.Run("D_SyncRestoresDeletedFile", func(t *testing.T) {
		rel := appFolder + "/Content/Rock.uasset"
		if err := os.Remove(filepath.Join(h.workspace, filepath.FromSlash(rel))); err != nil {
			t.Fatal(err)
		}
		h.MustRun(ctx, append([]string{"sync", "--no-open"}, target...)...)
		if !h.FileExists(rel) {
			t.Errorf("%s not restored by sync", rel)
		}
	})

	t.Run("E_Find", func(t *testing.T) {
		out := h.MustRun(ctx, "find", "Foo")
		if !strings.Contains(out, "//depot/"+appFolder) {
			t.Errorf("find misses the folder:\n%s", out)
		}
	})

	t.Run("F_Move", func(t *testing.T) {
		h.MustRun(ctx, append([]string{"move", "--name", "Bar", "--case", "00000002"}, target...)...)

		_, stderr, code, err := h.P4(ctx, "", "files", "//depot/UE5-UserContent/5.3/AssetPacks/Bar/...")
		if err != nil {
			t.Fatal(err)
		}
		if code != 0 {
			t.Errorf("moved files not in depot: %s", stderr)
		}
	})

	t.Run("G_InvalidVersion", func(t *testing.T) {
		_, stderr, code, err := h.Run(ctx, "", "sync", "--root", h.workspace, "--ue", "five", "--app", "Foo")
		if err != nil {
			t.Fatal(err)
		}
		if code != 2 {
			t.Errorf("expected exit code 2, got %d", code)
		}
		if !strings.Contains(stderr, "UE Version must be in the format") {
			t.Errorf("unexpected stderr:\n%s", stderr)
		}
	})
}
