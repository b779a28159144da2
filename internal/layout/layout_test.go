package layout

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_WindowsRoot(t *testing.T) {
	p, err := Resolve(`C:\ws`, "5.3", AssetPacks, "Foo")
	require.NoError(t, err)

	assert.Equal(t, `C:\ws\UE5-UserContent\5.3\AssetPacks\Foo`, p.Local)
	assert.Equal(t, UE5Content, p.Content)
	assert.Equal(t, "//depot/UE5-UserContent/5.3/AssetPacks/Foo", p.Depot(""))
}

func TestResolve_ContentThreshold(t *testing.T) {
	for _, tc := range []struct {
		version string
		want    string
	}{
		{"4.0", UE4Content},
		{"4.27", UE4Content},
		{"4.99", UE4Content},
		{"5.0", UE5Content},
		{"5.3", UE5Content},
		{"5.10", UE5Content},
		{"6.1", UE5Content},
		{"10.0", UE5Content},
		{"0.5", UE4Content},
	} {
		t.Run(tc.version, func(t *testing.T) {
			for _, m := range Methods {
				p, err := Resolve("/ws", tc.version, m, "App")
				require.NoError(t, err)
				assert.Equal(t, tc.want, p.Content)
				assert.Contains(t, p.Local, tc.want)

				other := UE4Content
				if tc.want == UE4Content {
					other = UE5Content
				}
				assert.NotContains(t, p.Local, other)
			}
		})
	}
}

func TestResolve_InvalidVersion(t *testing.T) {
	for _, v := range []string{"5", "v5.0", "", "5.", ".5", "5.0.1", "5,3", " 5.3", "five.three"} {
		t.Run(v, func(t *testing.T) {
			_, err := Resolve("/ws", v, AssetPacks, "Foo")
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, "version", verr.Field)
			assert.Equal(t, "UE Version must be in the format 'X.Y' (e.g., 4.27 or 5.3).", verr.Error())
		})
	}
}

func TestResolve_InvalidApp(t *testing.T) {
	for _, app := range []string{"", "My App", "Tab\tApp", "trailing "} {
		_, err := Resolve("/ws", "5.3", Plugins, app)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "app", verr.Field)
	}
}

func TestResolve_InvalidMethodAndRoot(t *testing.T) {
	_, err := Resolve("/ws", "5.3", Method("Bundles"), "Foo")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "method", verr.Field)

	_, err = Resolve("  ", "5.3", AssetPacks, "Foo")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "root", verr.Field)
}

func TestResolve_NativeRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	p, err := Resolve(root, "4.27", CompleteProjects, "Demo")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, UE4Content, "4.27", "CompleteProjects", "Demo"), p.Local)
}

func TestParseMethod(t *testing.T) {
	for in, want := range map[string]Method{
		"AssetPacks":       AssetPacks,
		"ASSET_PACK":       AssetPacks,
		"CompleteProjects": CompleteProjects,
		"COMPLETE_PROJECT": CompleteProjects,
		"Plugins":          Plugins,
		"CODE_PLUGIN":      Plugins,
		" Plugins ":        Plugins,
	} {
		got, err := ParseMethod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMethod("plugins")
	assert.Error(t, err)
}

func TestDepotPath(t *testing.T) {
	assert.Equal(t, "//content/UE4-UserContent/4.26/Plugins/Tool", DepotPath("//content/", "4.26", Plugins, "Tool"))
	assert.Equal(t, "//depot/UE5-UserContent/5.1/AssetPacks/X", DepotPath("", "5.1", AssetPacks, "X"))
}

func TestLocalFromDepot(t *testing.T) {
	got := LocalFromDepot(`D:\p4`, "//depot", "//depot/UE5-UserContent/5.3/Plugins/Foo")
	assert.Equal(t, `D:\p4\UE5-UserContent\5.3\Plugins\Foo`, got)
}

func TestWildcard(t *testing.T) {
	assert.Equal(t, "//depot/UE5-UserContent/5.3/AssetPacks/Foo/...", Wildcard("//depot/UE5-UserContent/5.3/AssetPacks/Foo"))
	assert.Equal(t, `C:\ws\Foo\...`, Wildcard(`C:\ws\Foo\`))
	assert.Equal(t, "/ws/Foo/...", Wildcard("/ws/Foo"))
}

func TestJoin_WindowsStyleTrimsSeparators(t *testing.T) {
	got := Join(`C:\ws\`, "UE5-UserContent", `5.3\`, "/AssetPacks")
	assert.Equal(t, `C:\ws\UE5-UserContent\5.3\AssetPacks`, got)
	assert.False(t, strings.Contains(got, "/"))
}

func TestParent(t *testing.T) {
	assert.Equal(t, `C:\ws\UE5-UserContent\5.3\AssetPacks`, Parent(`C:\ws\UE5-UserContent\5.3\AssetPacks\Foo`))
	assert.Equal(t, `C:\`, Parent(`C:\ws`))
	assert.Equal(t, filepath.Join("/ws", "a"), Parent(filepath.Join("/ws", "a", "b")))
}
