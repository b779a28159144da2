// Package layout builds the local and depot paths used by the content
// pipeline: <root>/<UE4|UE5>-UserContent/<version>/<method>/<app>.
package layout

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Method is a distribution method and the third path segment under a content root.
type Method string

const (
	AssetPacks       Method = "AssetPacks"
	CompleteProjects Method = "CompleteProjects"
	Plugins          Method = "Plugins"
)

// Methods lists the valid distribution methods in display order.
var Methods = []Method{AssetPacks, CompleteProjects, Plugins}

const (
	UE4Content = "UE4-UserContent"
	UE5Content = "UE5-UserContent"
)

// ContentRoots are the top-level folders that hold per-version content.
var ContentRoots = []string{UE4Content, UE5Content}

// DefaultDepotRoot is the depot prefix used when none is configured.
const DefaultDepotRoot = "//depot"

var versionPattern = regexp.MustCompile(`^\d+\.\d+$`)

// ValidationError reports user input that cannot form a target path.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Path is a resolved target. It is never mutated; resolve again when input changes.
type Path struct {
	Root    string
	Version string
	Method  Method
	App     string
	// Content is UE4Content or UE5Content, picked from the version.
	Content string
	// Local is the absolute workspace path of the app folder.
	Local string
}

// ParseMethod accepts a canonical method name or the upper-case names used by
// the browser hand-off (ASSET_PACK, CODE_PLUGIN, COMPLETE_PROJECT).
func ParseMethod(s string) (Method, error) {
	switch strings.TrimSpace(s) {
	case string(AssetPacks), "ASSET_PACK":
		return AssetPacks, nil
	case string(CompleteProjects), "COMPLETE_PROJECT":
		return CompleteProjects, nil
	case string(Plugins), "CODE_PLUGIN":
		return Plugins, nil
	}
	return "", &ValidationError{
		Field:   "method",
		Message: fmt.Sprintf("Distribution method must be one of AssetPacks, CompleteProjects or Plugins (got %q).", s),
	}
}

// ValidateVersion checks the X.Y engine version format.
func ValidateVersion(version string) error {
	if !versionPattern.MatchString(version) {
		return &ValidationError{
			Field:   "version",
			Message: "UE Version must be in the format 'X.Y' (e.g., 4.27 or 5.3).",
		}
	}
	return nil
}

// ValidateApp checks that the application name is usable as a path segment.
func ValidateApp(app string) error {
	if app == "" {
		return &ValidationError{Field: "app", Message: "App Name must not be empty."}
	}
	if strings.IndexFunc(app, unicode.IsSpace) >= 0 {
		return &ValidationError{Field: "app", Message: "App Name must not contain spaces."}
	}
	return nil
}

// ContentFor returns the content root segment for a valid version.
func ContentFor(version string) string {
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err == nil && n >= 5 {
		return UE5Content
	}
	return UE4Content
}

// Validate checks version, method and app without requiring a workspace root.
func Validate(version string, method Method, app string) error {
	if err := ValidateVersion(version); err != nil {
		return err
	}
	if _, err := ParseMethod(string(method)); err != nil {
		return err
	}
	return ValidateApp(app)
}

// Resolve validates the inputs and builds the target path.
func Resolve(root, version string, method Method, app string) (Path, error) {
	if err := Validate(version, method, app); err != nil {
		return Path{}, err
	}
	if strings.TrimSpace(root) == "" {
		return Path{}, &ValidationError{Field: "root", Message: "Please select a workspace folder first."}
	}

	content := ContentFor(version)
	return Path{
		Root:    root,
		Version: version,
		Method:  method,
		App:     app,
		Content: content,
		Local:   Join(root, content, version, string(method), app),
	}, nil
}

// Depot returns the depot path of the target under depotRoot.
func (p Path) Depot(depotRoot string) string {
	return DepotPath(depotRoot, p.Version, p.Method, p.App)
}

// DepotPath builds a depot path from already validated parts.
func DepotPath(depotRoot, version string, method Method, app string) string {
	if depotRoot == "" {
		depotRoot = DefaultDepotRoot
	}
	return strings.TrimRight(depotRoot, "/") + "/" + ContentFor(version) + "/" + version + "/" + string(method) + "/" + app
}

// LocalFromDepot maps a depot path under depotRoot into the workspace root.
func LocalFromDepot(root, depotRoot, depotPath string) string {
	if depotRoot == "" {
		depotRoot = DefaultDepotRoot
	}
	rel := strings.TrimPrefix(depotPath, strings.TrimRight(depotRoot, "/")+"/")
	return Join(root, strings.Split(rel, "/")...)
}

// Wildcard appends the recursive "..." wildcard to a local or depot path.
func Wildcard(path string) string {
	sep := "/"
	if isWindowsStyle(path) {
		sep = `\`
	}
	return strings.TrimRight(path, sep) + sep + "..."
}

// Join joins path elements in the style of root. Windows-style roots keep
// backslash separators even when running elsewhere.
func Join(root string, elems ...string) string {
	if filepath.Separator == '\\' || !isWindowsStyle(root) {
		return filepath.Join(append([]string{root}, elems...)...)
	}
	parts := []string{strings.TrimRight(root, `\`)}
	for _, e := range elems {
		if e = strings.Trim(e, `\/`); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, `\`)
}

// Parent returns the directory containing path, in the style of path.
func Parent(path string) string {
	if filepath.Separator == '\\' || !isWindowsStyle(path) {
		return filepath.Dir(path)
	}
	trimmed := strings.TrimRight(path, `\`)
	i := strings.LastIndex(trimmed, `\`)
	if i < 0 {
		return trimmed
	}
	if i == 2 && trimmed[1] == ':' {
		return trimmed[:3]
	}
	return trimmed[:i]
}

func isWindowsStyle(p string) bool {
	if strings.HasPrefix(p, "//") {
		return false
	}
	if strings.Contains(p, `\`) {
		return true
	}
	return len(p) >= 2 && p[1] == ':' && unicode.IsLetter(rune(p[0]))
}
