// Package parse turns the line-oriented text printed by p4 into structured
// records. Each function handles one subcommand family and never runs p4.
package parse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseError reports output that lacks the markers a parser relies on.
type ParseError struct {
	Command string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unexpected %s output: %s", e.Command, e.Reason)
}

// Lines splits text into trimmed, non-empty lines.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// CountLines returns the number of non-empty lines, e.g. the file count of "p4 files".
func CountLines(text string) int {
	return len(Lines(text))
}

// ConnectionInfo is the subset of "p4 info" shown to the user.
type ConnectionInfo struct {
	ServerAddress string
	User          string
	Client        string
	ClientRoot    string
	// View holds the client view mappings when a client spec was read.
	View []string
}

// ParseInfo reads "Key: value" lines of "p4 info". Unknown keys are ignored
// and missing keys leave the field empty.
func ParseInfo(text string) ConnectionInfo {
	var info ConnectionInfo
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Server address":
			info.ServerAddress = value
		case "User name":
			info.User = value
		case "Client name":
			info.Client = value
		case "Client root":
			info.ClientRoot = value
		}
	}
	return info
}

// ClientSpec is the part of "p4 client -o" the tool uses.
type ClientSpec struct {
	Name string
	Root string
	View []string
}

// ParseClientSpec reads the Client, Root and View fields of a client spec.
// View mappings are the tab-indented lines following "View:".
func ParseClientSpec(text string) ClientSpec {
	var spec ClientSpec
	inView := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")
		if inView {
			if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, " ") {
				if m := strings.TrimSpace(line); m != "" {
					spec.View = append(spec.View, m)
				}
				continue
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			inView = false
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch key {
		case "Client":
			spec.Name = strings.TrimSpace(value)
		case "Root":
			spec.Root = strings.TrimSpace(value)
		case "View":
			inView = true
		}
	}
	return spec
}

// ParseChangeCreation extracts the id from "Change 123 created.".
func ParseChangeCreation(text string) (int, error) {
	lines := Lines(text)
	if len(lines) == 0 {
		return 0, &ParseError{Command: "change -i", Reason: "empty output"}
	}
	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return 0, &ParseError{Command: "change -i", Reason: fmt.Sprintf("no change number in %q", lines[0])}
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, &ParseError{Command: "change -i", Reason: fmt.Sprintf("no change number in %q", lines[0])}
	}
	return id, nil
}

// ReconcileSet buckets the lines printed by "p4 reconcile".
type ReconcileSet struct {
	Added   []string
	Edited  []string
	Deleted []string
}

// Total is the number of classified lines.
func (s ReconcileSet) Total() int {
	return len(s.Added) + len(s.Edited) + len(s.Deleted)
}

// Empty reports whether nothing was classified.
func (s ReconcileSet) Empty() bool {
	return s.Total() == 0
}

// Summary renders "N added, N edited, N deleted" for the non-zero buckets.
func (s ReconcileSet) Summary() string {
	var parts []string
	if n := len(s.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(s.Edited); n > 0 {
		parts = append(parts, fmt.Sprintf("%d edited", n))
	}
	if n := len(s.Deleted); n > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", n))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// ParseReconcile classifies each line by the first of "add", "edit", "delete"
// it contains, case-insensitively. Lines matching none are dropped. A path
// that itself contains one of the words can land in the wrong bucket.
func ParseReconcile(text string) ReconcileSet {
	var set ReconcileSet
	for _, line := range Lines(text) {
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "add"):
			set.Added = append(set.Added, line)
		case strings.Contains(lower, "edit"):
			set.Edited = append(set.Edited, line)
		case strings.Contains(lower, "delete"):
			set.Deleted = append(set.Deleted, line)
		}
	}
	return set
}

// HistoryRow is one submitted changelist.
type HistoryRow struct {
	ID          int
	Date        string
	User        string
	Description string
}

// ParseHistory reads "p4 changes -l" output. A "Change " line starts a record;
// its description is the next non-empty line that does not start another
// record. Rows come back sorted by id, newest first. Malformed record lines are
// skipped and reported through a *ParseError next to the rows that did parse.
func ParseHistory(text string) ([]HistoryRow, error) {
	var rows []HistoryRow
	var bad []string

	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "Change ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 6 {
			bad = append(bad, line)
			continue
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			bad = append(bad, line)
			continue
		}
		user, _, _ := strings.Cut(fields[5], "@")
		row := HistoryRow{ID: id, Date: fields[3], User: user}

		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" {
				continue
			}
			if !strings.HasPrefix(next, "Change ") {
				row.Description = next
				i = j
			}
			break
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(a, b int) bool { return rows[a].ID > rows[b].ID })

	if len(bad) > 0 {
		return rows, &ParseError{
			Command: "changes",
			Reason:  fmt.Sprintf("skipped %d malformed record(s): %s", len(bad), strings.Join(bad, "; ")),
		}
	}
	return rows, nil
}

// ParseDirs returns the directories printed by "p4 dirs" in tool order.
func ParseDirs(text string) []string {
	return Lines(text)
}

// NeedsLogin reports whether "p4 login -s" stderr means a fresh login is required.
func NeedsLogin(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "invalid or unset") ||
		strings.Contains(lower, "ticket expired") ||
		strings.Contains(lower, "session has expired")
}

const placeholderDescription = "<enter description here>"

// SetChangeDescription replaces the Description block of a change spec
// (as printed by "p4 change -o") with desc. Everything else is kept.
func SetChangeDescription(spec, desc string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(spec, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines)+1)
	found := false

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if !strings.HasPrefix(line, "Description:") {
			out = append(out, line)
			continue
		}

		found = true
		out = append(out, "Description:")
		for _, d := range strings.Split(desc, "\n") {
			out = append(out, "\t"+d)
		}

		// Drop the old description body up to the next field.
		for i+1 < len(lines) {
			next := lines[i+1]
			if strings.HasPrefix(next, "\t") || strings.TrimSpace(next) == placeholderDescription {
				i++
				continue
			}
			break
		}
	}

	if !found {
		return "", &ParseError{Command: "change -o", Reason: "no Description field"}
	}
	return strings.Join(out, "\n"), nil
}

// DropFiles removes the Files block from a change spec so that saving it
// does not pull files already open in the default changelist.
func DropFiles(spec string) string {
	lines := strings.Split(strings.ReplaceAll(spec, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		if !strings.HasPrefix(lines[i], "Files:") {
			out = append(out, lines[i])
			continue
		}
		for i+1 < len(lines) && strings.HasPrefix(lines[i+1], "\t") {
			i++
		}
	}
	return strings.Join(out, "\n")
}
