package parse

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schaermu/p4vhelper/internal/testutil"
)

func TestParseInfo(t *testing.T) {
	info := ParseInfo(testutil.P4Output(t, "info.txt"))

	assert.Equal(t, "ssl:perforce.example.com:1666", info.ServerAddress)
	assert.Equal(t, "jdoe", info.User)
	assert.Equal(t, "jdoe-ws", info.Client)
	assert.Equal(t, `C:\p4\jdoe-ws`, info.ClientRoot)
}

func TestParseInfo_MissingKeysStayEmpty(t *testing.T) {
	info := ParseInfo("User name: jdoe\r\nSomething else: x\nnot a key line\n")
	assert.Equal(t, "jdoe", info.User)
	assert.Empty(t, info.ServerAddress)
	assert.Empty(t, info.Client)
	assert.Empty(t, info.ClientRoot)

	assert.Equal(t, ConnectionInfo{}, ParseInfo(""))
}

func TestParseClientSpec(t *testing.T) {
	spec := ParseClientSpec(testutil.P4Output(t, "client.txt"))

	assert.Equal(t, "jdoe-ws", spec.Name)
	assert.Equal(t, `C:\p4\jdoe-ws`, spec.Root)
	assert.Equal(t, []string{
		"//depot/UE4-UserContent/... //jdoe-ws/UE4-UserContent/...",
		"//depot/UE5-UserContent/... //jdoe-ws/UE5-UserContent/...",
	}, spec.View)
}

func TestParseClientSpec_ViewEndsAtNextField(t *testing.T) {
	spec := ParseClientSpec("View:\n\t//depot/a/... //ws/a/...\n\nType:\twriteable\n\t//not/a/view\n")
	assert.Equal(t, []string{"//depot/a/... //ws/a/..."}, spec.View)
}

func TestParseChangeCreation(t *testing.T) {
	id, err := ParseChangeCreation("Change 123 created.")
	require.NoError(t, err)
	assert.Equal(t, 123, id)

	id, err = ParseChangeCreation("\nChange 10611 created with 2 open file(s).\n")
	require.NoError(t, err)
	assert.Equal(t, 10611, id)

	for _, in := range []string{"", "   \n", "Change", "Change new created."} {
		_, err := ParseChangeCreation(in)
		var perr *ParseError
		assert.True(t, errors.As(err, &perr), "input %q", in)
	}
}

func TestParseReconcile(t *testing.T) {
	set := ParseReconcile(testutil.P4Output(t, "reconcile.txt"))

	assert.Len(t, set.Added, 2)
	assert.Len(t, set.Edited, 2)
	assert.Len(t, set.Deleted, 1)
	assert.Equal(t, 5, set.Total())
	assert.False(t, set.Empty())
	assert.Equal(t, "2 added, 2 edited, 1 deleted", set.Summary())
}

func TestParseReconcile_Priority(t *testing.T) {
	set := ParseReconcile("//depot/Editor/File.txt#1 - opened for delete\nno match here\n")
	// "Editor" wins over "delete": the substring heuristic is order based.
	assert.Len(t, set.Edited, 1)
	assert.Empty(t, set.Deleted)

	set = ParseReconcile("//depot/Padding/a.txt - opened for edit\n")
	assert.Len(t, set.Added, 1, "\"add\" inside a path name takes priority")

	assert.True(t, ParseReconcile("\n\n  \n").Empty())
	assert.Equal(t, "no changes", ParseReconcile("").Summary())
}

func TestParseHistory_SortedDescending(t *testing.T) {
	rows, err := ParseHistory(testutil.P4Output(t, "changes.txt"))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []int{10610, 10452, 9981}, []int{rows[0].ID, rows[1].ID, rows[2].ID})
	assert.Equal(t, HistoryRow{
		ID:          10610,
		Date:        "2024/05/13",
		User:        "jdoe",
		Description: "00123999 Rename/move file(s)",
	}, rows[0])
	assert.Equal(t, "New Submission 00120001 Reconciled offline work", rows[2].Description)
}

func TestParseHistory_TwoRecordsAnyOrder(t *testing.T) {
	for _, in := range []string{
		"Change 1 on 2024/01/01 by a@w\n\n\tfirst\n\nChange 2 on 2024/01/02 by b@w\n\n\tsecond\n",
		"Change 2 on 2024/01/02 by b@w\n\n\tsecond\n\nChange 1 on 2024/01/01 by a@w\n\n\tfirst\n",
	} {
		rows, err := ParseHistory(in)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 2, rows[0].ID)
		assert.Equal(t, "second", rows[0].Description)
		assert.Equal(t, 1, rows[1].ID)
		assert.Equal(t, "first", rows[1].Description)
	}
}

func TestParseHistory_RecordWithoutDescription(t *testing.T) {
	rows, err := ParseHistory("Change 5 on 2024/01/01 by a@w\nChange 4 on 2024/01/01 by b@w\n\n\tdesc four\n")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, rows[0].Description)
	assert.Equal(t, "desc four", rows[1].Description)
}

func TestParseHistory_MalformedIsPartial(t *testing.T) {
	rows, err := ParseHistory("Change x on 2024/01/01 by a@w\nChange 7 on\nChange 8 on 2024/02/02 by c@w\n\tok\n")
	require.Len(t, rows, 1)
	assert.Equal(t, 8, rows[0].ID)

	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "skipped 2 malformed record(s)")

	rows, err = ParseHistory("")
	assert.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCountLinesAndDirs(t *testing.T) {
	assert.Equal(t, 2, CountLines("//depot/a#1 - add change 1\n\n//depot/b#2 - edit change 3\n"))
	assert.Equal(t, 0, CountLines(""))
	assert.Equal(t, []string{"//depot/UE5-UserContent/5.3/Plugins/Foo", "//depot/UE4-UserContent/4.27/Plugins/Foo"},
		ParseDirs("//depot/UE5-UserContent/5.3/Plugins/Foo\r\n//depot/UE4-UserContent/4.27/Plugins/Foo\n"))
}

func TestNeedsLogin(t *testing.T) {
	assert.True(t, NeedsLogin("Perforce password (P4PASSWD) invalid or unset."))
	assert.True(t, NeedsLogin("Your session has expired, please login again."))
	assert.True(t, NeedsLogin("ticket expired"))
	assert.False(t, NeedsLogin("User jdoe ticket expires in 11 hours 59 minutes."))
	assert.False(t, NeedsLogin(""))
}

func TestSetChangeDescription(t *testing.T) {
	spec, err := SetChangeDescription(testutil.P4Output(t, "change_template.txt"), "Update 00123456 Reconciled offline work")
	require.NoError(t, err)

	assert.Contains(t, spec, "Description:\n\tUpdate 00123456 Reconciled offline work\n\nFiles:\n")
	assert.NotContains(t, spec, "<enter description here>")
	assert.Contains(t, spec, "\t//depot/UE5-UserContent/5.3/AssetPacks/Foo/Content/Tree.uasset\t# add")
	assert.Contains(t, spec, "Status:\tnew")
}

func TestSetChangeDescription_ReplacesExistingText(t *testing.T) {
	spec, err := SetChangeDescription("Change:\tnew\r\n\r\nDescription:\r\n\told one\r\n\told two\r\n\r\nFiles:\r\n", "a\nb")
	require.NoError(t, err)
	assert.Equal(t, "Change:\tnew\n\nDescription:\n\ta\n\tb\n\nFiles:\n", spec)

	_, err = SetChangeDescription("Change:\tnew\n", "x")
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestDropFiles(t *testing.T) {
	spec := DropFiles(testutil.P4Output(t, "change_template.txt"))
	assert.NotContains(t, spec, "\nFiles:")
	assert.NotContains(t, spec, "Tree.uasset")
	assert.Contains(t, spec, "#  Files:", "comment header is kept")
	assert.Contains(t, spec, "Description:\n\t<enter description here>\n")

	assert.Equal(t, "Change:\tnew\n", DropFiles("Change:\tnew\n"))
}
