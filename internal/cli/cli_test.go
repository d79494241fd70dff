package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default so package-level flag
// variables do not leak between test runs.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

type testCLI struct {
	t      *testing.T
	dir    string
	db     string
	config string
}

func newTestCLI(t *testing.T) *testCLI {
	dir := t.TempDir()
	return &testCLI{
		t:      t,
		dir:    dir,
		db:     filepath.Join(dir, "mem.db"),
		config: filepath.Join(dir, "config.toml"),
	}
}

// run executes mem with args and returns stdout.
func (c *testCLI) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--db", c.db, "--config", c.config, "--log-level", "error"}, args...))
	c.t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func (c *testCLI) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run("", args...)
	require.NoError(c.t, err, "mem %s", strings.Join(args, " "))
	return out
}

var savedID = regexp.MustCompile(`\(id: ([0-9a-f-]{36})\)`)

func (c *testCLI) save(title, content, project string) string {
	c.t.Helper()
	out := c.mustRun("save", "--title", title, "--content", content, "--project", project, "--type", "decision")
	m := savedID.FindStringSubmatch(out)
	require.Len(c.t, m, 2, out)
	return m[1]
}

func TestVersion(t *testing.T) {
	c := newTestCLI(t)
	out := c.mustRun("version")
	assert.True(t, strings.HasPrefix(out, "mem dev"))
}

func TestSaveGetSearch(t *testing.T) {
	c := newTestCLI(t)
	id := c.save("Use JWT for auth", "tokens expire hourly\nrefresh via cookie", "/work/app")

	out := c.mustRun("get", id)
	assert.Contains(t, out, "Use JWT for auth")
	assert.Contains(t, out, "type:     decision")
	assert.Contains(t, out, "refresh via cookie")

	out = c.mustRun("search", "JWT", "--project", "/work/app")
	assert.Contains(t, out, "[decision] Use JWT for auth")
	assert.Contains(t, out, "[project]")
	assert.Contains(t, out, "tokens expire hourly")
	assert.NotContains(t, out, "refresh via cookie")

	out = c.mustRun("search", "nothing-matches-this")
	assert.Contains(t, out, "No results found for: nothing-matches-this")
}

func TestSaveRejectsAutoType(t *testing.T) {
	c := newTestCLI(t)
	_, err := c.run("", "save", "--title", "t", "--content", "c", "--type", "auto")
	assert.Error(t, err)
}

func TestGetMissing(t *testing.T) {
	c := newTestCLI(t)
	_, err := c.run("", "get", "missing")
	assert.ErrorContains(t, err, "no memory found")
}

func TestPromoteDemoteRemove(t *testing.T) {
	c := newTestCLI(t)
	id := c.save("Squash merges", "always squash", "/work/app")

	out := c.mustRun("recent", "--project", "/work/other")
	assert.Contains(t, out, "No recent memories")

	out = c.mustRun("promote", id)
	assert.Contains(t, out, "promoted to global scope")

	out = c.mustRun("recent", "--project", "/work/other")
	assert.Contains(t, out, "Squash merges")

	out = c.mustRun("demote", id)
	assert.Contains(t, out, "demoted to project scope")

	c.mustRun("rm", id)
	_, err := c.run("", "rm", id)
	assert.Error(t, err)
	_, err = c.run("", "promote", id)
	assert.Error(t, err)
}

func TestContextOutputs(t *testing.T) {
	c := newTestCLI(t)
	c.save("Deploy notes", "blue green", "/work/app")

	out := c.mustRun("context", "--project", "/work/app")
	assert.True(t, strings.HasPrefix(out, "# Recent Session Memory"))
	assert.Contains(t, out, "## 1. Deploy notes")

	out = c.mustRun("context", "--project", "/work/app", "--compact")
	assert.Contains(t, out, `"additionalContext":"# Recent Session Memory`)

	path := filepath.Join(c.dir, "ctx.md")
	out = c.mustRun("context", "--project", "/work/app", "--out", path)
	assert.Empty(t, out)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Deploy notes")
}

func TestDecayAndStats(t *testing.T) {
	c := newTestCLI(t)
	c.save("fresh", "just saved", "/work/app")

	out := c.mustRun("decay", "--dry-run", "--threshold", "2")
	assert.Contains(t, out, "1 memories would be marked cold (threshold: 2.00)")

	out = c.mustRun("stats")
	assert.Contains(t, out, "Memories : 1 (1 active, 0 cold)")

	out = c.mustRun("decay")
	assert.Contains(t, out, "0 memories marked cold (threshold: 0.10)")

	out = c.mustRun("decay", "--threshold", "2")
	assert.Contains(t, out, "1 memories marked cold")

	out = c.mustRun("stats")
	assert.Contains(t, out, "Memories : 1 (0 active, 1 cold)")
	assert.Contains(t, out, "DB path  : "+c.db)

	_, err := c.run("", "decay", "--threshold", "-1")
	assert.Error(t, err)
}

func TestSessionAndGain(t *testing.T) {
	c := newTestCLI(t)

	out := c.mustRun("gain")
	assert.Contains(t, out, "No session analytics yet")

	out = c.mustRun("session", "start", "--id", "sess-1", "--project", "/work/app")
	assert.Equal(t, "sess-1\n", out)

	out = c.mustRun("session", "end", "sess-1")
	assert.Contains(t, out, "Session sess-1 ended.")

	out = c.mustRun("stats")
	assert.Contains(t, out, "Sessions : 1")
}

func TestIndexAndSearchFiles(t *testing.T) {
	c := newTestCLI(t)
	proj := filepath.Join(c.dir, "proj")
	require.NoError(t, os.MkdirAll(filepath.Join(proj, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(proj, "README.md"), []byte("# Proj\n\nbuild with zigzag"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(proj, "docs", "setup.md"), []byte("# Setup\n\nrun zigzag init"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(proj, "notes.txt"), []byte("zigzag"), 0644))

	out := c.mustRun("index", proj)
	assert.Contains(t, out, "2 new, 0 updated, 0 unchanged")

	out = c.mustRun("index", proj)
	assert.Contains(t, out, "0 new, 0 updated, 2 unchanged")

	out = c.mustRun("search", "zigzag")
	assert.Contains(t, out, "[file] Proj")
	assert.Contains(t, out, "[file] Setup")
	assert.NotContains(t, out, "notes.txt")
}

func TestSuggestRulesEmpty(t *testing.T) {
	c := newTestCLI(t)
	out := c.mustRun("suggest-rules")
	assert.Contains(t, out, "No auto-captured memories found")
}

func TestHookStopThenStart(t *testing.T) {
	c := newTestCLI(t)
	proj := filepath.Join(c.dir, "proj")

	stop := `{"session_id":"sess-9","cwd":"` + proj + `"}`
	out, err := c.run(stop, "hook", "stop")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = c.run(`{"session_id":"sess-10","cwd":"`+proj+`"}`, "hook", "start")
	require.NoError(t, err)
	assert.Contains(t, out, `"hookEventName":"SessionStart"`)
	assert.Contains(t, out, "proj: session ended")

	out = c.mustRun("suggest-rules")
	assert.Contains(t, out, "## Suggested rules (from mem pattern analysis)")
}

func TestHookNeverFails(t *testing.T) {
	c := newTestCLI(t)

	// Unparseable stdin and an unreadable database both exit cleanly.
	_, err := c.run("not json", "hook", "compact")
	assert.NoError(t, err)

	blocker := filepath.Join(c.dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	c.db = filepath.Join(blocker, "mem.db")
	_, err = c.run("{}", "hook", "start")
	assert.NoError(t, err)
}
