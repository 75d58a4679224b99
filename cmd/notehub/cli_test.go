package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/notehub-client/internal/config"
	"github.com/kuitang/notehub-client/internal/fakehub"
	"github.com/kuitang/notehub-client/internal/notes"
)

type runResult struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, baseURL string, args ...string) runResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--base-url", baseURL}, args...))
	err := cmd.Execute()
	return runResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func fakeHub(t *testing.T) (string, *fakehub.Handler) {
	t.Helper()
	t.Setenv(config.TokenEnv, fakehub.TestToken)
	t.Setenv(config.LegacyTokenEnv, "")
	ts, hub := fakehub.TestServer(t)
	return ts.URL, hub
}

func TestCLI_CreateListGetDelete(t *testing.T) {
	url, hub := fakeHub(t)

	res := runCLI(t, url, "create", "--title", "  Call plumber ", "--content", "kitchen sink\nbefore Friday", "--tag", "Personal", "--json")
	require.NoError(t, res.err, res.stderr)
	var created notes.Note
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &created))
	assert.Equal(t, "Call plumber", created.Title)
	assert.Equal(t, notes.TagPersonal, created.Tag)

	res = runCLI(t, url, "list")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "TITLE")
	assert.Contains(t, res.stdout, "Call plumber")
	assert.NotContains(t, res.stdout, "Page 1 of")

	res = runCLI(t, url, "get", created.ID)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Call plumber [Personal]")
	assert.Contains(t, res.stdout, "before Friday")

	res = runCLI(t, url, "delete", created.ID)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Deleted note "+created.ID)
	assert.Equal(t, 0, hub.Store().Len())

	res = runCLI(t, url, "get", created.ID)
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "not_found")
}

func TestCLI_ListSearchAndPages(t *testing.T) {
	url, hub := fakeHub(t)
	for i := 0; i < 5; i++ {
		_, err := hub.Store().Create(notes.CreateParams{Title: "Standup " + strings.Repeat("x", i+1), Tag: notes.TagWork})
		require.NoError(t, err)
	}
	_, err := hub.Store().Create(notes.CreateParams{Title: "Groceries", Tag: notes.TagShopping})
	require.NoError(t, err)

	res := runCLI(t, url, "list", "--per-page", "2", "--search", "standup")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Page 1 of 3")
	assert.NotContains(t, res.stdout, "Groceries")

	res = runCLI(t, url, "list", "--search", "nothing-matches")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "No notes found.\n", res.stdout)
}

func TestCLI_MissingTokenFails(t *testing.T) {
	url, hub := fakeHub(t)
	t.Setenv(config.TokenEnv, "")

	res := runCLI(t, url, "list")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), config.TokenEnv)
	assert.Zero(t, hub.Requests())
}

func testCreate_InvalidInputNeverReachesNoteHub(t *rapid.T, url string, hub *fakehub.Handler) {
	title := rapid.StringMatching(`[a-z]{0,2}`).Draw(t, "title")
	before := hub.Requests()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--base-url", url, "create", "--title", title})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("create with title %q succeeded", title)
	}
	if !strings.Contains(stderr.String(), "title:") {
		t.Fatalf("missing field error: %q", stderr.String())
	}
	if hub.Requests() != before {
		t.Fatalf("invalid create reached NoteHub")
	}
}

func TestCreate_InvalidInputNeverReachesNoteHub(t *testing.T) {
	url, hub := fakeHub(t)
	rapid.Check(t, func(rt *rapid.T) {
		testCreate_InvalidInputNeverReachesNoteHub(rt, url, hub)
	})
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Fatalf("clip = %q", got)
	}
	if got := clip("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("clip = %q", got)
	}
}
