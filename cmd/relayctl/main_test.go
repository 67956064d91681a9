package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayfeed/internal/handler/http/auth"
	"relayfeed/internal/infra/lock"
)

var relayctlEnvKeys = []string{
	"DATABASE_DRIVER", "DATABASE_URL", "SQLITE_PATH", "FEED_URL", "POLL_SCHEDULE", "WORKER_TIMEZONE",
	"DISPATCH_PAUSE", "TRANSCODER_URL", "TRANSCODER_PROBE_URL", "TRANSCODER_MAX_ATTEMPTS", "TRANSCODER_RETRY_DELAY",
	"TELEGRAM_BOT_TOKEN", "TELEGRAM_ADMINS", "TELEGRAM_NOTIFY_CHATS", "TELEGRAM_POST_CHAT", "SHARE_LINK_BASE",
	"DISCORD_ENABLED", "SLACK_ENABLED", "KAFKA_BROKERS", "REDIS_ADDR", "JWT_SECRET", "LOCK_FILE", "LOG_LEVEL",
}

type cliEnv struct {
	dbPath   string
	lockPath string
}

func setupCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	for _, k := range relayctlEnvKeys {
		t.Setenv(k, "")
	}
	base := t.TempDir()
	env := cliEnv{
		dbPath:   filepath.Join(base, "relayfeed.db"),
		lockPath: filepath.Join(base, "relayfeed.lock"),
	}
	t.Setenv("DATA_DIR", base)
	t.Setenv("LOCK_FILE", env.lockPath)
	return env
}

func runCLI(t *testing.T, env cliEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--db", env.dbPath}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>releases</title>
<item><title>[Group] Show A - 05 (720p)</title><link>magnet:?xt=urn:btih:aaa</link><guid isPermaLink="false">123</guid></item>
<item><title>[Group] Show C - 01 (720p)</title><link>magnet:?xt=urn:btih:ccc</link><guid isPermaLink="false">456</guid></item>
</channel></rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testFeed)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWatchCommands(t *testing.T) {
	env := setupCLIEnv(t)

	// Arrange / Act
	out, _, err := runCLI(t, env, "watch", "add", "Show A", "  show b ")
	require.NoError(t, err)
	assert.Contains(t, out, `Added "Show A"`)
	assert.Contains(t, out, `Added "show b"`)

	out, _, err = runCLI(t, env, "watch", "add", "SHOW A")
	require.NoError(t, err)
	assert.Contains(t, out, "already on the watch list")

	out, _, err = runCLI(t, env, "--json", "watch", "list")
	require.NoError(t, err)
	var titles []struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &titles))
	require.Len(t, titles, 2)
	assert.Equal(t, "Show A", titles[0].Title)
	assert.Equal(t, "show b", titles[1].Title)

	out, _, err = runCLI(t, env, "watch", "remove", "SHOW", "B")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed")

	_, _, err = runCLI(t, env, "watch", "remove", "Show Z")
	assert.ErrorContains(t, err, "not on the watch list")

	out, _, err = runCLI(t, env, "watch", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Show A")
	assert.NotContains(t, out, "show b")
}

func TestWatchAdd_RejectsBlank(t *testing.T) {
	env := setupCLIEnv(t)

	_, _, err := runCLI(t, env, "watch", "add", "   ")

	assert.Error(t, err)
}

func TestDispatchesList_Empty(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, env, "dispatches", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No dispatch records")

	_, _, err = runCLI(t, env, "dispatches", "list", "--outcome", "maybe")
	assert.Error(t, err)

	_, _, err = runCLI(t, env, "dispatches", "show", "999")
	assert.ErrorContains(t, err, "no dispatch record")
}

func TestFeedCheck(t *testing.T) {
	env := setupCLIEnv(t)
	srv := newFeedServer(t)
	t.Setenv("FEED_URL", srv.URL+"/rss")
	_, _, err := runCLI(t, env, "watch", "add", "show a")
	require.NoError(t, err)

	out, _, err := runCLI(t, env, "--json", "feed", "check")

	require.NoError(t, err)
	var rows []feedCheckRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, feedCheckRow{
		Title: "[Group] Show A - 05 (720p)", Link: "magnet:?xt=urn:btih:aaa",
		EntryKey: "123", Matched: "show a", Status: feedStatusNew,
	}, rows[0])
	assert.Equal(t, feedStatusIgnored, rows[1].Status)
}

func TestFeedRunOnce_DispatchesOnce(t *testing.T) {
	env := setupCLIEnv(t)
	feedSrv := newFeedServer(t)
	submissions := 0
	transcoder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		submissions++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok","artifactId":"art-1"}`)
	}))
	t.Cleanup(transcoder.Close)
	t.Setenv("FEED_URL", feedSrv.URL+"/rss")
	t.Setenv("TRANSCODER_URL", transcoder.URL+"/encode")
	t.Setenv("DISPATCH_PAUSE", "0s")

	_, _, err := runCLI(t, env, "watch", "add", "Show A")
	require.NoError(t, err)

	// Act: two passes over the same feed
	out, _, err := runCLI(t, env, "--json", "feed", "run-once")
	require.NoError(t, err)
	var first struct {
		Dispatched int `json:"dispatched"`
		Succeeded  int `json:"succeeded"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &first))

	out, _, err = runCLI(t, env, "--json", "feed", "run-once")
	require.NoError(t, err)
	var second struct {
		Dispatched   int `json:"dispatched"`
		Deduplicated int `json:"deduplicated"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &second))

	// Assert
	assert.Equal(t, 1, first.Dispatched)
	assert.Equal(t, 1, first.Succeeded)
	assert.Equal(t, 0, second.Dispatched)
	assert.Equal(t, 1, second.Deduplicated)
	assert.Equal(t, 1, submissions)

	out, _, err = runCLI(t, env, "dispatches", "show", "123")
	require.NoError(t, err)
	assert.Contains(t, out, "art-1")
	assert.Contains(t, out, "Show A")
}

func TestSubmit_RefusesWhileWorkerRuns(t *testing.T) {
	env := setupCLIEnv(t)
	t.Setenv("TRANSCODER_URL", "http://127.0.0.1:1/encode")
	held, err := lock.Acquire(env.lockPath)
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	_, _, err = runCLI(t, env, "submit", "magnet:?xt=urn:btih:zzz")

	assert.ErrorContains(t, err, "worker is running")
}

func TestTokenCommand(t *testing.T) {
	env := setupCLIEnv(t)

	_, _, err := runCLI(t, env, "token")
	assert.ErrorContains(t, err, "JWT_SECRET")

	secret := strings.Repeat("k", 32)
	t.Setenv("JWT_SECRET", secret)

	_, _, err = runCLI(t, env, "token", "--role", "root")
	assert.ErrorContains(t, err, "role must be")

	out, _, err := runCLI(t, env, "token", "--role", auth.RoleViewer, "--subject", "ci")
	require.NoError(t, err)
	claims, err := auth.ParseToken([]byte(secret), strings.TrimSpace(out), time.Now)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleViewer, claims.Role)
	assert.Equal(t, "ci", claims.Subject)
}

func TestMigrateCommands(t *testing.T) {
	env := setupCLIEnv(t)

	out, _, err := runCLI(t, env, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	_, _, err = runCLI(t, env, "migrate", "down")
	assert.ErrorContains(t, err, "--yes")

	out, _, err = runCLI(t, env, "migrate", "down", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "dropped")
}

func TestRenderTable(t *testing.T) {
	got := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []columnAlignment{alignRight})

	assert.Contains(t, got, "A")
	assert.Contains(t, got, "3")
	assert.Equal(t, "", renderTable(nil, nil, nil))
}

func TestRenderTableStyled_Colorize(t *testing.T) {
	plain := renderTableStyled([]string{"A"}, [][]string{{"1"}}, nil, false)
	colored := renderTableStyled([]string{"A"}, [][]string{{"1"}}, nil, true)

	assert.NotContains(t, plain, "\x1b[")
	assert.Contains(t, colored, "1")
	assert.False(t, shouldColorize(&bytes.Buffer{}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
