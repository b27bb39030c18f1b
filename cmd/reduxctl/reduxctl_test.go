package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	redux "github.com/goliatone/go-redux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterScript = `
initial:
  count: 0
  user:
    name: ada
watch:
  - name: count
    path: count
  - name: double
    expr: count * 2
actions:
  - type: set
    payload: {path: count, value: 1}
  - type: set
    payload: {path: count, value: 2}
  - type: merge
    payload:
      path: user
      value: {role: admin}
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := loadConfig()
	require.NoError(t, err)
	return cfg
}

func TestScriptReducer(t *testing.T) {
	state := map[string]any{"user": map[string]any{"name": "ada", "tags": []any{"a"}}}

	next := scriptReducer(state, redux.Action{Type: ActionSet, Payload: map[string]any{"path": "prefs.theme", "value": "dark"}})
	assert.Equal(t, "dark", next["prefs"].(map[string]any)["theme"])
	assert.NotContains(t, state, "prefs")

	next = scriptReducer(next, redux.Action{Type: ActionMerge, Payload: map[string]any{"path": "user", "value": map[string]any{"role": "admin"}}})
	assert.Equal(t, map[string]any{"name": "ada", "role": "admin", "tags": []any{"a"}}, next["user"])

	next = scriptReducer(next, redux.Action{Type: ActionDelete, Payload: map[string]any{"path": "user.name"}})
	assert.NotContains(t, next["user"], "name")
	assert.Equal(t, "ada", state["user"].(map[string]any)["name"])

	same := scriptReducer(next, redux.Action{Type: ActionDelete, Payload: map[string]any{"path": "missing.key"}})
	assert.True(t, redux.IdentityComparator(next, same))

	assert.True(t, redux.IdentityComparator(next, scriptReducer(next, redux.Action{Type: "noop"})))
	assert.True(t, redux.IdentityComparator(next, scriptReducer(next, redux.Action{Type: ActionSet, Payload: "bad"})))
}

func TestParseScriptValidates(t *testing.T) {
	_, err := parseScript([]byte(`
actions:
  - payload: {path: a}
watch:
  - name: both
    path: a
    expr: a
persist:
  driver: redis
  domain: cart
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "actions[0]")
	assert.Contains(t, msg, "watch[0]")
	assert.Contains(t, msg, `unknown driver "redis"`)

	script, err := parseScript([]byte(counterScript))
	require.NoError(t, err)
	assert.Len(t, script.Actions, 3)
	assert.Equal(t, "double", script.Watch[1].label())
}

func TestSessionReplaysScript(t *testing.T) {
	script, err := parseScript([]byte(counterScript))
	require.NoError(t, err)

	var out bytes.Buffer
	registry := prometheus.NewRegistry()
	s, err := startSession(context.Background(), script, defaultConfig(t), sessionDeps{
		out:      &out,
		logger:   quietLogger(),
		registry: registry,
	})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Replay())

	want := strings.Join([]string{
		"count = 0",
		"double = 0",
		"count = 1",
		"double = 2",
		"count = 2",
		"double = 4",
		`state = {"count":2,"user":{"name":"ada","role":"admin"}}`,
	}, "\n") + "\n"
	assert.Equal(t, want, out.String())

	count, err := testutil.GatherAndCount(registry, "redux_actions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "set and merge series")
}

func TestSessionPersistsToSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")
	script, err := parseScript([]byte(`
initial: {count: 0}
persist: {driver: sqlite, path: ` + dbPath + `, domain: counter, scope: user, id: "7"}
actions:
  - type: set
    payload: {path: count, value: 5}
`))
	require.NoError(t, err)

	var first bytes.Buffer
	s, err := startSession(context.Background(), script, defaultConfig(t), sessionDeps{out: &first, logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, s.Replay())
	s.Close()
	assert.Equal(t, "state = {\"count\":5}\n", first.String())

	script.Actions = nil
	var second bytes.Buffer
	s, err = startSession(context.Background(), script, defaultConfig(t), sessionDeps{out: &second, logger: quietLogger()})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Replay())
	assert.Equal(t, "state = {\"count\":5}\n", second.String())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REDUXCTL_LOG_LEVEL", "debug")
	t.Setenv("REDUXCTL_ENGINE", "cel")
	t.Setenv("REDUXCTL_ACTIVITY_CHANNEL", "audit")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "cel", cfg.Engine)
	assert.Equal(t, "127.0.0.1:7070", cfg.DevtoolsAddr)
	assert.Equal(t, "audit", cfg.Activity.Channel)
	assert.True(t, cfg.Activity.Enabled)

	_, err = newLogger(io.Discard, "loud")
	assert.Error(t, err)
	_, err = evaluatorFor("lua")
	assert.Error(t, err)
}

func TestRunAndPathsCommands(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "script.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(counterScript), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"run", scriptPath})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `state = {"count":2`)

	statePath := filepath.Join(dir, "state.yaml")
	require.NoError(t, os.WriteFile(statePath, []byte("user:\n  name: ada\n  age: 36\n"), 0o600))

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"paths", statePath})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "user.age")
	assert.Contains(t, out.String(), "user.name")
	assert.Contains(t, out.String(), "string")

	out.Reset()
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"paths", "--schema", statePath})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"$schema"`)
}
