package command

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/loop"
	"grimm.is/wrtd/internal/manager"
)

func newContext(t *testing.T) *manager.Context {
	t.Helper()
	l := loop.New(logging.Discard())
	go l.Run(t.Context())
	t.Cleanup(l.Quit)
	return &manager.Context{Loop: l, Logger: logging.Discard()}
}

func TestManager_Idle(t *testing.T) {
	m := New()
	require.NoError(t, m.Init(config.PluginConfig{}, t.TempDir(), t.TempDir(), newContext(t)))
	assert.False(t, m.Running())
	require.NoError(t, m.Dispose())
}

func TestManager_RunsAndStopsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not found")
	}

	m := New()
	cfg := config.PluginConfig{
		"command":      sh,
		"args":         []any{"-c", "exec sleep 30"},
		"stop-timeout": 2,
	}
	require.NoError(t, m.Init(cfg, t.TempDir(), t.TempDir(), newContext(t)))
	assert.True(t, m.Running())
	assert.Equal(t, 2*time.Second, m.stopTimeout())

	require.NoError(t, m.Dispose())
	assert.False(t, m.Running())
	require.NoError(t, m.Dispose())
}

func TestManager_InitErrors(t *testing.T) {
	ctx := newContext(t)
	assert.Error(t, New().Init(config.PluginConfig{"command": "/nonexistent/helper"}, t.TempDir(), "", ctx))
	assert.Error(t, New().Init(config.PluginConfig{"command": "true", "stop-timeout": -1}, t.TempDir(), "", ctx))
	assert.Error(t, New().Init(config.PluginConfig{"args": "not-a-list"}, t.TempDir(), "", ctx))
}
