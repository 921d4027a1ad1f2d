// Package command is a manager plugin that keeps one external program
// running for the daemon's lifetime.
package command

import (
	"errors"
	"time"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/logging"
	"grimm.is/wrtd/internal/manager"
	"grimm.is/wrtd/internal/supervisor"
)

// Name is the plugin's registry name.
const Name = "command"

// Config is read from manager-command.json.
type Config struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Env     []string `json:"env"`
	// StopTimeout is the SIGTERM grace period in seconds.
	StopTimeout int `json:"stop-timeout"`
}

// Manager supervises the configured command. With no command configured
// it does nothing.
type Manager struct {
	cfg    Config
	logger *logging.Logger
	proc   *supervisor.Process
}

// New returns an uninitialized manager.
func New() *Manager {
	return &Manager{}
}

func (m *Manager) Name() string        { return Name }
func (m *Manager) InitAfter() []string { return nil }

func (m *Manager) Init(cfg config.PluginConfig, tmpDir, varDir string, ctx *manager.Context) error {
	m.logger = ctx.PluginLogger(manager.TypeManager, Name)
	if err := cfg.Decode(&m.cfg); err != nil {
		return err
	}
	if m.cfg.StopTimeout < 0 {
		return errors.New("stop-timeout must not be negative")
	}
	if m.cfg.Command == "" {
		m.logger.Info("no command configured")
		return nil
	}

	proc := supervisor.New(Name, m.cfg.Command, m.cfg.Args, ctx.Loop, m.logger)
	proc.Dir = tmpDir
	if len(m.cfg.Env) > 0 {
		proc.Env = m.cfg.Env
	}
	proc.OnExit(func(err error) {
		m.logger.Error("command exited", "command", m.cfg.Command, "error", err)
	})
	if err := proc.Start(); err != nil {
		return err
	}
	m.proc = proc
	return nil
}

func (m *Manager) Dispose() error {
	if m.proc == nil {
		return nil
	}
	proc := m.proc
	m.proc = nil
	return proc.Stop(m.stopTimeout())
}

func (m *Manager) stopTimeout() time.Duration {
	if m.cfg.StopTimeout == 0 {
		return supervisor.DefaultStopTimeout
	}
	return time.Duration(m.cfg.StopTimeout) * time.Second
}

// Running reports whether the command is up.
func (m *Manager) Running() bool {
	return m.proc != nil && m.proc.Running()
}
