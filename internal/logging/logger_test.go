package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{
		Level:      LevelDebug,
		Output:     &buf,
		JSON:       true,
		TimeFormat: time.RFC3339,
	}

	logger := New(cfg)
	require.NotNil(t, logger)

	t.Run("Levels", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug msg")
		assert.Contains(t, buf.String(), "debug msg")

		buf.Reset()
		logger.Error("error msg")
		assert.Contains(t, buf.String(), "error msg")
	})

	t.Run("DynamicLevel", func(t *testing.T) {
		logger.SetLevel(LevelError)
		assert.Equal(t, LevelError, logger.GetLevel())

		buf.Reset()
		logger.Info("should not appear")
		assert.Zero(t, buf.Len(), "logged info message when level was error")

		logger.SetLevel(LevelDebug)
	})

	t.Run("WithComponent", func(t *testing.T) {
		buf.Reset()
		logger.WithComponent("poller").Info("msg")
		assert.Contains(t, buf.String(), "poller")
	})

	t.Run("WithFields", func(t *testing.T) {
		buf.Reset()
		logger.WithFields(map[string]any{"iface": "eth0"}).Info("msg")
		assert.Contains(t, buf.String(), "iface")
		assert.Contains(t, buf.String(), "eth0")
	})
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})

	l.WithComponent("Firewall").Info("table provisioned", "table", "wrtd", "note", "two words")

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "wrtd[")
	assert.Contains(t, line, "[info] firewall: table provisioned")
	assert.Contains(t, line, "table=wrtd")
	assert.Contains(t, line, `note="two words"`)
	assert.NotContains(t, line, "component=")
}

func TestConsoleWithAttrsDoesNotAlias(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: LevelInfo, Output: &buf}).WithComponent("base")

	a := base.With("a", "1")
	b := base.With("b", "2")

	buf.Reset()
	a.Info("x")
	assert.Contains(t, buf.String(), "a=1")
	assert.NotContains(t, buf.String(), "b=2")

	buf.Reset()
	b.Info("y")
	assert.Contains(t, buf.String(), "b=2")
	assert.NotContains(t, buf.String(), "a=1")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDefaultLogger(t *testing.T) {
	require.NotNil(t, Default())

	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf
	prev := Default()
	SetDefault(New(cfg))
	defer SetDefault(prev)

	Debug("debug")
	Info("info")
	Warn("warn")
	Error("error")
	Errorf("error %s", "formatted")
	WithComponent("comp").Info("comp msg")

	assert.Contains(t, buf.String(), "error formatted")
	assert.Contains(t, buf.String(), "comp: comp msg")
	assert.NotContains(t, buf.String(), "] debug")
}

func TestJSONLogParsing(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, JSON: true})

	l.Info("json test", "key", "value")

	var data map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, "json test", data["msg"])
	assert.Equal(t, "value", data["key"])
	assert.Equal(t, "INFO", data["level"])
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nobody hears this")
	assert.Greater(t, int(l.GetLevel()), int(LevelError))
}
