package cmd

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wrtd/internal/logging"
)

func TestParseStart(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    startOptions
		wantErr bool
	}{
		{"defaults", nil, startOptions{level: logging.LevelInfo}, false},
		{"debug json", []string{"-log-level", "debug", "-log-json"}, startOptions{level: logging.LevelDebug, json: true}, false},
		{"bad level", []string{"-log-level", "loud"}, startOptions{}, true},
		{"unknown flag", []string{"-foreground"}, startOptions{}, true},
		{"stray argument", []string{"/etc/wrtd"}, startOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStart(tt.args, io.Discard)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
