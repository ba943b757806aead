package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hexcap.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.File.Enabled)
	assert.Equal(t, 1500, cfg.Packet.MTU)
	assert.Equal(t, 65535, cfg.Packet.MaxGeneratorCount)
	assert.Equal(t, 65536, cfg.Packet.MaxExpansion)
	assert.False(t, cfg.Packet.FixLengths)
	assert.False(t, cfg.Packet.ComputeChecksums)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
packet:
  mtu: 9000
  compute_checksums: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9000, cfg.Packet.MTU)
	assert.True(t, cfg.Packet.ComputeChecksums)
	assert.Equal(t, 65535, cfg.Packet.MaxGeneratorCount, "unset keys keep defaults")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HEXCAP_PACKET_MTU", "4000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Packet.MTU)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad level", "log:\n  level: loud\n"},
		{"small mtu", "packet:\n  mtu: 10\n"},
		{"zero generator count", "packet:\n  max_generator_count: 0\n"},
		{"zero expansion", "packet:\n  max_expansion: 0\n"},
		{"file without path", "log:\n  file:\n    enabled: true\n    path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestInitLog(t *testing.T) {
	defer Log.SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "hexcap.log")
	cfg := LogConfig{
		Level: "warn",
		File:  LogFileConfig{Enabled: true, Path: path, MaxSizeMB: 1},
	}
	require.NoError(t, InitLog(cfg, false))
	assert.Equal(t, logrus.WarnLevel, Log.GetLevel())

	Log.Warn("rotated output")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rotated output")

	require.NoError(t, InitLog(LogConfig{Level: "info"}, true))
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())

	assert.Error(t, InitLog(LogConfig{Level: "nope"}, false))
}
