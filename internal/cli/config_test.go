package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudfs/mountfs/internal/provider"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ".mountfs", cfg.DataDir)
	assert.Equal(t, filepath.Join(".mountfs", "int"), cfg.IntRoot)
	assert.Equal(t, filepath.Join(".mountfs", "ext"), cfg.ExtRoot)
	assert.Equal(t, filepath.Join(".mountfs", "state.db"), cfg.StatePath)
	assert.Equal(t, "mountfs", cfg.DeviceName)
	assert.Equal(t, "ERROR", cfg.LogLevel)
	assert.Equal(t, uint64(1048576), cfg.MemoryCapacity)
}

func TestParseConfig_Overrides(t *testing.T) {
	cfg, err := ParseConfig(map[string]string{
		"MOUNTFS_DATA_DIR":    "/var/lib/mountfs",
		"MOUNTFS_EXT_ROOT":    "/media/sd",
		"MOUNTFS_INT_ROOT":    MemoryRoot,
		"MOUNTFS_LOG_LEVEL":   "DEBUG",
		"MOUNTFS_DEVICE_NAME": "bench-01",
	})
	require.NoError(t, err)

	assert.Equal(t, MemoryRoot, cfg.IntRoot)
	assert.Equal(t, "/media/sd", cfg.ExtRoot)
	assert.Equal(t, "/var/lib/mountfs/state.db", cfg.StatePath)
	assert.Equal(t, "bench-01", cfg.DeviceName)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"log level":     {"MOUNTFS_LOG_LEVEL": "LOUD"},
		"capacity":      {"MOUNTFS_MEMORY_CAPACITY": "0"},
		"capacity type": {"MOUNTFS_MEMORY_CAPACITY": "lots"},
		"device name":   {"MOUNTFS_DEVICE_NAME": "a-device-name-far-longer-than-thirty-two"},
	}

	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig(vars)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("MOUNTFS_DEVICE_NAME=from-dotenv\n"), 0o644))
	t.Setenv("MOUNTFS_DEVICE_NAME", "")
	os.Unsetenv("MOUNTFS_DEVICE_NAME")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.DeviceName)
	os.Unsetenv("MOUNTFS_DEVICE_NAME")

	_, err = LoadConfig(t.TempDir())
	assert.NoError(t, err, "a missing .env is not an error")
}

func TestBuildMounts(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		DataDir:        dir,
		IntRoot:        filepath.Join(dir, "int"),
		ExtRoot:        MemoryRoot,
		MemoryCapacity: 4096,
		DeviceName:     "bench",
	}

	mounts, err := buildMounts(cfg)
	require.NoError(t, err)

	info, err := os.Stat(cfg.IntRoot)
	require.NoError(t, err, "internal root is created")
	assert.True(t, info.IsDir())

	all := mounts.All()
	require.Len(t, all, 2)
	assert.Equal(t, provider.IntPathPrefix, all[0].Prefix())
	assert.Equal(t, "bench", all[0].Label())
	assert.Equal(t, provider.ExtPathPrefix, all[1].Prefix())
	assert.True(t, all[1].Ready())
}

func TestJoinArgs(t *testing.T) {
	assert.Equal(t, "list /int", joinArgs([]string{"list", "/int"}))
	assert.Equal(t, `copy "/ext/my file.txt" /int/b`, joinArgs([]string{"copy", "/ext/my file.txt", "/int/b"}))
	assert.Equal(t, "", joinArgs(nil))
}
