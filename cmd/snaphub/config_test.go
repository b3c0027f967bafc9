package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCmd(t *testing.T, config string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().Duration("interval", 200*time.Millisecond, "")
	cmd.Flags().Duration("cooldown", 2*time.Second, "")
	cmd.Flags().String("storage-dir", "/default", "")
	addConfigFlag(cmd)
	if config != "" {
		require.NoError(t, cmd.Flags().Set("config", config))
	}
	return cmd
}

func TestBindViperPrecedence(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "snaphub.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("interval = \"500ms\"\ncooldown = \"3s\"\nstorage-dir = \"/from-file\"\n"), 0o644))
	t.Setenv("SNAPHUB_COOLDOWN", "4s")

	cmd := testCmd(t, cfg)
	require.NoError(t, cmd.Flags().Set("storage-dir", "/from-flag"))
	v := viper.New()
	require.NoError(t, bindViper(cmd, v))

	assert.Equal(t, 500*time.Millisecond, v.GetDuration("interval"), "file over default")
	assert.Equal(t, 4*time.Second, v.GetDuration("cooldown"), "env over file")
	assert.Equal(t, "/from-flag", v.GetString("storage-dir"), "flag over file")
}

func TestBindViperDashedEnv(t *testing.T) {
	t.Setenv("SNAPHUB_STORAGE_DIR", "/from-env")
	t.Setenv("HOME", t.TempDir())
	v := viper.New()
	require.NoError(t, bindViper(testCmd(t, ""), v))
	assert.Equal(t, "/from-env", v.GetString("storage-dir"))
}

func TestBindViperBadConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "snaphub.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("interval = = broken"), 0o644))
	assert.Error(t, bindViper(testCmd(t, cfg), viper.New()))
}

func TestSetupLoggingRejectsUnknownFormat(t *testing.T) {
	v := viper.New()
	v.Set("log-format", "yaml")
	assert.Error(t, setupLogging(v))
}
