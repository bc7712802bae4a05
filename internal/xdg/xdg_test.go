// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fellowhub/fellowhub/pkg/errutil"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/fellowhub", got)
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, "/home/testuser/.config/fellowhub", got)
}

func TestDefaultConfigFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	got, err := DefaultConfigFile()
	require.NoError(t, err)
	assert.Empty(t, got, "missing file is not an error")

	dir := filepath.Join(base, "fellowhub")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ConfigFileName), 0o700))
	_, err = DefaultConfigFile()
	errutil.AssertErrorCode(t, err, "XDG_NOT_A_FILE")

	require.NoError(t, os.Remove(filepath.Join(dir, ConfigFileName)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("log:\n  level: debug\n"), 0o600))
	got, err = DefaultConfigFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), got)
}
