package config

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracehelper/tracehelper/internal/config"
)

func TestInitConfig(t *testing.T) {
	loader := config.NewLoaderAt(t.TempDir())

	var out bytes.Buffer
	require.NoError(t, initConfig(loader, false, &out))
	assert.Contains(t, out.String(), loader.Path())
	assert.FileExists(t, loader.Path())

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Agent.ServicePort, cfg.Agent.ServicePort)

	err = initConfig(loader, false, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.NoError(t, initConfig(loader, true, &out))
}

func TestViewCmd(t *testing.T) {
	t.Setenv("TRACEHELPER_CONFIG", t.TempDir())

	cmd := NewConfigCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"view"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "adb:")
	assert.Contains(t, out.String(), "profiling:")
}

func TestValidateCmd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRACEHELPER_CONFIG", dir)

	cmd := NewConfigCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"validate"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "valid")

	loader := config.NewLoaderAt(dir)
	require.NoError(t, os.MkdirAll(loader.Dir(), 0o755))
	require.NoError(t, os.WriteFile(loader.Path(), []byte("agent:\n  service_port: 0\n"), 0o644))

	cmd = NewConfigCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"validate"})
	assert.Error(t, cmd.Execute())
}

func TestPathCmd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRACEHELPER_CONFIG", dir)

	cmd := NewConfigCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"path"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, config.NewLoaderAt(dir).Path()+"\n", out.String())
}
