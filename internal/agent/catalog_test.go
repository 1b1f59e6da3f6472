package agent_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracehelper/tracehelper/internal/agent"
	errs "github.com/tracehelper/tracehelper/internal/errors"
	"github.com/tracehelper/tracehelper/internal/testutil"
)

// writeBundle creates a zip archive holding one agent entry per ABI.
func writeBundle(t *testing.T, entries map[string]string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "perfd.zip")
	f, err := os.Create(p)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

// writeBundleDir creates a directory bundle holding one agent per ABI.
func writeBundleDir(t *testing.T, agents map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for abi, content := range agents {
		dir := filepath.Join(root, abi)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "perfd"), []byte(content), 0o755))
	}
	return root
}

func TestArchiveCatalog(t *testing.T) {
	bundle := writeBundle(t, map[string]string{
		"perfd/arm64-v8a/perfd":   "arm64 agent",
		"perfd/armeabi-v7a/perfd": "arm agent",
		"perfd/x86/README":        "not an agent",
		"other/x86_64/perfd":      "wrong prefix",
	})
	scratch := t.TempDir()
	catalog := agent.NewArchiveCatalog(bundle, scratch, testutil.NewTestLogger(t))

	t.Run("lists ABIs with an agent entry", func(t *testing.T) {
		abis, err := catalog.ABIs()
		require.NoError(t, err)
		assert.Equal(t, []string{"arm64-v8a", "armeabi-v7a"}, abis)
	})

	t.Run("extracts the entry into scratch", func(t *testing.T) {
		p, err := catalog.Materialize("armeabi-v7a")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(scratch, "perfd"), p)

		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "arm agent", string(data))

		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&0o100, "extracted agent should be executable")
	})

	t.Run("re-extraction overwrites the previous copy", func(t *testing.T) {
		_, err := catalog.Materialize("armeabi-v7a")
		require.NoError(t, err)
		p, err := catalog.Materialize("arm64-v8a")
		require.NoError(t, err)

		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "arm64 agent", string(data))
	})

	t.Run("missing ABI", func(t *testing.T) {
		_, err := catalog.Materialize("x86")
		assert.Error(t, err)
	})
}

func TestArchiveCatalog_BadArchive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "perfd.zip")
	require.NoError(t, os.WriteFile(p, []byte("not a zip"), 0o644))

	catalog := agent.NewArchiveCatalog(p, t.TempDir(), testutil.NewTestLogger(t))
	_, err := catalog.ABIs()
	assert.Error(t, err)
}

func TestDirCatalog(t *testing.T) {
	root := writeBundleDir(t, map[string]string{
		"x86":    "x86 agent",
		"x86_64": "x86_64 agent",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "mips"), 0o755))

	catalog := agent.NewDirCatalog(root)

	abis, err := catalog.ABIs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"x86", "x86_64"}, abis)

	p, err := catalog.Materialize("x86_64")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "x86_64", "perfd"), p)

	_, err = catalog.Materialize("mips")
	assert.Error(t, err)
}

func TestOpenCatalog(t *testing.T) {
	logger := testutil.NewTestLogger(t)

	dir := writeBundleDir(t, map[string]string{"x86": "agent"})
	c, err := agent.OpenCatalog(dir, t.TempDir(), logger)
	require.NoError(t, err)
	assert.IsType(t, &agent.DirCatalog{}, c)

	archive := writeBundle(t, map[string]string{"perfd/x86/perfd": "agent"})
	c, err = agent.OpenCatalog(archive, t.TempDir(), logger)
	require.NoError(t, err)
	assert.IsType(t, &agent.ArchiveCatalog{}, c)

	_, err = agent.OpenCatalog(filepath.Join(t.TempDir(), "missing.zip"), t.TempDir(), logger)
	assert.ErrorIs(t, err, errs.KindAgentNotFound)
}

func TestFindBundle(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "perfd.zip")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o644))

	got, err := agent.FindBundle([]string{filepath.Join(dir, "perfd"), present})
	require.NoError(t, err)
	assert.Equal(t, present, got)

	_, err = agent.FindBundle([]string{filepath.Join(dir, "nope")})
	assert.ErrorIs(t, err, errs.KindAgentNotFound)
}

func TestBundleSearchPaths(t *testing.T) {
	paths := agent.BundleSearchPaths("/var/lib/tracehelper")

	assert.Contains(t, paths, filepath.Clean("/var/lib/tracehelper/perfd"))
	assert.Contains(t, paths, filepath.Clean("/var/lib/tracehelper/perfd.zip"))
	assert.Contains(t, paths, "perfd")
	assert.Contains(t, paths, "perfd.zip")

	seen := make(map[string]bool)
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate search path %s", p)
		seen[p] = true
	}
}
