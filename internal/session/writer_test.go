package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/tracehelper/tracehelper/internal/errors"
	"github.com/tracehelper/tracehelper/internal/testutil"
)

func TestWriter_Write(t *testing.T) {
	w := NewWriter(testutil.NewTestLogger(t))
	out := filepath.Join(t.TempDir(), "out.trace")

	t.Run("creates file", func(t *testing.T) {
		require.NoError(t, w.Write(Saved([]byte("first trace, longer")), out))
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "first trace, longer", string(data))
	})

	t.Run("replaces existing file", func(t *testing.T) {
		require.NoError(t, w.Write(Saved([]byte("second")), out))
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("empty trace", func(t *testing.T) {
		require.NoError(t, w.Write(Saved(nil), out))
		info, err := os.Stat(out)
		require.NoError(t, err)
		assert.Zero(t, info.Size())
	})
}

func TestWriter_Failures(t *testing.T) {
	w := NewWriter(testutil.NewTestLogger(t))
	dir := t.TempDir()

	tests := []struct {
		name     string
		outcome  Outcome
		path     string
		wantKind errs.Kind
		wantMsg  string
	}{
		{
			name:     "device path",
			outcome:  SavedAt("/sdcard/app.trace"),
			path:     filepath.Join(dir, "a.trace"),
			wantKind: errs.KindUnsupported,
			wantMsg:  "Older devices (API level < 10) are not supported",
		},
		{
			name:     "output is a directory",
			outcome:  Saved([]byte("x")),
			path:     dir,
			wantKind: errs.KindSaveFailed,
		},
		{
			name:     "missing parent directory",
			outcome:  Saved([]byte("x")),
			path:     filepath.Join(dir, "missing", "out.trace"),
			wantKind: errs.KindSaveFailed,
		},
		{
			name:     "nothing to write",
			outcome:  StopFailed("boom"),
			path:     filepath.Join(dir, "b.trace"),
			wantKind: errs.KindSaveFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.Write(tt.outcome, tt.path)
			assert.ErrorIs(t, err, tt.wantKind)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}
