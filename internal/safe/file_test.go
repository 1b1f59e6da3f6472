package safe

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestReadFile(t *testing.T) {
	t.Run("reads regular file", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "config.yaml")
		content := []byte("version: 1\n")

		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatal(err)
		}

		got, err := ReadFile(path, nil)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(got) != string(content) {
			t.Errorf("got %q, want %q", got, content)
		}
	})

	t.Run("rejects symlink by default", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "source.txt")
		link := filepath.Join(tmpDir, "link.txt")

		if err := os.WriteFile(src, []byte("test"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(src, link); err != nil {
			t.Fatal(err)
		}

		if _, err := ReadFile(link, nil); err == nil {
			t.Fatal("expected error for symlink, got nil")
		}
	})

	t.Run("allows symlink when enabled", func(t *testing.T) {
		tmpDir := t.TempDir()
		src := filepath.Join(tmpDir, "source.txt")
		link := filepath.Join(tmpDir, "link.txt")

		if err := os.WriteFile(src, []byte("test"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(src, link); err != nil {
			t.Fatal(err)
		}

		got, err := ReadFile(link, &Options{AllowSymlinks: true})
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(got) != "test" {
			t.Errorf("got %q, want %q", got, "test")
		}
	})

	t.Run("rejects file exceeding max size", func(t *testing.T) {
		tmpDir := t.TempDir()
		path := filepath.Join(tmpDir, "large.txt")

		if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
			t.Fatal(err)
		}

		_, err := ReadFile(path, &Options{MaxSize: 50})
		if !errors.Is(err, ErrTooLarge) {
			t.Fatalf("expected ErrTooLarge, got %v", err)
		}
	})

	t.Run("rejects directory", func(t *testing.T) {
		if _, err := ReadFile(t.TempDir(), nil); err == nil {
			t.Fatal("expected error for directory, got nil")
		}
	})
}

func TestReplaceFile(t *testing.T) {
	t.Run("writes new file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.trace")
		data := []byte{0x53, 0x4c, 0x4f, 0x57, 0x00, 0x01}

		if err := ReplaceFile(path, data, nil); err != nil {
			t.Fatalf("ReplaceFile failed: %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("got %v, want %v", got, data)
		}
	})

	t.Run("overwrites longer existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.trace")
		if err := os.WriteFile(path, []byte("a much longer previous trace"), 0o644); err != nil {
			t.Fatal(err)
		}

		if err := ReplaceFile(path, []byte("new"), nil); err != nil {
			t.Fatalf("ReplaceFile failed: %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "new" {
			t.Errorf("got %q, want %q", got, "new")
		}
	})

	t.Run("applies permissions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.trace")

		if err := ReplaceFile(path, []byte("x"), &Options{Perm: 0o644}); err != nil {
			t.Fatal(err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0o644 {
			t.Errorf("got permissions %o, want %o", info.Mode().Perm(), 0o644)
		}
	})

	t.Run("refuses directory target", func(t *testing.T) {
		if err := ReplaceFile(t.TempDir(), []byte("x"), nil); err == nil {
			t.Fatal("expected error for directory target")
		}
	})
}

func TestWriteFromReader(t *testing.T) {
	t.Run("copies content", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "perfd")

		n, err := WriteFromReader(dst, strings.NewReader("ELF..."), &Options{Perm: 0o755})
		if err != nil {
			t.Fatalf("WriteFromReader failed: %v", err)
		}
		if n != 6 {
			t.Errorf("wrote %d bytes, want 6", n)
		}
	})

	t.Run("rejects oversized content", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "perfd")

		_, err := WriteFromReader(dst, bytes.NewReader(make([]byte, 64)), &Options{MaxSize: 32})
		if !errors.Is(err, ErrTooLarge) {
			t.Fatalf("expected ErrTooLarge, got %v", err)
		}
		if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
			t.Error("expected partial file to be removed")
		}
	})
}

func TestRemovePath(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	path := filepath.Join(t.TempDir(), "agent.config")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	RemovePath(path, logger)
	RemovePath(path, logger) // already gone, silent
	RemovePath("", logger)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected file to be removed")
	}
	if buf.Len() > 0 {
		t.Errorf("expected no log output, got %q", buf.String())
	}
}
