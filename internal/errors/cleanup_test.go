package errors

import (
	"bytes"
	stderrors "errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     io.Closer
		wantLogged bool
	}{
		{
			name:       "nil closer",
			closer:     nil,
			wantLogged: false,
		},
		{
			name:       "successful close",
			closer:     &mockCloser{},
			wantLogged: false,
		},
		{
			name:       "close with error",
			closer:     &mockCloser{closeErr: stderrors.New("close failed")},
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			DeferClose(logger, tt.closer, "test close")

			if tt.closer != nil {
				mc := tt.closer.(*mockCloser)
				if !mc.closed {
					t.Error("Close() was not called")
				}
			}

			logged := buf.Len() > 0
			if logged != tt.wantLogged {
				t.Errorf("logged = %v, want %v", logged, tt.wantLogged)
			}
		})
	}
}

func TestBestEffort(t *testing.T) {
	t.Run("logs failure and continues", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)

		BestEffort(logger, "remove forward", func() error {
			return stderrors.New("device gone")
		})

		if !bytes.Contains(buf.Bytes(), []byte("remove forward")) {
			t.Errorf("expected step name in log, got %q", buf.String())
		}
	})

	t.Run("silent on success", func(t *testing.T) {
		var buf bytes.Buffer
		logger := zerolog.New(&buf)

		BestEffort(logger, "noop", func() error { return nil })
		BestEffort(logger, "nil", nil)

		if buf.Len() > 0 {
			t.Errorf("expected no log output, got %q", buf.String())
		}
	})
}
