package session

import (
	"os"

	"github.com/rs/zerolog"

	errs "github.com/tracehelper/tracehelper/internal/errors"
	"github.com/tracehelper/tracehelper/internal/safe"
)

// unsupportedPathMessage is reported when the device left the trace at a
// path instead of streaming it back.
const unsupportedPathMessage = "Method profiling: Older devices (API level < 10) are not supported. Please use DDMS."

// Writer persists Saved outcomes to the host filesystem.
type Writer struct {
	perm   os.FileMode
	logger zerolog.Logger
}

// NewWriter creates an outcome writer.
func NewWriter(logger zerolog.Logger) *Writer {
	return &Writer{perm: 0o644, logger: logger}
}

// Write stores the trace bytes of o at outputPath, replacing any existing
// file. A trace left on the device fails with KindUnsupported; any other
// outcome kind has nothing to write and fails with KindSaveFailed.
func (w *Writer) Write(o Outcome, outputPath string) error {
	const op = "write trace"

	if o.Kind != OutcomeSaved {
		return errs.Newf(errs.KindSaveFailed, op, "no trace to write for outcome %s", o.Kind)
	}
	if o.RemotePath != "" {
		return errs.New(errs.KindUnsupported, op, unsupportedPathMessage)
	}

	if err := safe.ReplaceFile(outputPath, o.Data, &safe.Options{Perm: w.perm}); err != nil {
		return errs.Wrap(errs.KindSaveFailed, op, err, "cannot write "+outputPath)
	}

	w.logger.Info().
		Str("path", outputPath).
		Int("bytes", len(o.Data)).
		Msg("Trace saved")
	return nil
}
