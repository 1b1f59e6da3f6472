package agent

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	errs "github.com/tracehelper/tracehelper/internal/errors"
)

// Selection is the agent binary chosen for a device.
type Selection struct {
	ABI       string
	LocalPath string
	// Checksum is the xxh3 hash of the binary, logged for diagnostics.
	Checksum uint64
}

// Selector picks the agent binary matching a device's ABIs.
type Selector struct {
	catalog Catalog
	logger  zerolog.Logger
}

// NewSelector creates a selector over catalog.
func NewSelector(catalog Catalog, logger zerolog.Logger) *Selector {
	return &Selector{catalog: catalog, logger: logger}
}

// Select returns the catalog entry for the first device ABI, in the
// device's preference order, that the catalog carries. It fails with
// KindAgentNotFound when no entry matches.
func (s *Selector) Select(deviceABIs []string) (*Selection, error) {
	available, err := s.catalog.ABIs()
	if err != nil {
		return nil, errs.Wrap(errs.KindAgentNotFound, "select agent", err, "cannot read agent bundle")
	}

	for _, abi := range deviceABIs {
		if !slices.Contains(available, abi) {
			continue
		}

		localPath, err := s.catalog.Materialize(abi)
		if err != nil {
			return nil, errs.Wrap(errs.KindAgentNotFound, "select agent", err, "cannot extract agent for "+abi)
		}

		sum, err := checksumFile(localPath)
		if err != nil {
			return nil, errs.Wrap(errs.KindAgentNotFound, "select agent", err, "cannot read agent for "+abi)
		}

		s.logger.Debug().
			Str("abi", abi).
			Str("path", localPath).
			Str("checksum", fmt.Sprintf("%016x", sum)).
			Msg("Selected agent binary")

		return &Selection{ABI: abi, LocalPath: localPath, Checksum: sum}, nil
	}

	return nil, errs.Newf(errs.KindAgentNotFound, "select agent",
		"no agent for device ABIs [%s] (bundle has [%s])",
		strings.Join(deviceABIs, ", "), strings.Join(available, ", "))
}

func checksumFile(p string) (uint64, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
