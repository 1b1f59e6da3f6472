package agent

import (
	"archive/zip"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tracehelper/tracehelper/internal/constants"
	errs "github.com/tracehelper/tracehelper/internal/errors"
	"github.com/tracehelper/tracehelper/internal/safe"
)

// Catalog is a set of bundled agent binaries keyed by ABI tag.
// A bundle is either a directory tree or an archive; both hold one
// <abi>/perfd entry per supported ABI.
type Catalog interface {
	// ABIs lists the tags that have an agent entry.
	ABIs() ([]string, error)

	// Materialize makes the agent for abi available as a local file and
	// returns its path.
	Materialize(abi string) (string, error)
}

// DirCatalog serves agents from a plain directory tree: <root>/<abi>/perfd.
type DirCatalog struct {
	root   string
	binary string
}

// NewDirCatalog creates a catalog over root.
func NewDirCatalog(root string) *DirCatalog {
	return &DirCatalog{root: root, binary: constants.AgentBinaryName}
}

// ABIs implements Catalog.
func (c *DirCatalog) ABIs() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("read agent bundle %s: %w", c.root, err)
	}

	var abis []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(c.root, e.Name(), c.binary))
		if err == nil && info.Mode().IsRegular() {
			abis = append(abis, e.Name())
		}
	}
	return abis, nil
}

// Materialize implements Catalog. Directory entries are used in place.
func (c *DirCatalog) Materialize(abi string) (string, error) {
	p := filepath.Join(c.root, abi, c.binary)
	info, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", p)
	}
	return p, nil
}

// ArchiveCatalog serves agents from a zip archive whose entries live under
// a fixed prefix (perfd/<abi>/perfd). Materialize extracts the match into
// a scratch directory.
type ArchiveCatalog struct {
	path       string
	prefix     string
	binary     string
	scratchDir string
	logger     zerolog.Logger
}

// NewArchiveCatalog creates a catalog over the archive at archivePath.
func NewArchiveCatalog(archivePath, scratchDir string, logger zerolog.Logger) *ArchiveCatalog {
	return &ArchiveCatalog{
		path:       archivePath,
		prefix:     constants.AgentBundlePrefix,
		binary:     constants.AgentBinaryName,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

// ABIs implements Catalog.
func (c *ArchiveCatalog) ABIs() ([]string, error) {
	r, err := zip.OpenReader(c.path)
	if err != nil {
		return nil, fmt.Errorf("open agent bundle %s: %w", c.path, err)
	}
	defer errs.DeferClose(c.logger, r, "failed to close agent bundle")

	var abis []string
	for _, f := range r.File {
		if abi, ok := c.entryABI(f.Name); ok {
			abis = append(abis, abi)
		}
	}
	sort.Strings(abis)
	return abis, nil
}

// Materialize implements Catalog.
func (c *ArchiveCatalog) Materialize(abi string) (string, error) {
	r, err := zip.OpenReader(c.path)
	if err != nil {
		return "", fmt.Errorf("open agent bundle %s: %w", c.path, err)
	}
	defer errs.DeferClose(c.logger, r, "failed to close agent bundle")

	want := c.prefix + path.Join(abi, c.binary)
	for _, f := range r.File {
		if f.Name != want {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer errs.DeferClose(c.logger, rc, "failed to close bundle entry")

		//nolint:gosec // G301: scratch directory is private to this process
		if err := os.MkdirAll(c.scratchDir, 0o755); err != nil {
			return "", fmt.Errorf("create scratch directory: %w", err)
		}

		dst := filepath.Join(c.scratchDir, c.binary)
		if _, err := safe.WriteFromReader(dst, rc, &safe.Options{
			MaxSize: constants.MaxAgentBinarySize,
			Perm:    0o755,
		}); err != nil {
			return "", fmt.Errorf("extract %s: %w", f.Name, err)
		}
		return dst, nil
	}

	return "", fmt.Errorf("no entry %s in %s", want, c.path)
}

// entryABI extracts the ABI tag from an archive entry name of the form
// <prefix><abi>/<binary>.
func (c *ArchiveCatalog) entryABI(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, c.prefix)
	if !ok {
		return "", false
	}
	abi, file, ok := strings.Cut(rest, "/")
	if !ok || abi == "" || file != c.binary {
		return "", false
	}
	return abi, true
}

// OpenCatalog picks the catalog backend for bundlePath: a directory is
// served in place, a regular file is read as an archive.
func OpenCatalog(bundlePath, scratchDir string, logger zerolog.Logger) (Catalog, error) {
	info, err := os.Stat(bundlePath)
	if err != nil {
		return nil, errs.Wrap(errs.KindAgentNotFound, "open agent bundle", err, bundlePath)
	}
	if info.IsDir() {
		return NewDirCatalog(bundlePath), nil
	}
	return NewArchiveCatalog(bundlePath, scratchDir, logger), nil
}

// BundleSearchPaths returns the locations searched for an agent bundle
// when none is configured, in order.
func BundleSearchPaths(stateDir string) []string {
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	if stateDir != "" {
		dirs = append(dirs, stateDir)
	}
	dirs = append(dirs, ".")

	seen := make(map[string]struct{})
	var result []string
	for _, dir := range dirs {
		for _, name := range []string{constants.AgentBinaryName, constants.AgentBinaryName + ".zip"} {
			p := filepath.Clean(filepath.Join(dir, name))
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			result = append(result, p)
		}
	}
	return result
}

// FindBundle returns the first existing path among candidates.
func FindBundle(candidates []string) (string, error) {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errs.Newf(errs.KindAgentNotFound, "find agent bundle",
		"no agent bundle found (searched %s)", strings.Join(candidates, ", "))
}
