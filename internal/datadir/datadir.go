// Package datadir resolves where crawlwatch keeps its local state: the
// history database, SSH keys, scheduled jobs, exports and logs.
package datadir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is created under $HOME when nothing else is configured
	DefaultDirName = ".crawlwatch"

	// EnvVar overrides data_dir from crawlwatch.yaml
	EnvVar = "CRAWLWATCH_DATA_DIR"
)

// Area is a subdirectory of the data root. AreaRoot is the root itself.
type Area string

const (
	AreaRoot    Area = ""
	AreaSSH     Area = "ssh"
	AreaHistory Area = "data"
	AreaExports Area = "exports"
	AreaLogs    Area = "logs"
)

// Areas lists every subdirectory EnsureDirs creates
var Areas = []Area{AreaSSH, AreaHistory, AreaExports, AreaLogs}

// DataDir maps areas and file names to absolute locations. Nothing touches
// the disk until EnsureDirs.
type DataDir struct {
	root string
}

// New picks the root from CRAWLWATCH_DATA_DIR, then configValue, then
// ~/.crawlwatch
func New(configValue string) (*DataDir, error) {
	root := os.Getenv(EnvVar)
	if root == "" {
		root = configValue
	}
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		root = filepath.Join(home, DefaultDirName)
	}
	return &DataDir{root: root}, nil
}

func (d *DataDir) Root() string { return d.root }

// Dir returns the directory of an area
func (d *DataDir) Dir(a Area) string {
	if a == AreaRoot {
		return d.root
	}
	return filepath.Join(d.root, string(a))
}

// Path joins name onto an area's directory
func (d *DataDir) Path(a Area, name string) string {
	return filepath.Join(d.Dir(a), name)
}

// Resolve anchors a configured path at the root. Absolute and empty paths
// are returned as given.
func (d *DataDir) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.root, p)
}

// EnsureDirs creates the root and every area, owner-only
func (d *DataDir) EnsureDirs() error {
	if err := os.MkdirAll(d.root, 0700); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", d.root, err)
	}
	for _, a := range Areas {
		dir := d.Dir(a)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create %s directory %s: %w", a, dir, err)
		}
	}
	return nil
}
