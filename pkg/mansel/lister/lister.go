// Package lister abstracts directory enumeration behind an interface so
// the selection model and size fetcher can run against the real
// filesystem or a test double.
package lister

import (
	"fmt"
	"os"
	"sort"

	"github.com/wshanks/mansel/pkg/mansel/logging"
	"github.com/wshanks/mansel/pkg/mansel/types"
)

// Lister enumerates directory children and reports file sizes.
type Lister interface {
	// List returns the immediate children of a directory.
	List(path string) ([]types.Entry, error)

	// Size returns the size in bytes of the file at path.
	Size(path string) (int64, error)
}

// Filesystem is a Lister backed by the local filesystem. Entries whose
// metadata cannot be read are skipped and logged rather than failing the
// whole listing.
type Filesystem struct{}

// NewFilesystem returns a filesystem-backed Lister.
func NewFilesystem() *Filesystem {
	return &Filesystem{}
}

// List returns the immediate children of path, sorted by name.
func (f *Filesystem) List(path string) ([]types.Entry, error) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}

	entries := make([]types.Entry, 0, len(dirents))
	for _, d := range dirents {
		entry := types.Entry{Name: d.Name(), IsDir: d.IsDir()}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				logging.Get("lister").Warn("skipping unreadable entry", "path", path, "name", d.Name(), "error", err)
				continue
			}
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Size returns the size of the file at path from filesystem metadata.
func (f *Filesystem) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}
