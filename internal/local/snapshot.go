// Package local reads and writes the destination directory tree.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mirrorsync/internal/domain"
)

// artifactMarker appears in the tool's own files under the destination
// (the lock file and in-flight temporaries). They are never mirror
// content and must not surface as orphans.
const artifactMarker = ".mirrorsync."

// Snapshot is a read-only inventory of the files already present under
// the destination root, keyed by relative slash path. Built once per
// run and safely shared after construction.
type Snapshot map[string]domain.LocalEntry

// Contains reports whether a relative path is present
func (s Snapshot) Contains(relPath string) bool {
	_, ok := s[relPath]
	return ok
}

// Scan walks the destination root and records every regular file.
// Symlinks and other non-regular files are ignored, so the planner
// will schedule a fresh download over them. A missing root is an empty
// snapshot, not an error: the first run starts from nothing.
func Scan(ctx context.Context, rootDir string) (Snapshot, error) {
	snapshot := make(Snapshot)

	info, err := os.Stat(rootDir)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshot, nil
		}
		return nil, fmt.Errorf("failed to stat destination: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("destination %s is not a directory", rootDir)
	}

	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.Contains(d.Name(), artifactMarker) {
			return nil
		}

		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}

		fi, err := d.Info()
		if err != nil {
			// Raced with deletion; the file is simply not present.
			return nil
		}

		relSlash := filepath.ToSlash(rel)
		snapshot[relSlash] = domain.LocalEntry{
			Path:    relSlash,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan destination: %w", err)
	}

	return snapshot, nil
}
