// Package gc implements C9: once every file directly inside a directory has
// been reconciled, remove whatever local entries the inventory no longer
// references and prune the directory's metadata sidecar to match.
package gc

import (
	"context"
	"os"
	"path/filepath"

	"github.com/s3invsync/s3invsync/internal/errors"
	"github.com/s3invsync/s3invsync/internal/keypath"
	"github.com/s3invsync/s3invsync/internal/metadata"
	"github.com/s3invsync/s3invsync/internal/notify"
	"github.com/s3invsync/s3invsync/internal/treetracker"
	"github.com/s3invsync/s3invsync/internal/ui"
)

// GC prunes one directory's worth of local entries against a closed
// directory event.
type GC struct {
	Outdir  string
	Printer *ui.Printer
}

// New returns a GC rooted at outdir, using printer to log deletion warnings.
func New(outdir string, printer *ui.Printer) *GC {
	return &GC{Outdir: outdir, Printer: printer}
}

// Run waits for every file directly in dir to finish reconciling, then
// deletes local entries that the inventory no longer references and prunes
// the directory's metadata sidecar to match. ctx cancellation interrupts
// only the notifier wait; once that completes, cleanup runs to completion
// so that a half-applied GC never leaves the mirror in a worse state.
func (g *GC) Run(ctx context.Context, dir treetracker.Directory[*notify.Notifier]) error {
	for _, e := range dir.Entries {
		if e.IsDir || e.Value == nil {
			continue
		}
		if err := e.Value.Wait(ctx); err != nil {
			return err
		}
	}

	rel, _ := dir.Path()
	dirpath := g.Outdir
	if rel != "" {
		dirpath = filepath.Join(g.Outdir, rel)
	}

	entries, err := os.ReadDir(dirpath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to list %s", dirpath)
	}

	var filesToDelete, dirsToDelete []string
	seenFiles := make(map[string]bool)

	for _, entry := range entries {
		name := entry.Name()
		isDir := entry.IsDir()
		if isDir {
			if !dir.ContainsDir(name) {
				dirsToDelete = append(dirsToDelete, name)
			}
			continue
		}
		if !keypath.IsSpecialComponent(name) {
			seenFiles[name] = true
		}
		if name != keypath.MetadataFilename && !dir.ContainsFile(name) {
			filesToDelete = append(filesToDelete, name)
		}
	}

	for _, name := range filesToDelete {
		p := filepath.Join(dirpath, name)
		if err := os.Remove(p); err != nil {
			g.Printer.Warn("failed to delete %s: %v", p, err)
		}
	}
	for _, name := range dirsToDelete {
		p := filepath.Join(dirpath, name)
		if err := os.RemoveAll(p); err != nil {
			g.Printer.Warn("failed to delete directory %s: %v", p, err)
		}
	}

	if len(seenFiles) == 0 {
		return nil
	}
	store := metadata.New(dirpath)
	data, err := store.Load()
	if err != nil {
		return errors.Wrapf(err, "failed to load metadata for %s", dirpath)
	}
	modified := false
	for name := range seenFiles {
		if dir.ContainsFile(name) {
			continue
		}
		if stillPresent(dirpath, name) {
			continue
		}
		if _, ok := data[name]; ok {
			delete(data, name)
			modified = true
		}
	}
	if modified {
		if err := store.Store(data); err != nil {
			return errors.Wrapf(err, "failed to store metadata for %s", dirpath)
		}
	}
	return nil
}

func stillPresent(dirpath, name string) bool {
	_, err := os.Lstat(filepath.Join(dirpath, name))
	return err == nil
}
