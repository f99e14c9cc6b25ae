// Package reconciler implements C6: the per-row state machine that brings
// one local path into agreement with one inventory item, downloading,
// renaming, or leaving alone as needed.
package reconciler

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/dustin/go-humanize"

	"github.com/s3invsync/s3invsync/internal/errors"
	"github.com/s3invsync/s3invsync/internal/filterlog"
	"github.com/s3invsync/s3invsync/internal/inventory"
	"github.com/s3invsync/s3invsync/internal/metadata"
	"github.com/s3invsync/s3invsync/internal/pathlock"
	"github.com/s3invsync/s3invsync/internal/ui"
)

// Downloader streams one object version's body to w, verifying its MD5
// against expectedMD5 when expectedMD5 is non-empty.
type Downloader interface {
	DownloadObject(ctx context.Context, bucket, key, versionID, expectedMD5 string, w io.Writer) error
}

// Reconciler applies inventory rows to a local mirror rooted at Outdir.
type Reconciler struct {
	Outdir     string
	Client     Downloader
	Locks      *pathlock.Pool
	FilterLog  *filterlog.Logger
	PathFilter *regexp.Regexp

	// Printer receives verbose per-download status and cleanup warnings.
	// A nil Printer is valid and silences both.
	Printer *ui.Printer
}

func (r *Reconciler) verbosef(format string, args ...interface{}) {
	if r.Printer != nil {
		r.Printer.Verbosef(format, args...)
	}
}

func (r *Reconciler) warn(format string, args ...interface{}) {
	if r.Printer != nil {
		r.Printer.Warn(format, args...)
	}
}

// Process reconciles a single inventory row against the local mirror. It
// returns nil for rows that are filtered out, delete markers, or already
// up to date.
func (r *Reconciler) Process(ctx context.Context, row *inventory.Row) error {
	if r.PathFilter != nil && !r.PathFilter.MatchString(row.Key.String()) {
		r.FilterLog.Log()
		return nil
	}
	if row.Deleted {
		return nil
	}

	dir, filename := row.Key.Split()
	parentDir := r.Outdir
	if dir != "" {
		if err := forceCreateDirAll(r.Outdir, dir); err != nil {
			return err
		}
		parentDir = filepath.Join(r.Outdir, dir)
	}

	md := metadata.Entry{VersionID: row.VersionID, ETag: row.Details.ETag}
	store := metadata.New(parentDir)
	oldName := md.OldFilename(filename)
	latestPath := filepath.Join(parentDir, filename)
	oldPath := filepath.Join(parentDir, oldName)

	if row.IsLatest {
		return r.processLatest(ctx, row, parentDir, filename, latestPath, oldPath, store, md)
	}
	return r.processOld(ctx, row, parentDir, filename, latestPath, oldPath, store, md)
}

func (r *Reconciler) processLatest(ctx context.Context, row *inventory.Row, parentDir, filename, latestPath, oldPath string, store *metadata.Store, md metadata.Entry) error {
	guard, err := r.Locks.Lock(ctx, latestPath)
	if err != nil {
		return errors.Wrapf(err, "failed to acquire lock for %s", latestPath)
	}
	defer guard.Unlock()

	exists, err := ensureFile(latestPath)
	if err != nil {
		return err
	}
	if exists {
		current, ok, err := store.Get(filename)
		if err != nil {
			return errors.Wrapf(err, "failed to get local metadata for %s", filename)
		}
		if !ok {
			return errors.Errorf("no metadata entry for %q in %s", filename, store.Path())
		}
		if current == md {
			return nil
		}
		if err := r.moveObjectFile(latestPath, filepath.Join(parentDir, current.OldFilename(filename))); err != nil {
			return err
		}
		downloaded, err := r.downloadItem(ctx, row, parentDir, latestPath)
		if err != nil {
			return err
		}
		if downloaded {
			if err := store.Set(filename, md); err != nil {
				return errors.Wrapf(err, "failed to set local metadata for %s", filename)
			}
		}
		return nil
	}

	oldExists, err := ensureFile(oldPath)
	if err != nil {
		return err
	}
	if oldExists {
		if err := r.moveObjectFile(oldPath, latestPath); err != nil {
			return err
		}
		return errors.Wrapf(store.Set(filename, md), "failed to set local metadata for %s", filename)
	}

	downloaded, err := r.downloadItem(ctx, row, parentDir, latestPath)
	if err != nil {
		return err
	}
	if downloaded {
		if err := store.Set(filename, md); err != nil {
			return errors.Wrapf(err, "failed to set local metadata for %s", filename)
		}
	}
	return nil
}

func (r *Reconciler) processOld(ctx context.Context, row *inventory.Row, parentDir, filename, latestPath, oldPath string, store *metadata.Store, md metadata.Entry) error {
	exists, err := ensureFile(oldPath)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	guard, err := r.Locks.Lock(ctx, latestPath)
	if err != nil {
		return errors.Wrapf(err, "failed to acquire lock for %s", latestPath)
	}

	latestExists, err := ensureFile(latestPath)
	if err != nil {
		guard.Unlock()
		return err
	}
	if latestExists {
		current, ok, err := store.Get(filename)
		if err != nil {
			guard.Unlock()
			return errors.Wrapf(err, "failed to get local metadata for %s", filename)
		}
		if !ok {
			guard.Unlock()
			return errors.Errorf("no metadata entry for %q in %s", filename, store.Path())
		}
		if current == md {
			if err := r.moveObjectFile(latestPath, oldPath); err != nil {
				guard.Unlock()
				return err
			}
			guard.Unlock()
			return errors.Wrapf(store.Delete(filename), "failed to delete local metadata for %s", filename)
		}
	}
	// No lock is needed for the download: oldPath is unique to this
	// (version, etag) pair, so no other task can be working on it.
	guard.Unlock()
	_, err = r.downloadItem(ctx, row, parentDir, oldPath)
	return err
}

func (r *Reconciler) moveObjectFile(src, dest string) error {
	if err := os.Rename(src, dest); err != nil {
		return errors.Wrapf(err, "failed to move %s to %s", src, dest)
	}
	return nil
}

// downloadItem streams row's content into destPath via a temp file in
// parentDir, verifying its MD5 when the row's etag is known to be one. It
// returns false without error if ctx was cancelled before the download
// completed.
func (r *Reconciler) downloadItem(ctx context.Context, row *inventory.Row, parentDir, destPath string) (bool, error) {
	outfile, err := os.CreateTemp(parentDir, ".s3invsync.download.*")
	if err != nil {
		return false, errors.Wrapf(err, "failed to create temporary output file for %s", destPath)
	}
	tmpName := outfile.Name()

	expectedMD5 := ""
	if row.Details.ETagIsMD5 {
		expectedMD5 = row.Details.ETag
	}

	size := "unknown size"
	if row.Details.Size != nil {
		size = humanize.Bytes(uint64(*row.Details.Size))
	}
	r.verbosef("downloading %s (%s)", destPath, size)

	err = r.Client.DownloadObject(ctx, row.Bucket, row.Key.String(), row.VersionID, expectedMD5, outfile)
	if err != nil {
		_ = outfile.Close()
		if cleanupErr := r.cleanupDownloadPath(tmpName, parentDir); cleanupErr != nil {
			// the download error itself takes priority as the returned error
			r.warn("failed to clean up after a failed download of %s: %v", destPath, cleanupErr)
		}
		if ctx.Err() != nil {
			return false, nil
		}
		return false, errors.Wrapf(err, "failed to download object for %s", destPath)
	}

	if err := outfile.Close(); err != nil {
		return false, errors.Wrapf(err, "failed to close temporary output file for %s", destPath)
	}
	if err := os.Rename(tmpName, destPath); err != nil {
		return false, errors.Wrapf(err, "failed to persist temporary output file to %s", destPath)
	}
	if row.LastModifiedDate != nil {
		if err := os.Chtimes(destPath, *row.LastModifiedDate, *row.LastModifiedDate); err != nil {
			return false, errors.Wrapf(err, "failed to set mtime on %s", destPath)
		}
	}
	return true, nil
}

func (r *Reconciler) cleanupDownloadPath(tmpName, parentDir string) error {
	if err := os.Remove(tmpName); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "failed to remove temporary download file %s", tmpName)
	}
	return removeEmptyAncestors(parentDir, r.Outdir)
}
