package reconciler

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/s3invsync/s3invsync/internal/errors"
)

// ensureFile reports whether path exists as a regular file. It returns an
// error if path exists but is something else (a directory or symlink),
// since such a collision means the backup root was tampered with outside
// of s3invsync.
func ensureFile(path string) (bool, error) {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", path)
	}
	if !fi.Mode().IsRegular() {
		return false, errors.Errorf("%s exists but is not a regular file", path)
	}
	return true, nil
}

// forceCreateDirAll creates every directory named in rel (a '/'-separated
// path) under root, failing if any already-existing path component is not
// a plain directory.
func forceCreateDirAll(root, rel string) error {
	if rel == "" {
		return nil
	}
	cur := root
	for _, part := range strings.Split(rel, "/") {
		cur = filepath.Join(cur, part)
		fi, err := os.Lstat(cur)
		if errors.Is(err, os.ErrNotExist) {
			if mkErr := os.Mkdir(cur, 0o777); mkErr != nil && !errors.Is(mkErr, os.ErrExist) {
				return errors.Wrapf(mkErr, "failed to create directory %s", cur)
			}
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "failed to stat %s", cur)
		}
		if !fi.IsDir() {
			return errors.Errorf("%s exists and is not a directory", cur)
		}
	}
	return nil
}

// isEmptyDir reports whether dir contains no entries.
func isEmptyDir(dir string) (bool, error) {
	f, err := os.Open(dir)
	if err != nil {
		return false, err
	}
	defer f.Close()
	_, err = f.Readdirnames(1)
	if err == nil {
		return false, nil
	}
	if err == io.EOF {
		return true, nil
	}
	return false, err
}

// removeEmptyAncestors removes dir, and then each successive empty parent
// up to but not including root, stopping at the first non-empty directory.
// A directory that is already missing is skipped and its parent is tried.
func removeEmptyAncestors(dir, root string) error {
	dir = filepath.Clean(dir)
	root = filepath.Clean(root)
	for {
		if dir == root || !strings.HasPrefix(dir, root+string(filepath.Separator)) {
			return nil
		}
		empty, err := isEmptyDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			dir = filepath.Dir(dir)
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "failed to check whether %s is empty", dir)
		}
		if !empty {
			return nil
		}
		if err := os.Remove(dir); err != nil {
			return errors.Wrapf(err, "failed to remove empty directory %s", dir)
		}
		dir = filepath.Dir(dir)
	}
}
