// Package metadata implements the per-directory sidecar database that
// records the version ID and etag of the latest copy of every file s3invsync
// has downloaded into that directory. The reconciler consults it to decide
// whether a local file is already up to date, and updates it whenever it
// downloads a new latest version.
package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/s3invsync/s3invsync/internal/debug"
	"github.com/s3invsync/s3invsync/internal/errors"
	"github.com/s3invsync/s3invsync/internal/keypath"
)

// Entry is the metadata s3invsync keeps about the latest downloaded version
// of a file.
type Entry struct {
	VersionID string `json:"version_id"`
	ETag      string `json:"etag"`
}

// OldFilename returns the filename under which a non-latest version of the
// key with this metadata would be stored, given the file's basename.
func (e Entry) OldFilename(basename string) string {
	return keypath.OldFilename(basename, e.VersionID, e.ETag)
}

// Store manages the sidecar JSON database for a single directory. It is
// safe to share between goroutines only if callers hold the path lock for
// the database file (see internal/pathlock); Store itself does no locking.
type Store struct {
	dirpath      string
	databasePath string
}

// New returns a Store for the database file inside dirpath.
func New(dirpath string) *Store {
	return &Store{
		dirpath:      dirpath,
		databasePath: filepath.Join(dirpath, keypath.MetadataFilename),
	}
}

// Path returns the path to the sidecar database file.
func (s *Store) Path() string {
	return s.databasePath
}

// Load reads and parses the database, returning an empty map if the file
// does not exist.
func (s *Store) Load() (map[string]Entry, error) {
	content, err := os.ReadFile(s.databasePath)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Entry{}, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", s.databasePath)
	}
	var data map[string]Entry
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize contents of %s", s.databasePath)
	}
	return data, nil
}

// Store atomically replaces the database's contents with data.
func (s *Store) Store(data map[string]Entry) error {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize metadata for %s", s.databasePath)
	}
	content = append(content, '\n')

	tmp, err := os.CreateTemp(s.dirpath, ".s3invsync.versions.*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary database file for updating %s", s.databasePath)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "failed to write temporary database file for %s", s.databasePath)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "failed to sync temporary database file for %s", s.databasePath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close temporary database file for %s", s.databasePath)
	}
	if err := os.Rename(tmp.Name(), s.databasePath); err != nil {
		return errors.Wrapf(err, "failed to persist temporary database file to %s", s.databasePath)
	}
	debug.Log("wrote %d entries to %s", len(data), s.databasePath)
	return nil
}

// Get retrieves the metadata for filename, reporting ok=false if no entry
// exists.
func (s *Store) Get(filename string) (Entry, bool, error) {
	data, err := s.Load()
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := data[filename]
	return e, ok, nil
}

// Set records md as the metadata for filename, creating the database file
// if necessary.
func (s *Store) Set(filename string, md Entry) error {
	data, err := s.Load()
	if err != nil {
		return err
	}
	data[filename] = md
	return s.Store(data)
}

// Delete removes any metadata entry for filename. It is a no-op if none
// exists.
func (s *Store) Delete(filename string) error {
	data, err := s.Load()
	if err != nil {
		return err
	}
	if _, ok := data[filename]; !ok {
		return nil
	}
	delete(data, filename)
	return s.Store(data)
}
