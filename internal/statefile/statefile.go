// Package statefile persists small cross-run bookkeeping (the start and
// finish times of the last backup) next to the local mirror, so that
// successive runs and outside tooling can tell when the mirror was last
// brought up to date.
package statefile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/s3invsync/s3invsync/internal/errors"
)

// Filename is the name of the state file s3invsync keeps at the root of the
// output directory.
const Filename = ".s3invsync.state.json"

// State is the bookkeeping record kept across runs.
type State struct {
	LastBackupStarted            *time.Time `json:"last_backup_started,omitempty"`
	LastSuccessfulBackupFinished *time.Time `json:"last_successful_backup_finished,omitempty"`
}

// Load reads and parses the state file at path, returning a zero State with
// no error if the file does not exist.
func Load(path string) (*State, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &State{}, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	var st State
	if err := json.Unmarshal(content, &st); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize contents of %s", path)
	}
	return &st, nil
}

// Save atomically writes state to path via a temp file in the same
// directory followed by a rename.
func Save(path string, state *State) error {
	content, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize state to %s", path)
	}
	content = append(content, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".s3invsync.state.*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary state file for updating %s", path)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "failed to write temporary state file for %s", path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "failed to sync temporary state file for %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close temporary state file for %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "failed to persist temporary state file to %s", path)
	}
	return nil
}

// Manager wraps Load/Save with the start-of-run/end-of-run bookkeeping
// s3invsync performs around each backup.
type Manager struct {
	path string
}

// New returns a Manager for the state file under outdir.
func New(outdir string) *Manager {
	return &Manager{path: filepath.Join(outdir, Filename)}
}

// Path returns the path to the state file.
func (m *Manager) Path() string {
	return m.path
}

// ErrPreviousRunIncomplete is returned by Start when requireLastSuccess is
// true and the state file shows a run that started but never finished.
var ErrPreviousRunIncomplete = errors.New("previous backup did not complete successfully")

// Start records that a backup is beginning now. If requireLastSuccess is
// true and the state shows a prior run started without a subsequent
// successful finish, it returns ErrPreviousRunIncomplete without modifying
// the state file.
func (m *Manager) Start(now time.Time, requireLastSuccess bool) error {
	st, err := Load(m.path)
	if err != nil {
		return err
	}
	if requireLastSuccess && st.LastBackupStarted != nil {
		finished := st.LastSuccessfulBackupFinished
		if finished == nil || finished.Before(*st.LastBackupStarted) {
			return ErrPreviousRunIncomplete
		}
	}
	st.LastBackupStarted = &now
	return Save(m.path, st)
}

// End records that the current backup finished successfully just now.
func (m *Manager) End(now time.Time) error {
	st, err := Load(m.path)
	if err != nil {
		return err
	}
	st.LastSuccessfulBackupFinished = &now
	return Save(m.path, st)
}
