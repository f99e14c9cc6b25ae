package statefile_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/s3invsync/s3invsync/internal/statefile"
)

func TestLoadMissing(t *testing.T) {
	st, err := statefile.Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.LastBackupStarted != nil || st.LastSuccessfulBackupFinished != nil {
		t.Errorf("Load() of missing file = %+v, want zero State", st)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	now := time.Now().UTC().Truncate(time.Second)
	if err := statefile.Save(path, &statefile.State{LastBackupStarted: &now}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	st, err := statefile.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.LastBackupStarted == nil || !st.LastBackupStarted.Equal(now) {
		t.Errorf("LastBackupStarted = %v, want %v", st.LastBackupStarted, now)
	}
}

func TestManagerStartEnd(t *testing.T) {
	dir := t.TempDir()
	m := statefile.New(dir)

	start := time.Now().UTC().Truncate(time.Second)
	if err := m.Start(start, false); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	finish := start.Add(time.Minute)
	if err := m.End(finish); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	st, err := statefile.Load(m.Path())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if st.LastBackupStarted == nil || !st.LastBackupStarted.Equal(start) {
		t.Errorf("LastBackupStarted = %v, want %v", st.LastBackupStarted, start)
	}
	if st.LastSuccessfulBackupFinished == nil || !st.LastSuccessfulBackupFinished.Equal(finish) {
		t.Errorf("LastSuccessfulBackupFinished = %v, want %v", st.LastSuccessfulBackupFinished, finish)
	}
}

func TestManagerStartRequireLastSuccessFails(t *testing.T) {
	dir := t.TempDir()
	m := statefile.New(dir)

	start := time.Now().UTC().Truncate(time.Second)
	if err := m.Start(start, false); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	// No End() was recorded, so a second Start requiring last success
	// should fail.
	if err := m.Start(start.Add(time.Hour), true); err != statefile.ErrPreviousRunIncomplete {
		t.Fatalf("Start() = %v, want ErrPreviousRunIncomplete", err)
	}
}
