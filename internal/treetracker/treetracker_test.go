package treetracker_test

import (
	"testing"

	"github.com/s3invsync/s3invsync/internal/keypath"
	"github.com/s3invsync/s3invsync/internal/treetracker"
)

func kp(t *testing.T, s string) keypath.KeyPath {
	t.Helper()
	k, err := keypath.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", s, err)
	}
	return k
}

func wantEntries[T comparable](t *testing.T, d treetracker.Directory[T], want []treetracker.Entry[T]) {
	t.Helper()
	if len(d.Entries) != len(want) {
		t.Fatalf("entries = %+v, want %+v", d.Entries, want)
	}
	for i := range want {
		if d.Entries[i] != want[i] {
			t.Fatalf("entries[%d] = %+v, want %+v", i, d.Entries[i], want[i])
		}
	}
}

func wantPath(t *testing.T, d treetracker.Directory[int], want string, wantOK bool) {
	t.Helper()
	path, ok := d.Path()
	if ok != wantOK || path != want {
		t.Fatalf("Path() = (%q, %v), want (%q, %v)", path, ok, want, wantOK)
	}
}

func fileEntry(name string, value int) treetracker.Entry[int] {
	return treetracker.Entry[int]{Name: name, Value: value}
}

func dirEntry(name string) treetracker.Entry[int] {
	return treetracker.Entry[int]{Name: name, IsDir: true}
}

func TestSameDir(t *testing.T) {
	tr := treetracker.New[int]()
	if popped, err := tr.Add(kp(t, "foo/bar.txt"), 1); err != nil || len(popped) != 0 {
		t.Fatalf("Add #1 = (%v, %v)", popped, err)
	}
	if popped, err := tr.Add(kp(t, "foo/quux.txt"), 2); err != nil || len(popped) != 0 {
		t.Fatalf("Add #2 = (%v, %v)", popped, err)
	}
	dirs := tr.Finish()
	if len(dirs) != 2 {
		t.Fatalf("Finish() returned %d dirs, want 2", len(dirs))
	}
	wantPath(t, dirs[0], "foo", true)
	wantEntries(t, dirs[0], []treetracker.Entry[int]{fileEntry("bar.txt", 1), fileEntry("quux.txt", 2)})
	wantPath(t, dirs[1], "", false)
	wantEntries(t, dirs[1], []treetracker.Entry[int]{dirEntry("foo")})
}

func TestDifferentDir(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "foo/bar.txt"), 1)
	popped, err := tr.Add(kp(t, "glarch/quux.txt"), 2)
	if err != nil {
		t.Fatalf("Add #2 failed: %v", err)
	}
	if len(popped) != 1 {
		t.Fatalf("popped = %+v, want 1 dir", popped)
	}
	wantPath(t, popped[0], "foo", true)
	wantEntries(t, popped[0], []treetracker.Entry[int]{fileEntry("bar.txt", 1)})

	dirs := tr.Finish()
	if len(dirs) != 2 {
		t.Fatalf("Finish() returned %d dirs, want 2", len(dirs))
	}
	wantPath(t, dirs[0], "glarch", true)
	wantEntries(t, dirs[0], []treetracker.Entry[int]{fileEntry("quux.txt", 2)})
	wantPath(t, dirs[1], "", false)
	wantEntries(t, dirs[1], []treetracker.Entry[int]{dirEntry("foo"), dirEntry("glarch")})
}

func TestDifferentSubdir(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "foo/bar/apple.txt"), 1)
	popped, err := tr.Add(kp(t, "foo/quux/banana.txt"), 2)
	if err != nil {
		t.Fatalf("Add #2 failed: %v", err)
	}
	if len(popped) != 1 {
		t.Fatalf("popped = %+v, want 1 dir", popped)
	}
	wantPath(t, popped[0], "foo/bar", true)
	wantEntries(t, popped[0], []treetracker.Entry[int]{fileEntry("apple.txt", 1)})

	dirs := tr.Finish()
	if len(dirs) != 3 {
		t.Fatalf("Finish() returned %d dirs, want 3", len(dirs))
	}
	wantPath(t, dirs[0], "foo/quux", true)
	wantEntries(t, dirs[0], []treetracker.Entry[int]{fileEntry("banana.txt", 2)})
	wantPath(t, dirs[1], "foo", true)
	wantEntries(t, dirs[1], []treetracker.Entry[int]{dirEntry("bar"), dirEntry("quux")})
	wantPath(t, dirs[2], "", false)
	wantEntries(t, dirs[2], []treetracker.Entry[int]{dirEntry("foo")})
}

func TestPreslashDirThenToslashDir(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "foo/apple!banana/gnusto.txt"), 1)
	popped, err := tr.Add(kp(t, "foo/apple/cleesh.txt"), 2)
	if err != nil {
		t.Fatalf("Add #2 failed: %v", err)
	}
	if len(popped) != 1 {
		t.Fatalf("popped = %+v, want 1 dir", popped)
	}
	wantPath(t, popped[0], "foo/apple!banana", true)
	wantEntries(t, popped[0], []treetracker.Entry[int]{fileEntry("gnusto.txt", 1)})

	dirs := tr.Finish()
	if len(dirs) != 3 {
		t.Fatalf("Finish() returned %d dirs, want 3", len(dirs))
	}
	wantPath(t, dirs[0], "foo/apple", true)
	wantEntries(t, dirs[0], []treetracker.Entry[int]{fileEntry("cleesh.txt", 2)})
	wantPath(t, dirs[1], "foo", true)
	wantEntries(t, dirs[1], []treetracker.Entry[int]{dirEntry("apple!banana"), dirEntry("apple")})
	wantPath(t, dirs[2], "", false)
	wantEntries(t, dirs[2], []treetracker.Entry[int]{dirEntry("foo")})
}

func TestPreslashFileThenToslashFile(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "foo/bar/apple!banana.txt"), 1)
	_, err := tr.Add(kp(t, "foo/bar/apple"), 2)
	ue, ok := err.(*treetracker.UnsortedError)
	if !ok {
		t.Fatalf("Add #2 error = %v, want *UnsortedError", err)
	}
	if ue.Before != "foo/bar/apple!banana.txt" || ue.After != "foo/bar/apple" {
		t.Fatalf("UnsortedError = %+v", ue)
	}
}

func TestToslashFileThenPreslashFile(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "foo/bar/apple"), 1)
	if _, err := tr.Add(kp(t, "foo/bar/apple!banana.txt"), 2); err != nil {
		t.Fatalf("Add #2 failed: %v", err)
	}
	dirs := tr.Finish()
	if len(dirs) != 3 {
		t.Fatalf("Finish() returned %d dirs, want 3", len(dirs))
	}
	wantPath(t, dirs[0], "foo/bar", true)
	wantEntries(t, dirs[0], []treetracker.Entry[int]{fileEntry("apple", 1), fileEntry("apple!banana.txt", 2)})
	wantPath(t, dirs[1], "foo", true)
	wantEntries(t, dirs[1], []treetracker.Entry[int]{dirEntry("bar")})
	wantPath(t, dirs[2], "", false)
	wantEntries(t, dirs[2], []treetracker.Entry[int]{dirEntry("foo")})
}

func TestPreslashDirThenToslashFile(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "foo/apple!banana/gnusto.txt"), 1)
	_, err := tr.Add(kp(t, "foo/apple"), 2)
	ue, ok := err.(*treetracker.UnsortedError)
	if !ok {
		t.Fatalf("Add #2 error = %v, want *UnsortedError", err)
	}
	if ue.Before != "foo/apple!banana/gnusto.txt" || ue.After != "foo/apple" {
		t.Fatalf("UnsortedError = %+v", ue)
	}
}

func TestPreslashFileThenToslashDir(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "foo/bar/apple!banana.txt"), 1)
	if _, err := tr.Add(kp(t, "foo/bar/apple/apricot.txt"), 2); err != nil {
		t.Fatalf("Add #2 failed: %v", err)
	}
	dirs := tr.Finish()
	if len(dirs) != 4 {
		t.Fatalf("Finish() returned %d dirs, want 4", len(dirs))
	}
	wantPath(t, dirs[0], "foo/bar/apple", true)
	wantEntries(t, dirs[0], []treetracker.Entry[int]{fileEntry("apricot.txt", 2)})
	wantPath(t, dirs[1], "foo/bar", true)
	wantEntries(t, dirs[1], []treetracker.Entry[int]{fileEntry("apple!banana.txt", 1), dirEntry("apple")})
	wantPath(t, dirs[2], "foo", true)
	wantEntries(t, dirs[2], []treetracker.Entry[int]{dirEntry("bar")})
	wantPath(t, dirs[3], "", false)
	wantEntries(t, dirs[3], []treetracker.Entry[int]{dirEntry("foo")})
}

func TestPathConflictFileThenDir(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "foo/bar"), 1)
	_, err := tr.Add(kp(t, "foo/bar/apple.txt"), 2)
	ce, ok := err.(*treetracker.ConflictError)
	if !ok {
		t.Fatalf("Add #2 error = %v, want *ConflictError", err)
	}
	if ce.Path != "foo/bar" {
		t.Fatalf("ConflictError = %+v", ce)
	}
}

func TestJustFinish(t *testing.T) {
	tr := treetracker.New[int]()
	dirs := tr.Finish()
	if len(dirs) != 1 {
		t.Fatalf("Finish() returned %d dirs, want 1", len(dirs))
	}
	wantPath(t, dirs[0], "", false)
	if len(dirs[0].Entries) != 0 {
		t.Fatalf("root entries = %+v, want none", dirs[0].Entries)
	}
}

func TestMultidirFinish(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "apple/banana/coconut/date.txt"), 1)
	dirs := tr.Finish()
	if len(dirs) != 4 {
		t.Fatalf("Finish() returned %d dirs, want 4", len(dirs))
	}
	wantPath(t, dirs[0], "apple/banana/coconut", true)
	wantEntries(t, dirs[0], []treetracker.Entry[int]{fileEntry("date.txt", 1)})
	wantPath(t, dirs[1], "apple/banana", true)
	wantEntries(t, dirs[1], []treetracker.Entry[int]{dirEntry("coconut")})
	wantPath(t, dirs[2], "apple", true)
	wantEntries(t, dirs[2], []treetracker.Entry[int]{dirEntry("banana")})
	wantPath(t, dirs[3], "", false)
	wantEntries(t, dirs[3], []treetracker.Entry[int]{dirEntry("apple")})
}

func TestClosedirThenFilesInParent(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "apple/banana/coconut.txt"), 1)
	popped, err := tr.Add(kp(t, "apple/kumquat.txt"), 2)
	if err != nil {
		t.Fatalf("Add #2 failed: %v", err)
	}
	if len(popped) != 1 {
		t.Fatalf("popped = %+v, want 1 dir", popped)
	}
	wantPath(t, popped[0], "apple/banana", true)
	wantEntries(t, popped[0], []treetracker.Entry[int]{fileEntry("coconut.txt", 1)})

	if _, err := tr.Add(kp(t, "apple/mango.txt"), 3); err != nil {
		t.Fatalf("Add #3 failed: %v", err)
	}
	dirs := tr.Finish()
	if len(dirs) != 2 {
		t.Fatalf("Finish() returned %d dirs, want 2", len(dirs))
	}
	wantPath(t, dirs[0], "apple", true)
	wantEntries(t, dirs[0], []treetracker.Entry[int]{dirEntry("banana"), fileEntry("kumquat.txt", 2), fileEntry("mango.txt", 3)})
	wantPath(t, dirs[1], "", false)
	wantEntries(t, dirs[1], []treetracker.Entry[int]{dirEntry("apple")})
}

func TestContains(t *testing.T) {
	tr := treetracker.New[int]()
	tr.Add(kp(t, "apple/banana.txt"), 1)
	dirs := tr.Finish()
	root := dirs[len(dirs)-1]
	if !root.ContainsDir("apple") {
		t.Errorf("root should contain dir %q", "apple")
	}
	if root.ContainsFile("apple") {
		t.Errorf("root should not contain file %q", "apple")
	}
	sub := dirs[0]
	if !sub.ContainsFile("banana.txt") {
		t.Errorf("subdir should contain file %q", "banana.txt")
	}
	if sub.ContainsDir("banana.txt") {
		t.Errorf("subdir should not contain dir %q", "banana.txt")
	}
}
