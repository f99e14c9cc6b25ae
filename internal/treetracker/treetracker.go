// Package treetracker reconstructs directory structure from a stream of
// file keys that arrive in sorted order, without ever holding the whole
// tree in memory. As each key is added, any ancestor directory that the
// stream has moved past (because a lexicographically later sibling
// directory, or a sibling entry in a parent, has started) is "closed" and
// returned to the caller complete with all of its entries.
//
// Ordering follows the dual comparator used throughout s3invsync: a
// directory name sorts as though it had a trailing slash, except that a
// file and a directory with the identical bare name compare equal (so that
// such a collision surfaces as an explicit conflict rather than silently
// picking one ordering or the other).
package treetracker

import (
	"fmt"
	"strings"

	"github.com/s3invsync/s3invsync/internal/keypath"
)

// Entry is one file or subdirectory seen inside a closed Directory.
type Entry[T any] struct {
	Name  string
	IsDir bool

	// Value holds the caller-supplied payload for a file entry. It is the
	// zero value for directory entries.
	Value T
}

// Directory is a tree node whose full set of entries is now known: no
// further key in the (sorted) input stream can add to it.
type Directory[T any] struct {
	path    *string
	Entries []Entry[T]
}

// Path returns the directory's slash-separated path relative to the tree
// root, and true. For the root directory itself it returns ("", false).
func (d Directory[T]) Path() (string, bool) {
	if d.path == nil {
		return "", false
	}
	return *d.path, true
}

func (d Directory[T]) find(name string) (Entry[T], bool) {
	// Entries are pushed in dual-comparator order, not bare-name order, so
	// a name can't be found by binary search; scan linearly instead.
	for _, e := range d.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry[T]{}, false
}

// ContainsFile reports whether the directory has a file entry named name.
func (d Directory[T]) ContainsFile(name string) bool {
	e, ok := d.find(name)
	return ok && !e.IsDir
}

// ContainsDir reports whether the directory has a subdirectory entry
// named name.
func (d Directory[T]) ContainsDir(name string) bool {
	e, ok := d.find(name)
	return ok && e.IsDir
}

// UnsortedError is returned by Add when a key arrives out of order relative
// to the previously added key.
type UnsortedError struct {
	Before, After string
}

func (e *UnsortedError) Error() string {
	return fmt.Sprintf("received keys in unsorted order: %q came before %q", e.Before, e.After)
}

// ConflictError is returned by Add when a path is used as both a file and
// a directory.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("path %q is used as both a file and a directory", e.Path)
}

// DuplicateFileError is returned by Add when the same file key is added
// more than once.
type DuplicateFileError struct {
	Path string
}

func (e *DuplicateFileError) Error() string {
	return fmt.Sprintf("file key %q encountered more than once", e.Path)
}

type entry[T any] struct {
	name  string
	isDir bool
	value T
}

// partialDirectory is an "open" directory: one to which keys are currently
// being added, either directly or within a descendant.
type partialDirectory[T any] struct {
	// entries holds every file & directory seen so far in this directory,
	// excluding currentSubdir.
	entries []entry[T]

	// currentSubdir is the name of this directory's currently "open"
	// subdirectory, if any.
	currentSubdir *string
}

func (pd *partialDirectory[T]) closeCurrent() {
	if pd.currentSubdir == nil {
		panic("treetracker: closeCurrent called without a current directory")
	}
	name := *pd.currentSubdir
	pd.currentSubdir = nil
	pd.entries = append(pd.entries, entry[T]{name: name, isDir: true})
}

func (pd *partialDirectory[T]) lastEntryIsDir() bool {
	return pd.currentSubdir != nil
}

// cmpVsLastEntry compares (isDir, name) against whatever was most recently
// added to pd (its open subdirectory, if any, else its last entry). The
// second return value is false if pd has nothing to compare against yet.
func (pd *partialDirectory[T]) cmpVsLastEntry(isDir bool, name string) (int, bool) {
	if pd.currentSubdir != nil {
		return compareName(isDir, name, true, *pd.currentSubdir), true
	}
	if n := len(pd.entries); n > 0 {
		last := pd.entries[n-1]
		return compareName(isDir, name, last.isDir, last.name), true
	}
	return 0, false
}

// compareName implements the dual ordering: directory names sort as though
// they had a trailing slash, except that a file and directory with
// identical bare names compare equal.
func compareName(aIsDir bool, aName string, bIsDir bool, bName string) int {
	if aName == bName {
		return 0
	}
	a, b := aName, bName
	if aIsDir {
		a += "/"
	}
	if bIsDir {
		b += "/"
	}
	return strings.Compare(a, b)
}

// component is one slash-separated piece of a key path: every piece but
// the last names a directory, and the last names the file itself.
type component struct {
	isDir bool
	name  string
}

func splitKey(key string) []component {
	parts := strings.Split(key, "/")
	out := make([]component, len(parts))
	for i, p := range parts {
		out[i] = component{isDir: i < len(parts)-1, name: p}
	}
	return out
}

// Tracker accumulates file keys, presented in sorted order via Add, and
// emits each directory once the stream has moved past it.
type Tracker[T any] struct {
	stack []partialDirectory[T]
}

// New returns a Tracker ready to accept keys for a fresh tree.
func New[T any]() *Tracker[T] {
	return &Tracker[T]{stack: []partialDirectory[T]{{}}}
}

// Add registers key with the given payload. It returns every directory
// that the stream has now moved past (closed, complete, and ready for
// the caller to act on), in order from deepest to shallowest.
//
// Keys must be added in sorted order according to the dual comparator
// described in the package doc; otherwise Add returns an *UnsortedError.
func (t *Tracker[T]) Add(key keypath.KeyPath, value T) ([]Directory[T], error) {
	parts := splitKey(string(key))
	var popped []Directory[T]

	for i, part := range parts {
		pd := &t.stack[i]
		cmp, ok := pd.cmpVsLastEntry(part.isDir, part.name)
		inDir := pd.lastEntryIsDir()

		if part.isDir {
			switch {
			case ok && cmp > 0:
				if inDir {
					t.closeTrailingDirs(i, &popped)
				}
				t.pushParts(parts[i:], value)
				return popped, nil
			case ok && cmp == 0:
				if inDir {
					continue
				}
				return popped, &ConflictError{Path: t.lastKey()}
			case ok && cmp < 0:
				return popped, &UnsortedError{Before: t.lastKey(), After: string(key)}
			default: // !ok
				t.pushParts(parts[i:], value)
				return popped, nil
			}
		}

		switch {
		case ok && cmp > 0:
			if inDir {
				t.closeTrailingDirs(i, &popped)
			}
			if err := t.pushFile(part.name, value); err != nil {
				return popped, patchAfter(err, string(key))
			}
			return popped, nil
		case ok && cmp == 0:
			if inDir {
				return popped, &ConflictError{Path: t.lastKey()}
			}
			return popped, &DuplicateFileError{Path: string(key)}
		case ok && cmp < 0:
			return popped, &UnsortedError{Before: t.lastKey(), After: string(key)}
		default: // !ok
			if err := t.pushFile(part.name, value); err != nil {
				return popped, patchAfter(err, string(key))
			}
			return popped, nil
		}
	}

	return popped, nil
}

func (t *Tracker[T]) closeTrailingDirs(i int, popped *[]Directory[T]) {
	n := len(t.stack) - i - 1
	for j := 0; j < n; j++ {
		*popped = append(*popped, t.pop())
	}
}

func patchAfter(err error, fullKey string) error {
	if ue, ok := err.(*UnsortedError); ok {
		ue.After = fullKey
	}
	return err
}

// pushParts pushes a run of components onto the stack: every directory
// component opens a fresh subdirectory, and the final (file) component is
// added to it.
func (t *Tracker[T]) pushParts(parts []component, value T) {
	for _, part := range parts {
		if part.isDir {
			t.pushDir(part.name)
		} else {
			// A fresh directory has no entries yet, so this cannot fail.
			_ = t.pushFile(part.name, value)
		}
	}
}

func (t *Tracker[T]) pushDir(name string) {
	pd := &t.stack[len(t.stack)-1]
	if pd.currentSubdir != nil {
		panic("treetracker: pushDir called when top dir has an open subdir")
	}
	n := name
	pd.currentSubdir = &n
	t.stack = append(t.stack, partialDirectory[T]{})
}

func (t *Tracker[T]) pushFile(name string, value T) error {
	pd := &t.stack[len(t.stack)-1]
	if pd.currentSubdir != nil {
		panic("treetracker: pushFile called when top dir has an open subdir")
	}
	if n := len(pd.entries); n > 0 {
		last := pd.entries[n-1]
		switch compareName(false, name, last.isDir, last.name) {
		case 0:
			return &DuplicateFileError{Path: t.lastKey()}
		case -1:
			return &UnsortedError{Before: t.lastKey(), After: name}
		}
	}
	pd.entries = append(pd.entries, entry[T]{name: name, value: value})
	return nil
}

// pop closes the top of the stack and returns it as a Directory.
func (t *Tracker[T]) pop() Directory[T] {
	n := len(t.stack)
	if n == 0 {
		panic("treetracker: pop called on an empty tracker")
	}
	pd := t.stack[n-1]
	t.stack = t.stack[:n-1]
	if pd.currentSubdir != nil {
		panic("treetracker: pop called when top dir has an open subdir")
	}

	var path *string
	if len(t.stack) > 0 {
		p := t.lastKey()
		path = &p
		t.stack[len(t.stack)-1].closeCurrent()
	}

	entries := make([]Entry[T], len(pd.entries))
	for i, e := range pd.entries {
		entries[i] = Entry[T]{Name: e.name, IsDir: e.isDir, Value: e.value}
	}
	return Directory[T]{path: path, Entries: entries}
}

// Finish closes every remaining open directory, from deepest to
// shallowest, ending with the root (whose Path is ("", false)).
func (t *Tracker[T]) Finish() []Directory[T] {
	var dirs []Directory[T]
	for len(t.stack) > 0 {
		dirs = append(dirs, t.pop())
	}
	return dirs
}

func (t *Tracker[T]) lastKey() string {
	var b strings.Builder
	for i := range t.stack {
		pd := &t.stack[i]
		var name string
		switch {
		case pd.currentSubdir != nil:
			name = *pd.currentSubdir
		case len(pd.entries) > 0:
			name = pd.entries[len(pd.entries)-1].name
		default:
			panic("treetracker: lastKey called on an empty tracker")
		}
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(name)
	}
	return b.String()
}
