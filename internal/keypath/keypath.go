// Package keypath implements the validated, normalized relative filepath
// type used to address objects in the local backup mirror.
package keypath

import (
	"strings"

	"github.com/s3invsync/s3invsync/internal/errors"
)

// MetadataFilename is the name of the per-directory sidecar database file
// that holds version/etag metadata for the latest copy of each sibling file.
// It is reserved: no inventory key may have a path component equal to it.
const MetadataFilename = ".s3invsync.versions.json"

// KeyPath is a nonempty, forward-slash-separated relative path that contains
// none of the following:
//
//   - a "." or ".." component
//   - a leading or trailing forward slash
//   - two or more consecutive forward slashes
//   - NUL
//   - a component equal to MetadataFilename, or that looks like
//     "{filename}.old.{version_id}.{etag}" (i.e. of the form
//     "{nonempty}.old.{nonempty}.{nonempty}")
type KeyPath string

// Parse validates s and returns it as a KeyPath, or an error describing why
// it is not an acceptable path.
func Parse(s string) (KeyPath, error) {
	if err := validate(s); err != nil {
		return "", errors.Wrapf(err, "key %q is not an acceptable filepath", s)
	}
	return KeyPath(s), nil
}

// Name returns the filename portion of the path (the final component).
func (k KeyPath) Name() string {
	s := string(k)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Split splits the path into its directory component (empty if the path has
// no slash) and its filename.
func (k KeyPath) Split() (dir string, name string) {
	s := string(k)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

func (k KeyPath) String() string {
	return string(k)
}

// ErrEmpty etc. are the distinct validation failures that validate() can
// report, exposed so callers can distinguish them with errors.Is.
var (
	ErrEmpty           = errors.New("paths cannot be empty")
	ErrStartsWithSlash = errors.New("paths cannot start with a forward slash")
	ErrEndsWithSlash   = errors.New("paths cannot end with a forward slash")
	ErrNul             = errors.New("paths cannot contain NUL")
	ErrNotNormalized   = errors.New("path is not normalized")
	ErrSpecial         = errors.New("path contains component with special meaning")
)

func validate(s string) error {
	switch {
	case s == "":
		return ErrEmpty
	case strings.HasPrefix(s, "/"):
		return ErrStartsWithSlash
	case strings.HasSuffix(s, "/"):
		return ErrEndsWithSlash
	case strings.ContainsRune(s, 0):
		return ErrNul
	}
	parts := strings.Split(s, "/")
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return ErrNotNormalized
		}
	}
	for _, p := range parts {
		if IsSpecialComponent(p) {
			return ErrSpecial
		}
	}
	return nil
}

// IsSpecialComponent reports whether component equals MetadataFilename, or
// has the reserved "{nonempty}.old.{nonempty}.{nonempty}" shape used to
// store non-latest object versions alongside the latest one.
func IsSpecialComponent(component string) bool {
	if component == MetadataFilename {
		return true
	}
	i := strings.Index(component, ".old.")
	if i <= 0 {
		return false
	}
	postOld := component[i+5:]
	j := strings.IndexByte(postOld, '.')
	if j < 1 || j > len(postOld)-2 {
		return false
	}
	return true
}

// OldFilename returns the filename used to store a non-latest version of an
// object whose basename is filename, given that version's id and etag.
func OldFilename(filename, versionID, etag string) string {
	return filename + ".old." + versionID + "." + etag
}
