package s3client

import (
	"fmt"
	"strings"

	"github.com/s3invsync/s3invsync/internal/errors"
)

// Location identifies a bucket and key prefix on S3, as given on the
// command line in "s3://bucket/key" form.
type Location struct {
	Bucket string
	Key    string
}

// ErrBadScheme, ErrNoKey, and ErrBadBucket are the distinct reasons
// ParseLocation can reject a string, exposed for errors.Is.
var (
	ErrBadScheme = errors.New(`URL does not start with "s3://"`)
	ErrNoKey     = errors.New("URL does not contain an S3 object key")
	ErrBadBucket = errors.New("invalid S3 bucket name")
)

// ParseLocation parses an "s3://bucket/key" URL.
func ParseLocation(s string) (Location, error) {
	rest, ok := strings.CutPrefix(s, "s3://")
	if !ok {
		return Location{}, ErrBadScheme
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok {
		return Location{}, ErrNoKey
	}
	if bucket == "" || !isValidBucketName(bucket) {
		return Location{}, ErrBadBucket
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// isValidBucketName reports whether s could be a real S3 bucket name: all
// lowercase ASCII letters, digits, dots, or hyphens. This is a looser check
// than AWS's full bucket-naming rules, sufficient to reject URLs that
// obviously aren't S3 locations (e.g. one carrying userinfo).
func isValidBucketName(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '-':
		default:
			return false
		}
	}
	return true
}

// Join returns a new Location with suffix appended to the key, inserting a
// '/' separator if the key doesn't already end with one.
func (l Location) Join(suffix string) Location {
	key := l.Key
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	key += suffix
	return Location{Bucket: l.Bucket, Key: key}
}

func (l Location) String() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}
