// Package ratelimit caps the download bandwidth s3invsync uses, following
// the teacher's static bandwidth limiter, pared down to the download-only
// direction a read-only inventory consumer needs.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Limiter wraps a reader so reads from it are capped at a fixed byte rate.
// A nil *Limiter is valid and applies no limit.
type Limiter struct {
	bucket *rate.Limiter
}

// New returns a Limiter capping reads to kbPerSec kilobytes per second. A
// kbPerSec of zero returns a Limiter that applies no limit.
func New(kbPerSec int) *Limiter {
	if kbPerSec <= 0 {
		return nil
	}
	bytesPerSec := float64(kbPerSec) * 1024
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))}
}

// Reader wraps r so reads from it are throttled to l's rate. A nil l
// (including a nil *Limiter receiver) returns r unchanged.
func (l *Limiter) Reader(r io.Reader) io.Reader {
	if l == nil || l.bucket == nil {
		return r
	}
	return &limitedReader{r: r, bucket: l.bucket}
}

type limitedReader struct {
	r      io.Reader
	bucket *rate.Limiter
}

func (lr *limitedReader) Read(p []byte) (int, error) {
	n, err := lr.r.Read(p)
	if n > 0 {
		if werr := consumeTokens(n, lr.bucket); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func consumeTokens(tokens int, bucket *rate.Limiter) error {
	maxWait := bucket.Burst()
	for tokens > maxWait {
		if err := bucket.WaitN(context.Background(), maxWait); err != nil {
			return err
		}
		tokens -= maxWait
	}
	return bucket.WaitN(context.Background(), tokens)
}
