// Package filterlog emits log messages about inventory objects skipped
// because their key did not match the reconciler's --path-filter. Logging
// every skip can flood the log on a bucket where the filter excludes most
// keys, so callers may request a compressed mode that only logs once every
// N skips.
package filterlog

import (
	"sync"

	"github.com/s3invsync/s3invsync/internal/ui"
)

// Logger records objects skipped due to a path filter and logs about them,
// either individually or in periodic aggregate.
type Logger struct {
	period   int // 0 means log every skip
	mu       sync.Mutex
	progress int
	printer  *ui.Printer
}

// New returns a Logger. If period is 0, every skip is logged individually;
// otherwise one message is logged for every period-th skip, and Finish logs
// any remainder.
func New(printer *ui.Printer, period int) *Logger {
	if period < 0 {
		period = 0
	}
	return &Logger{period: period, printer: printer}
}

// Log records that one more object was skipped.
func (l *Logger) Log() {
	if l.period == 0 {
		l.printer.Verbosef("object key does not match path filter; skipping")
		return
	}
	l.mu.Lock()
	l.progress++
	progress := l.progress
	l.mu.Unlock()
	if progress%l.period == 0 {
		l.printer.Printf("skipped %d keys that did not match path filter", progress)
	}
}

// Finish logs a final aggregate message if, in compressed mode, the skip
// count is not an even multiple of the period. It is a no-op in uncompressed
// mode.
func (l *Logger) Finish() {
	if l.period == 0 {
		return
	}
	l.mu.Lock()
	progress := l.progress
	l.mu.Unlock()
	if progress%l.period != 0 {
		l.printer.Printf("skipped %d keys that did not match path filter", progress)
	}
}
