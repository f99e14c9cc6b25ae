// Package errors provides the error handling primitives used throughout
// s3invsync. It re-exports github.com/pkg/errors so that call sites get
// stack traces on every wrap, and adds a Fatal marker for errors that must
// stop the whole run rather than merely being recorded against one item.
package errors

import "github.com/pkg/errors"

// Re-exported constructors and helpers from github.com/pkg/errors.
var (
	New    = errors.New
	Errorf = errors.Errorf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Cause  = errors.Cause
	Is     = errors.Is
	As     = errors.As
)

// WithStack annotates err with a stack trace at the point WithStack was
// called. It returns nil if err is nil.
func WithStack(err error) error {
	return errors.WithStack(err)
}
