package errors

// fatal wraps an error to mark it as one that must abort the whole sync run
// rather than just being recorded as a per-item failure.
type fatal struct {
	err error
}

func (f *fatal) Error() string {
	return f.err.Error()
}

func (f *fatal) Unwrap() error {
	return f.err
}

// Fatal creates a new error with the given message that is marked as fatal.
func Fatal(message string) error {
	return &fatal{err: New(message)}
}

// Fatalf creates a new formatted error that is marked as fatal.
func Fatalf(format string, args ...interface{}) error {
	return &fatal{err: Errorf(format, args...)}
}

// MarkFatal wraps err, if non-nil, so that IsFatal reports true for it.
func MarkFatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatal{err: err}
}

// IsFatal returns true if err (or any error it wraps) was created by Fatal,
// Fatalf, or MarkFatal, or if it is a *MultiError holding such an error.
func IsFatal(err error) bool {
	var f *fatal
	if As(err, &f) {
		return true
	}
	var m *MultiError
	return As(err, &m) && m.IsFatal()
}
