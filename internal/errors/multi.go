package errors

import (
	"fmt"
	"strings"
)

// MultiError aggregates the errors accumulated over a sync run into a single
// error value. It renders as a numbered list of sections so that an operator
// can see every failure from one run at once instead of only the first.
type MultiError struct {
	Errs []error
}

// Add appends err to the set if it is non-nil.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errs = append(m.Errs, err)
	}
}

// Empty reports whether no errors were ever added.
func (m *MultiError) Empty() bool {
	return len(m.Errs) == 0
}

// ErrorOrNil returns m if it holds at least one error, or nil otherwise. This
// lets a *MultiError be returned directly from a function's error result
// without a non-nil interface wrapping a nil pointer.
func (m *MultiError) ErrorOrNil() error {
	if m.Empty() {
		return nil
	}
	return m
}

func (m *MultiError) Error() string {
	var b strings.Builder
	if len(m.Errs) > 1 {
		fmt.Fprintf(&b, "%d errors occurred:\n---\n", len(m.Errs))
	}
	for i, err := range m.Errs {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		if len(m.Errs) > 1 {
			fmt.Fprintf(&b, "%d. ", i+1)
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// IsFatal reports true if any of the aggregated errors is fatal.
func (m *MultiError) IsFatal() bool {
	for _, err := range m.Errs {
		if IsFatal(err) {
			return true
		}
	}
	return false
}
