package errors_test

import (
	"testing"

	"github.com/s3invsync/s3invsync/internal/errors"
)

func TestFatal(t *testing.T) {
	for _, v := range []struct {
		err      error
		expected bool
	}{
		{errors.Fatal("broken"), true},
		{errors.Fatalf("broken %d", 42), true},
		{errors.New("error"), false},
	} {
		if errors.IsFatal(v.err) != v.expected {
			t.Fatalf("IsFatal for %q, expected: %v, got: %v", v.err, v.expected, errors.IsFatal(v.err))
		}
	}
}

func TestMultiError(t *testing.T) {
	var m errors.MultiError
	if m.ErrorOrNil() != nil {
		t.Fatalf("empty MultiError should yield a nil error")
	}

	m.Add(errors.New("first"))
	m.Add(nil)
	m.Add(errors.Fatal("second"))

	err := m.ErrorOrNil()
	if err == nil {
		t.Fatalf("non-empty MultiError should yield a non-nil error")
	}
	if !errors.IsFatal(err) {
		t.Fatalf("MultiError containing a fatal error should itself be fatal")
	}
}
