package filterlog_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/s3invsync/s3invsync/internal/filterlog"
	"github.com/s3invsync/s3invsync/internal/ui"
)

func newPrinter() (*ui.Printer, *bytes.Buffer) {
	var out bytes.Buffer
	return ui.New(&out, &out, ui.Verbose), &out
}

func TestUncompressedLogsEverySkip(t *testing.T) {
	p, out := newPrinter()
	l := filterlog.New(p, 0)
	l.Log()
	l.Log()
	l.Finish()
	if n := strings.Count(out.String(), "skipping"); n != 2 {
		t.Errorf("got %d skip messages, want 2; output: %q", n, out.String())
	}
}

func TestCompressedLogsOnPeriod(t *testing.T) {
	p, out := newPrinter()
	l := filterlog.New(p, 3)
	for i := 0; i < 6; i++ {
		l.Log()
	}
	l.Finish()
	if n := strings.Count(out.String(), "skipped"); n != 2 {
		t.Errorf("got %d aggregate messages, want 2; output: %q", n, out.String())
	}
}

func TestCompressedFinishLogsRemainder(t *testing.T) {
	p, out := newPrinter()
	l := filterlog.New(p, 5)
	for i := 0; i < 7; i++ {
		l.Log()
	}
	if strings.Contains(out.String(), "skipped 7") {
		t.Errorf("should not have logged remainder before Finish; output: %q", out.String())
	}
	l.Finish()
	if !strings.Contains(out.String(), "skipped 7") {
		t.Errorf("Finish did not log remainder; output: %q", out.String())
	}
}
