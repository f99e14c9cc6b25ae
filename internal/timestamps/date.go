package timestamps

import (
	"fmt"

	"github.com/s3invsync/s3invsync/internal/errors"
)

// Date identifies a calendar day, used when a user selects an inventory
// snapshot by day rather than by exact minute.
type Date struct {
	Year  uint16
	Month uint8
	Day   uint8
}

// ErrInvalidDate is returned by ParseDate for any string not of the form
// YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid timestamp format; expected YYYY-MM-DD")

// ParseDate parses a string of the form YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	sc := newScanner(s, ErrInvalidDate)
	year, err := sc.scanYear()
	if err != nil {
		return Date{}, err
	}
	if err := sc.scanChar('-'); err != nil {
		return Date{}, err
	}
	month, err := sc.scanUint8(1, 12)
	if err != nil {
		return Date{}, err
	}
	if err := sc.scanChar('-'); err != nil {
		return Date{}, err
	}
	day, err := sc.scanUint8(1, 31)
	if err != nil {
		return Date{}, err
	}
	if err := sc.eof(); err != nil {
		return Date{}, err
	}
	return Date{Year: year, Month: month, Day: day}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Contains reports whether t falls on the calendar day d identifies.
func (d Date) Contains(t DateHM) bool {
	return d.Year == t.Year && d.Month == t.Month && d.Day == t.Day
}
