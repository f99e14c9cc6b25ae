package timestamps

import (
	"fmt"

	"github.com/s3invsync/s3invsync/internal/errors"
)

// DateHM identifies an inventory manifest snapshot to the minute, matching
// the directory-name timestamp format S3 Inventory uses:
// YYYY-MM-DDTHH-MMZ.
type DateHM struct {
	Year   uint16
	Month  uint8
	Day    uint8
	Hour   uint8
	Minute uint8
}

// ErrInvalidDateHM is returned by ParseDateHM for any string not of the form
// YYYY-MM-DDTHH-MMZ.
var ErrInvalidDateHM = errors.New("invalid timestamp format; expected YYYY-MM-DDTHH-MMZ")

// ParseDateHM parses a string of the form YYYY-MM-DDTHH-MMZ.
func ParseDateHM(s string) (DateHM, error) {
	sc := newScanner(s, ErrInvalidDateHM)
	year, err := sc.scanYear()
	if err != nil {
		return DateHM{}, err
	}
	if err := sc.scanChar('-'); err != nil {
		return DateHM{}, err
	}
	month, err := sc.scanUint8(1, 12)
	if err != nil {
		return DateHM{}, err
	}
	if err := sc.scanChar('-'); err != nil {
		return DateHM{}, err
	}
	day, err := sc.scanUint8(1, 31)
	if err != nil {
		return DateHM{}, err
	}
	if err := sc.scanChar('T'); err != nil {
		return DateHM{}, err
	}
	hour, err := sc.scanUint8(0, 23)
	if err != nil {
		return DateHM{}, err
	}
	if err := sc.scanChar('-'); err != nil {
		return DateHM{}, err
	}
	minute, err := sc.scanUint8(0, 59)
	if err != nil {
		return DateHM{}, err
	}
	if err := sc.scanChar('Z'); err != nil {
		return DateHM{}, err
	}
	if err := sc.eof(); err != nil {
		return DateHM{}, err
	}
	return DateHM{Year: year, Month: month, Day: day, Hour: hour, Minute: minute}, nil
}

func (d DateHM) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d-%02dZ", d.Year, d.Month, d.Day, d.Hour, d.Minute)
}

// Compare returns -1, 0, or 1 as d is before, equal to, or after other.
func (d DateHM) Compare(other DateHM) int {
	for _, pair := range [][2]uint16{
		{d.Year, other.Year},
		{uint16(d.Month), uint16(other.Month)},
		{uint16(d.Day), uint16(other.Day)},
		{uint16(d.Hour), uint16(other.Hour)},
		{uint16(d.Minute), uint16(other.Minute)},
	} {
		if pair[0] < pair[1] {
			return -1
		}
		if pair[0] > pair[1] {
			return 1
		}
	}
	return 0
}
