package timestamps

import (
	"context"
	"sort"
	"strings"

	"github.com/s3invsync/s3invsync/internal/errors"
)

// Selector identifies either one exact manifest snapshot (DateHM) or every
// snapshot within a calendar day (Date), as given on the command line.
type Selector struct {
	date   *Date
	dateHM *DateHM
}

// ErrInvalidSelector is returned by ParseDateSelector for any string that is
// neither a valid Date nor a valid DateHM.
var ErrInvalidSelector = errors.New("invalid timestamp format; expected YYYY-MM-DD or YYYY-MM-DDTHH-MMZ")

// ParseDateSelector parses s as a DateHM if it contains a 'T', or as a Date
// otherwise.
func ParseDateSelector(s string) (Selector, error) {
	if strings.Contains(s, "T") {
		d, err := ParseDateHM(s)
		if err != nil {
			return Selector{}, ErrInvalidSelector
		}
		return Selector{dateHM: &d}, nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return Selector{}, ErrInvalidSelector
	}
	return Selector{date: &d}, nil
}

func (s Selector) String() string {
	if s.dateHM != nil {
		return s.dateHM.String()
	}
	if s.date != nil {
		return s.date.String()
	}
	return ""
}

// Lister enumerates the manifest snapshot timestamps available under an
// inventory configuration's base prefix, in no particular order.
type Lister interface {
	ListManifestTimestamps(ctx context.Context, base string) ([]DateHM, error)
}

// AmbiguousSelectorError is returned by Resolve when a date-only selector
// matches more than one snapshot.
type AmbiguousSelectorError struct {
	Selector   Selector
	Candidates []DateHM
}

func (e *AmbiguousSelectorError) Error() string {
	var b strings.Builder
	b.WriteString("ambiguous date selector " + e.Selector.String() + " matches multiple snapshots: ")
	sorted := append([]DateHM(nil), e.Candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Compare(sorted[j]) < 0 })
	for i, c := range sorted {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.String())
	}
	return b.String()
}

// NoMatchingSnapshotError is returned by Resolve when no snapshot under base
// matches the selector.
type NoMatchingSnapshotError struct {
	Selector Selector
}

func (e *NoMatchingSnapshotError) Error() string {
	return "no inventory snapshot under " + e.Selector.String() + " was found"
}

// Resolve lists the manifest snapshots available under base and returns the
// one matching the selector, or an error if zero or more than one match.
func (s Selector) Resolve(ctx context.Context, lister Lister, base string) (DateHM, error) {
	candidates, err := lister.ListManifestTimestamps(ctx, base)
	if err != nil {
		return DateHM{}, errors.Wrap(err, "failed to list inventory manifest timestamps")
	}

	if s.dateHM != nil {
		for _, c := range candidates {
			if c.Compare(*s.dateHM) == 0 {
				return c, nil
			}
		}
		return DateHM{}, &NoMatchingSnapshotError{Selector: s}
	}

	var matches []DateHM
	for _, c := range candidates {
		if s.date.Contains(c) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return DateHM{}, &NoMatchingSnapshotError{Selector: s}
	case 1:
		return matches[0], nil
	default:
		return DateHM{}, &AmbiguousSelectorError{Selector: s, Candidates: matches}
	}
}
