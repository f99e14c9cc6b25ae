package keypath_test

import (
	"testing"

	"github.com/s3invsync/s3invsync/internal/keypath"
)

func TestParseGood(t *testing.T) {
	for _, s := range []string{"foo.nwb", "foo/bar.nwb"} {
		if _, err := keypath.Parse(s); err != nil {
			t.Errorf("Parse(%q) should succeed, got error: %v", s, err)
		}
	}
}

func TestParseBad(t *testing.T) {
	for _, s := range []string{
		"",
		"/",
		"/foo",
		"foo/",
		"/foo/",
		"foo//bar.nwb",
		"foo///bar.nwb",
		"foo/bar\x00.nwb",
		"foo/./bar.nwb",
		"foo/../bar.nwb",
		"./foo/bar.nwb",
		"../foo/bar.nwb",
		"foo/bar.nwb/.",
		"foo/bar.nwb/..",
	} {
		if _, err := keypath.Parse(s); err == nil {
			t.Errorf("Parse(%q) should fail", s)
		}
	}
}

func TestIsSpecialComponent(t *testing.T) {
	cases := []struct {
		s string
		r bool
	}{
		{"foo", false},
		{"foo.old", false},
		{"foo.old.bar", false},
		{"foo.old.bar.baz", true},
		{"foo.old.bar.baz.quux.glarch", true},
		{"foo.old.bar.", false},
		{".old.bar.baz", false},
		{"foo.old..baz", false},
		{"foo.old..", false},
		{".s3invsync.versions.json", true},
	}
	for _, c := range cases {
		if got := keypath.IsSpecialComponent(c.s); got != c.r {
			t.Errorf("IsSpecialComponent(%q) = %v, want %v", c.s, got, c.r)
		}
	}
}

func TestNameAndSplit(t *testing.T) {
	k, err := keypath.Parse("foo/bar/baz.nwb")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if k.Name() != "baz.nwb" {
		t.Errorf("Name() = %q, want %q", k.Name(), "baz.nwb")
	}
	dir, name := k.Split()
	if dir != "foo/bar" || name != "baz.nwb" {
		t.Errorf("Split() = (%q, %q), want (%q, %q)", dir, name, "foo/bar", "baz.nwb")
	}

	k2, err := keypath.Parse("baz.nwb")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	dir2, name2 := k2.Split()
	if dir2 != "" || name2 != "baz.nwb" {
		t.Errorf("Split() = (%q, %q), want (%q, %q)", dir2, name2, "", "baz.nwb")
	}
}
