package pkgid

import "testing"

func TestResolutionStringRoundTrip(t *testing.T) {
	cases := []string{
		"tar+https://example.com/pkg.tar.gz",
		"dir+./vendor/widgets",
		"git+https://example.com/widgets.git",
		"git+https://example.com/widgets.git#v1.2.3",
		"index+main",
	}
	for _, s := range cases {
		r, err := ParseResolution(s)
		if err != nil {
			t.Fatalf("ParseResolution(%q): %v", s, err)
		}
		if got := r.String(); got != s {
			t.Errorf("round-trip %q: got %q", s, got)
		}
	}
}

func TestParseResolutionRejectsUnknownScheme(t *testing.T) {
	if _, err := ParseResolution("ftp+ftp://example.com/pkg"); err == nil {
		t.Error("expected error for unrecognized resolution scheme")
	}
}

func TestResolutionEqual(t *testing.T) {
	a := NewGit("https://example.com/widgets.git", "main")
	b := NewGit("https://example.com/widgets.git", "main")
	c := NewGit("https://example.com/widgets.git", "dev")
	if !a.Equal(b) {
		t.Errorf("expected %v to equal %v", a, b)
	}
	if a.Equal(c) {
		t.Errorf("expected %v to not equal %v", a, c)
	}
}

func TestDistinctResolutionsAreDistinctPackageIds(t *testing.T) {
	// scenario 4: root depends on foo from two different index
	// resolutions; both must be distinct PackageIds.
	name := Name{Group: "root", Name: "foo"}
	id1 := PackageId{Name: name, Resolution: NewIndex("main")}
	id2 := PackageId{Name: name, Resolution: NewIndex("mirror")}
	if id1.Equal(id2) {
		t.Error("expected PackageIds with different index resolutions to be distinct")
	}
	if id1.Key() == id2.Key() {
		t.Error("expected distinct PackageId.Key() for different resolutions")
	}
}
