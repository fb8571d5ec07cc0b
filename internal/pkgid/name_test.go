package pkgid

import "testing"

func TestNameEqualityCaseAndSeparator(t *testing.T) {
	a := Name{Group: "My-Group", Name: "foo_bar"}
	b := Name{Group: "my_group", Name: "Foo-Bar"}
	if !a.Equal(b) {
		t.Errorf("expected %v to equal %v under case/separator-insensitive comparison", a, b)
	}
}

func TestNameInequality(t *testing.T) {
	a := Name{Group: "group", Name: "foo"}
	b := Name{Group: "group", Name: "bar"}
	if a.Equal(b) {
		t.Errorf("expected %v to not equal %v", a, b)
	}
}

func TestParseName(t *testing.T) {
	n, err := ParseName("acme/widgets")
	if err != nil {
		t.Fatalf("ParseName: %v", err)
	}
	if n.Group != "acme" || n.Name != "widgets" {
		t.Errorf("ParseName(\"acme/widgets\") = %+v", n)
	}

	for _, bad := range []string{"", "noslash", "acme/", "/widgets", "acme/wid gets", "a/b/c"} {
		if _, err := ParseName(bad); err == nil {
			t.Errorf("ParseName(%q) succeeded, want error", bad)
		}
	}
}

func TestNameLessIsTotalOrder(t *testing.T) {
	a := Name{Group: "a", Name: "z"}
	b := Name{Group: "b", Name: "a"}
	if !a.Less(b) {
		t.Errorf("expected %v < %v", a, b)
	}
	if b.Less(a) {
		t.Errorf("expected %v not< %v", b, a)
	}
}
