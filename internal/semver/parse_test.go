package semver

import "testing"

func TestParseSigilsWithoutWhitespace(t *testing.T) {
	// Grammar table formats ^X.Y.Z and ~X.Y.Z with no space between the
	// sigil and the version; this must parse the same as the spaced
	// "^ X.Y.Z" would if that were legal surface syntax.
	caret, err := ParseConstraint("^1.2.3")
	if err != nil {
		t.Fatalf("ParseConstraint(%q): %v", "^1.2.3", err)
	}
	bare, err := ParseConstraint("1.2.3")
	if err != nil {
		t.Fatalf("ParseConstraint(%q): %v", "1.2.3", err)
	}
	if !Equals(caret, bare) {
		t.Errorf("^1.2.3 = %s, want equal to bare 1.2.3 = %s", caret, bare)
	}

	tilde, err := ParseConstraint("~1.2.3")
	if err != nil {
		t.Fatalf("ParseConstraint(%q): %v", "~1.2.3", err)
	}
	if !Satisfies(tilde, mustParseVersion(t, "1.2.9")) {
		t.Errorf("expected ~1.2.3 to admit 1.2.9")
	}
	if Satisfies(tilde, mustParseVersion(t, "1.3.0")) {
		t.Errorf("expected ~1.2.3 to exclude 1.3.0")
	}
}

func TestParseRejectsIrregularWhitespace(t *testing.T) {
	cases := []string{
		">=  1.0.0",
		">= 1.0.0  < 2.0.0",
		">=\t1.0.0",
	}
	for _, c := range cases {
		if _, err := ParseConstraint(c); err == nil {
			t.Errorf("ParseConstraint(%q) succeeded, want error (irregular whitespace)", c)
		}
	}
}

func TestParseUnion(t *testing.T) {
	c, err := ParseConstraint("^1.0.0, ^2.0.0, ^3.0.0")
	if err != nil {
		t.Fatalf("ParseConstraint: %v", err)
	}
	for _, s := range []string{"1.5.0", "2.5.0", "3.5.0"} {
		if !Satisfies(c, mustParseVersion(t, s)) {
			t.Errorf("expected union to admit %s", s)
		}
	}
	if Satisfies(c, mustParseVersion(t, "4.0.0")) {
		t.Error("expected union not to admit 4.0.0")
	}
}

func TestParseConstraintEmptyString(t *testing.T) {
	if _, err := ParseConstraint(""); err == nil {
		t.Error("expected error for empty constraint string")
	}
	if _, err := ParseConstraint("   "); err == nil {
		t.Error("expected error for whitespace-only constraint string")
	}
}

func TestParseConstraintDanglingOperator(t *testing.T) {
	if _, err := ParseConstraint(">="); err == nil {
		t.Error("expected error for dangling operator with no operand")
	}
}

func TestRoundTripCanonicalStrings(t *testing.T) {
	cases := []string{
		"any",
		">= 1.0.0",
		"> 1.0.0",
		"<= 1.0.0",
		"< 1.0.0",
		">= 1.0.0 < 2.0.0",
	}
	for _, s := range cases {
		c, err := ParseConstraint(s)
		if err != nil {
			t.Fatalf("ParseConstraint(%q): %v", s, err)
		}
		if got := c.String(); got != s {
			t.Errorf("round-trip %q: got %q", s, got)
		}
	}
}
