package cache

import "testing"

func TestFingerprintStableUnderDependencyReordering(t *testing.T) {
	env := Environment{CompilerID: "fluxc-1.0", BackendID: "native", Flags: []string{"-O2"}, Platform: "linux/amd64"}

	a := Fingerprint("src-digest", []string{"dep-a", "dep-b"}, env)
	b := Fingerprint("src-digest", []string{"dep-b", "dep-a"}, env)
	if a != b {
		t.Errorf("fingerprint not invariant under dependency reordering: %s != %s", a, b)
	}
}

func TestFingerprintStableUnderFlagReordering(t *testing.T) {
	a := Fingerprint("src-digest", nil, Environment{Flags: []string{"-O2", "--debug"}})
	b := Fingerprint("src-digest", nil, Environment{Flags: []string{"--debug", "-O2"}})
	if a != b {
		t.Errorf("fingerprint not invariant under flag reordering: %s != %s", a, b)
	}
}

func TestFingerprintDistinguishesAdjacentFields(t *testing.T) {
	a := Fingerprint("ab", nil, Environment{CompilerID: "c"})
	b := Fingerprint("a", nil, Environment{CompilerID: "bc"})
	if a == b {
		t.Errorf("fingerprint collided across a field boundary: %s", a)
	}
}

func TestFingerprintChangesWithEnvironment(t *testing.T) {
	a := Fingerprint("src-digest", nil, Environment{CompilerID: "fluxc-1.0"})
	b := Fingerprint("src-digest", nil, Environment{CompilerID: "fluxc-1.1"})
	if a == b {
		t.Error("expected fingerprint to change when compiler identity changes")
	}
}

func TestRootLayout(t *testing.T) {
	r := Root{Path: "/cache"}
	if got, want := r.BuildDir("fp1"), "/cache/build/fp1"; got != want {
		t.Errorf("BuildDir = %q, want %q", got, want)
	}
	if got, want := r.TmpDir("fp1"), "/cache/tmp/fp1"; got != want {
		t.Errorf("TmpDir = %q, want %q", got, want)
	}
	if got, want := r.SrcDir("h1"), "/cache/src/h1"; got != want {
		t.Errorf("SrcDir = %q, want %q", got, want)
	}
	if got, want := r.BinDir(), "/cache/bin"; got != want {
		t.Errorf("BinDir = %q, want %q", got, want)
	}
}
