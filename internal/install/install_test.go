package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fncraft/flux/internal/pkgid"
	"github.com/fncraft/flux/internal/semver"
)

func mustName(t *testing.T, s string) pkgid.Name {
	t.Helper()
	n, err := pkgid.ParseName(s)
	if err != nil {
		t.Fatalf("ParseName(%q): %v", s, err)
	}
	return n
}

func mustVersion(t *testing.T, s string) semver.Version {
	t.Helper()
	v, err := semver.ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact")
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInstallThenUninstallByName(t *testing.T) {
	r := &Registry{BinDir: filepath.Join(t.TempDir(), "bin")}
	entry := Entry{
		PackageId:   pkgid.PackageId{Name: mustName(t, "acme/widget"), Resolution: pkgid.NewIndex("")},
		Version:     mustVersion(t, "1.0.0"),
		Fingerprint: "abc123",
	}

	artifact := writeArtifact(t, "binary-contents")
	if err := r.Install("widget", artifact, entry, false); err != nil {
		t.Fatalf("Install: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(r.BinDir, "widget"))
	if err != nil || string(got) != "binary-contents" {
		t.Fatalf("installed binary contents = %q, %v", got, err)
	}

	entries, err := r.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e, ok := entries["widget"]; !ok || e.Fingerprint != "abc123" {
		t.Fatalf("entries[widget] = %+v, ok=%v", e, ok)
	}

	if err := r.UninstallByName("widget"); err != nil {
		t.Fatalf("UninstallByName: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.BinDir, "widget")); !os.IsNotExist(err) {
		t.Error("expected the installed binary to be removed")
	}
}

func TestInstallRejectsCollisionWithoutForce(t *testing.T) {
	r := &Registry{BinDir: filepath.Join(t.TempDir(), "bin")}
	entry := Entry{PackageId: pkgid.PackageId{Name: mustName(t, "acme/widget"), Resolution: pkgid.NewIndex("")}, Version: mustVersion(t, "1.0.0")}

	artifact := writeArtifact(t, "v1")
	if err := r.Install("widget", artifact, entry, false); err != nil {
		t.Fatalf("first Install: %v", err)
	}
	if err := r.Install("widget", artifact, entry, false); err == nil {
		t.Fatal("expected collision error without force")
	}
	if err := r.Install("widget", artifact, entry, true); err != nil {
		t.Fatalf("Install with force: %v", err)
	}
}

func TestUninstallBySpecRejectsAmbiguity(t *testing.T) {
	r := &Registry{BinDir: filepath.Join(t.TempDir(), "bin")}
	widgetName := mustName(t, "acme/widget")

	artifact := writeArtifact(t, "bin")
	e1 := Entry{PackageId: pkgid.PackageId{Name: widgetName, Resolution: pkgid.NewIndex("")}, Version: mustVersion(t, "1.0.0")}
	e2 := Entry{PackageId: pkgid.PackageId{Name: widgetName, Resolution: pkgid.NewIndex("")}, Version: mustVersion(t, "2.0.0")}
	if err := r.Install("widget-v1", artifact, e1, false); err != nil {
		t.Fatalf("Install widget-v1: %v", err)
	}
	if err := r.Install("widget-v2", artifact, e2, false); err != nil {
		t.Fatalf("Install widget-v2: %v", err)
	}

	spec, err := ParseSpec("acme/widget")
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if _, err := r.UninstallBySpec(spec); err == nil {
		t.Fatal("expected an ambiguous-spec error listing both candidates")
	}

	narrowed, err := ParseSpec("acme/widget | ^2.0.0")
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	removed, err := r.UninstallBySpec(narrowed)
	if err != nil {
		t.Fatalf("UninstallBySpec narrowed: %v", err)
	}
	if len(removed) != 1 || removed[0] != "widget-v2" {
		t.Errorf("removed = %v, want [widget-v2]", removed)
	}
}

func TestParseSpecGrammar(t *testing.T) {
	spec, err := ParseSpec("acme/widget @ git+https://example.com/widget.git | ^1.0.0")
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if spec.Name.String() != "acme/widget" {
		t.Errorf("Name = %q", spec.Name.String())
	}
	if spec.Resolution == nil || spec.Resolution.Kind != pkgid.Git || spec.Resolution.URL != "https://example.com/widget.git" {
		t.Errorf("Resolution = %+v", spec.Resolution)
	}
	if spec.Constraint == nil {
		t.Fatal("Constraint = nil, want ^1.0.0")
	}
}
