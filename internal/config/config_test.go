package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAppliesDefaultsWhenNoFilesExist(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cwd := t.TempDir()

	cfg, err := Load(cwd, 4, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Build.Threads != 4 {
		t.Errorf("Build.Threads = %d, want 4", cfg.Build.Threads)
	}
	if cfg.Build.CompilerID != "fluxc" {
		t.Errorf("Build.CompilerID = %q, want fluxc", cfg.Build.CompilerID)
	}
}

func TestLoadLayersAncestorThenCwdOverHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeFile(t, filepath.Join(home, Name), `
[build]
compiler = "from-home"
threads = 1
`)

	root := t.TempDir()
	project := filepath.Join(root, "project")
	cwd := filepath.Join(project, "sub")
	if err := os.MkdirAll(cwd, 0o755); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(root, Name), `
[build]
compiler = "from-ancestor"
`)
	writeFile(t, filepath.Join(project, Name), `
[build]
backend = "from-project"
`)

	cfg, err := Load(cwd, 1, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Build.CompilerID != "from-ancestor" {
		t.Errorf("CompilerID = %q, want from-ancestor (ancestor beats home)", cfg.Build.CompilerID)
	}
	if cfg.Build.BackendID != "from-project" {
		t.Errorf("BackendID = %q, want from-project", cfg.Build.BackendID)
	}
	if cfg.Build.Threads != 1 {
		t.Errorf("Threads = %d, want 1 (unset in every overriding layer)", cfg.Build.Threads)
	}
}

func TestLoadEnvOverridesEveryFileLayer(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, Name), `
[build]
compiler = "from-cwd"
`)

	cfg, err := Load(cwd, 4, []string{"FLUX_BUILD_COMPILER=from-env"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Build.CompilerID != "from-env" {
		t.Errorf("CompilerID = %q, want from-env", cfg.Build.CompilerID)
	}
}

func TestLoadReplacesFlagsWholesale(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeFile(t, filepath.Join(home, Name), `
[build]
flags = ["-O0", "--debug"]
`)
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, Name), `
[build]
flags = ["-O2"]
`)

	cfg, err := Load(cwd, 1, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Build.Flags) != 1 || cfg.Build.Flags[0] != "-O2" {
		t.Errorf("Flags = %v, want [-O2] (replaced, not merged)", cfg.Build.Flags)
	}
}

func TestAncestorsRootDownOrdersFromRoot(t *testing.T) {
	dirs := ancestorsRootDown("/a/b/c")
	if len(dirs) < 2 {
		t.Fatalf("ancestorsRootDown(/a/b/c) = %v, too short", dirs)
	}
	if dirs[len(dirs)-1] != "/a/b" {
		t.Errorf("last ancestor = %q, want /a/b (cwd's immediate parent)", dirs[len(dirs)-1])
	}
	if dirs[0] != "/" {
		t.Errorf("first ancestor = %q, want / (filesystem root)", dirs[0])
	}
}
