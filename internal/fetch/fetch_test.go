package fetch

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fncraft/flux/internal/flog"
	"github.com/fncraft/flux/internal/pkgid"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	root := t.TempDir()
	return &Fetcher{SrcRoot: root, Log: flog.Discard()}
}

func buildTarGz(t *testing.T, files map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("writing tar header: %v", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("writing tar body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("closing tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("closing gzip writer: %v", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(sum[:])
}

func TestFetchTarExtractsAndVerifiesHash(t *testing.T) {
	data, digest := buildTarGz(t, map[string]string{"manifest.toml": "name = \"acme/widgets\"\n"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	res := pkgid.NewTar(srv.URL + "/widgets.tar.gz")

	local, err := f.Fetch(context.Background(), res, digest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	contents, err := os.ReadFile(filepath.Join(string(local), "manifest.toml"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(contents) != "name = \"acme/widgets\"\n" {
		t.Fatalf("unexpected extracted content: %q", contents)
	}

	// Refetching with the completion marker present should land on the
	// same content-addressed destination rather than re-extract into it.
	local2, err := f.Fetch(context.Background(), res, digest)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if local2 != local {
		t.Fatalf("expected stable destination, got %s then %s", local, local2)
	}
}

func TestFetchTarRejectsHashMismatch(t *testing.T) {
	data, _ := buildTarGz(t, map[string]string{"x": "y"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	res := pkgid.NewTar(srv.URL + "/x.tar.gz")

	_, err := f.Fetch(context.Background(), res, "0000000000000000000000000000000000000000000000000000000000000000")
	if err == nil {
		t.Fatal("expected hash mismatch error")
	}
	if _, ok := err.(*HashMismatchError); !ok {
		t.Fatalf("expected *HashMismatchError, got %T: %v", err, err)
	}
}

func TestFetchTarRejectsPathTraversal(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	evil := "../../etc/passwd"
	hdr := &tar.Header{Name: evil, Mode: 0o644, Size: 4}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("writing header: %v", err)
	}
	tw.Write([]byte("evil"))
	tw.Close()
	gz.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	res := pkgid.NewTar(srv.URL + "/evil.tar.gz")
	_, err := f.Fetch(context.Background(), res, "")
	if err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}

func TestFetchDirCopiesTreeAndIgnoresGit(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "manifest.toml"), []byte("name = \"acme/gears\"\n"), 0o644); err != nil {
		t.Fatalf("seeding source dir: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(src, ".git"), 0o755); err != nil {
		t.Fatalf("seeding .git dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		t.Fatalf("seeding .git/HEAD: %v", err)
	}

	f := newTestFetcher(t)
	res := pkgid.NewDir(src)

	local, err := f.Fetch(context.Background(), res, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(string(local), "manifest.toml")); err != nil {
		t.Fatalf("expected manifest.toml to be copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(string(local), ".git")); !os.IsNotExist(err) {
		t.Fatalf("expected .git to be ignored by the copy, stat err=%v", err)
	}
}

func TestFetchDirRejectsNonDirectory(t *testing.T) {
	src := t.TempDir()
	file := filepath.Join(src, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	f := newTestFetcher(t)
	res := pkgid.NewDir(file)
	if _, err := f.Fetch(context.Background(), res, ""); err == nil {
		t.Fatal("expected error fetching a non-directory dir+ source")
	}
}

func TestFetchIndexDereferencesInner(t *testing.T) {
	data, digest := buildTarGz(t, map[string]string{"a": "b"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	inner := pkgid.NewTar(srv.URL + "/a.tar.gz")
	res := pkgid.NewIndex("default")
	res.Inner = &inner

	if _, err := f.Fetch(context.Background(), res, digest); err != nil {
		t.Fatalf("Fetch via index: %v", err)
	}
}

func TestFetchIndexWithoutInnerIsError(t *testing.T) {
	f := newTestFetcher(t)
	res := pkgid.NewIndex("default")
	if _, err := f.Fetch(context.Background(), res, ""); err == nil {
		t.Fatal("expected error for undereferenced index resolution")
	}
}

func TestFetchUnrecognizedKindIsError(t *testing.T) {
	f := newTestFetcher(t)
	var res pkgid.Resolution
	res.Kind = pkgid.Kind(99)
	if _, err := f.Fetch(context.Background(), res, ""); err == nil {
		t.Fatal("expected error for unrecognized resolution kind")
	}
}
