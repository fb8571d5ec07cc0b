package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/fncraft/flux/internal/pkgid"
)

// fetchTar downloads and extracts a tar+URL resolution, hashing the raw
// tarball bytes as they stream in. A mismatch against expectedHash is a
// hard error: the stored tarball is never silently reused (spec §4.3).
func (f *Fetcher) fetchTar(ctx context.Context, res pkgid.Resolution, expectedHash string) (LocalPath, error) {
	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, res.URL, nil)
	if err != nil {
		return "", errors.Wrapf(err, "building request for %s", res.URL)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "downloading %s", res.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("downloading %s: unexpected status %s", res.URL, resp.Status)
	}

	h := sha256.New()
	tee := io.TeeReader(resp.Body, h)

	tmp, err := os.MkdirTemp(f.SrcRoot, "tar-*")
	if err != nil {
		return "", errors.Wrap(err, "creating temporary extraction directory")
	}
	defer os.RemoveAll(tmp)

	if err := extractTarGz(tee, tmp); err != nil {
		return "", errors.Wrapf(err, "extracting %s", res.URL)
	}

	digest := hex.EncodeToString(h.Sum(nil))
	if expectedHash != "" && digest != expectedHash {
		return "", &HashMismatchError{URL: res.URL, Want: expectedHash, Got: digest}
	}

	dest, err := f.destDir(digest)
	if err != nil {
		return "", err
	}
	var result LocalPath
	err = withLock(dest, func() error {
		if hasCompletionMarker(dest) {
			result = LocalPath(dest)
			return nil
		}
		if err := os.RemoveAll(dest); err != nil {
			return errors.Wrapf(err, "clearing stale extraction at %s", dest)
		}
		if err := os.Rename(tmp, dest); err != nil {
			return errors.Wrapf(err, "finalizing extraction to %s", dest)
		}
		if err := writeCompletionMarker(dest); err != nil {
			return err
		}
		result = LocalPath(dest)
		return nil
	})
	return result, err
}

func extractTarGz(r io.Reader, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "opening gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading tar entry")
		}

		target := filepath.Join(dest, filepath.Clean(hdr.Name))
		if !isWithinDir(dest, target) {
			return errors.Errorf("tar entry %q escapes extraction root", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode&0o777))
			if err != nil {
				return err
			}
			_, err = io.Copy(out, tr)
			closeErr := out.Close()
			if err != nil {
				return err
			}
			if closeErr != nil {
				return closeErr
			}
		}
	}
}

func isWithinDir(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
