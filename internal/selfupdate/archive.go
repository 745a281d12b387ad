package selfupdate

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// maxBinaryBytes bounds both downloads and extracted binaries.
const maxBinaryBytes = 500 << 20

type archiveKind int

const (
	archiveNone archiveKind = iota
	archiveTarGz
	archiveZip
)

func archiveKindOf(name string) archiveKind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return archiveTarGz
	case strings.HasSuffix(lower, ".zip"):
		return archiveZip
	default:
		return archiveNone
	}
}

// extractBinary copies the entry named binary (matched on its base name, so
// nested layouts work) out of the archive at path into a new temp file next
// to exe, and returns that file's path.
func extractBinary(path string, kind archiveKind, binary, exe string) (string, error) {
	switch kind {
	case archiveTarGz:
		return extractFromTarGz(path, binary, exe)
	case archiveZip:
		return extractFromZip(path, binary, exe)
	default:
		return "", fmt.Errorf("%s is not an archive", filepath.Base(path))
	}
}

func extractFromTarGz(path, binary, exe string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || filepath.Base(hdr.Name) != binary {
			continue
		}
		return writeTemp(exe, binary, tr)
	}
	return "", fmt.Errorf("%s not found in archive", binary)
}

func extractFromZip(path, binary, exe string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || filepath.Base(zf.Name) != binary {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return "", fmt.Errorf("reading zip entry: %w", err)
		}
		defer rc.Close()
		return writeTemp(exe, binary, rc)
	}
	return "", fmt.Errorf("%s not found in archive", binary)
}

// writeTemp copies at most maxBinaryBytes of r into a new temp file next
// to exe.
func writeTemp(exe, binary string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(exe), stagedPattern(exe))
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	n, err := io.Copy(tmp, io.LimitReader(r, maxBinaryBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxBinaryBytes {
		err = fmt.Errorf("%s exceeds %d bytes", binary, maxBinaryBytes)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("extracting %s: %w", binary, err)
	}
	return tmp.Name(), nil
}
