package selfupdate

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"deploy/internal/failure"
	"deploy/internal/platform"
)

// maxChecksumBytes bounds checksum files, which are a few lines of text.
const maxChecksumBytes = 1 << 20

// ErrNoChecksum means the release does not publish a checksum for the asset.
var ErrNoChecksum = errors.New("checksum unavailable")

// ChecksumEntry is one line of a sha256sum listing.
type ChecksumEntry struct {
	Hash     string
	Filename string
}

// ParseChecksums reads sha256sum output: "<hex>  <name>", or "<hex> *<name>"
// for binary mode. Lines that do not parse are skipped.
func ParseChecksums(r io.Reader) ([]ChecksumEntry, error) {
	var entries []ChecksumEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !isHexSHA256(fields[0]) {
			continue
		}
		entries = append(entries, ChecksumEntry{
			Hash:     strings.ToLower(fields[0]),
			Filename: strings.TrimPrefix(strings.Join(fields[1:], " "), "*"),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}
	return entries, nil
}

// FindChecksum returns the hash listed for filename.
func FindChecksum(entries []ChecksumEntry, filename string) (string, bool) {
	for _, e := range entries {
		if e.Filename == filename {
			return e.Hash, true
		}
	}
	return "", false
}

// HashFile returns the lowercase hex SHA-256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyFile hashes the file at path and compares it with expected. name
// is the asset name reported in the IntegrityError.
func VerifyFile(path, name, expected string) error {
	got, err := HashFile(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(got, expected) {
		return &failure.IntegrityError{Name: name, Expected: strings.ToLower(expected), Got: got}
	}
	return nil
}

// findChecksum looks for a "<asset>.sha256" sidecar first, then for a
// checksums.txt or SHA256SUMS listing. It returns ErrNoChecksum when the
// release publishes neither, or a listing without the asset.
func findChecksum(ctx context.Context, src ReleaseSource, repo string, rel *platform.Release, asset *platform.Asset) (string, error) {
	var sidecar, listing *platform.Asset
	for i := range rel.Assets {
		a := &rel.Assets[i]
		lower := strings.ToLower(a.Name)
		switch {
		case lower == strings.ToLower(asset.Name)+".sha256" || lower == strings.ToLower(asset.Name)+".sha256sum":
			sidecar = a
		case listing == nil && isChecksumList(lower):
			listing = a
		}
	}

	if sidecar != nil {
		data, err := readAsset(ctx, src, repo, sidecar)
		if err != nil {
			return "", err
		}
		if hash, ok := sidecarHash(data, asset.Name); ok {
			return hash, nil
		}
	}

	if listing != nil {
		entries, err := fetchChecksums(ctx, src, repo, listing)
		if err != nil {
			return "", err
		}
		if hash, ok := FindChecksum(entries, asset.Name); ok {
			return hash, nil
		}
	}

	return "", ErrNoChecksum
}

func isChecksumList(lowerName string) bool {
	switch lowerName {
	case "checksums.txt", "sha256sums", "sha256sums.txt":
		return true
	}
	return strings.HasSuffix(lowerName, "_checksums.txt")
}

func fetchChecksums(ctx context.Context, src ReleaseSource, repo string, a *platform.Asset) ([]ChecksumEntry, error) {
	data, err := readAsset(ctx, src, repo, a)
	if err != nil {
		return nil, err
	}
	return ParseChecksums(bytes.NewReader(data))
}

// sidecarHash accepts a sha256sum line for name, a single line for any name
// (sidecars often carry the path from the build tree), or a bare hash.
func sidecarHash(data []byte, name string) (string, bool) {
	entries, err := ParseChecksums(bytes.NewReader(data))
	if err == nil {
		if hash, ok := FindChecksum(entries, name); ok {
			return hash, true
		}
		if len(entries) == 1 {
			return entries[0].Hash, true
		}
	}
	hash := strings.TrimSpace(string(data))
	if isHexSHA256(hash) {
		return strings.ToLower(hash), true
	}
	return "", false
}

func readAsset(ctx context.Context, src ReleaseSource, repo string, a *platform.Asset) ([]byte, error) {
	body, err := src.DownloadAsset(ctx, repo, a.ID)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxChecksumBytes))
	if err != nil {
		return nil, &failure.NetworkError{Op: "download " + a.Name, Err: err}
	}
	return data, nil
}

func isHexSHA256(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
