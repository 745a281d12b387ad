package selfupdate

import (
	"context"
	"io"
	"runtime"
	"strings"

	"deploy/internal/failure"
	"deploy/internal/platform"
)

// ReleaseSource reads releases and streams their assets.
type ReleaseSource interface {
	LatestRelease(ctx context.Context, repo string) (*platform.Release, error)
	DownloadAsset(ctx context.Context, repo string, id int64) (io.ReadCloser, error)
}

// Asset is the release file chosen for this platform.
type Asset struct {
	Version     string
	PlatformTag string
	Name        string
	DownloadURL string
	// Checksum is the published SHA-256, empty when the release has none.
	Checksum string
	ID       int64
	Size     int64
}

// PlatformTag returns the tag of the running build, e.g. "linux_amd64".
func PlatformTag() string {
	return runtime.GOOS + "_" + runtime.GOARCH
}

var osAliases = map[string][]string{
	"linux":   {"linux"},
	"darwin":  {"darwin", "macos", "osx", "apple"},
	"windows": {"windows", "win", "win32", "win64"},
	"freebsd": {"freebsd"},
	"openbsd": {"openbsd"},
	"netbsd":  {"netbsd"},
}

var archAliases = map[string][]string{
	"amd64": {"amd64", "x86_64", "x64"},
	"arm64": {"arm64", "aarch64"},
	"386":   {"386", "i386", "i686"},
	"arm":   {"arm", "armv6", "armv7", "armhf"},
}

var sidecarSuffixes = []string{
	".sha256", ".sha256sum", ".sha512", ".md5",
	".asc", ".sig", ".pem", ".cert", ".sbom", ".spdx.json", ".intoto.jsonl",
}

// SelectAsset returns the first asset of rel whose name carries both the
// OS and the architecture of platformTag. Checksum and signature files are
// never selected.
func SelectAsset(rel *platform.Release, platformTag string) (*platform.Asset, error) {
	goos, goarch, _ := strings.Cut(platformTag, "_")

	var available []string
	for i := range rel.Assets {
		a := &rel.Assets[i]
		if isSidecar(a.Name) {
			continue
		}
		available = append(available, a.Name)
		name := strings.ToLower(a.Name)
		if matchesAny(name, aliases(osAliases, goos)) && matchesAny(name, aliases(archAliases, goarch)) {
			return a, nil
		}
	}
	return nil, &failure.UnsupportedPlatformError{Platform: platformTag, Available: available}
}

func aliases(table map[string][]string, key string) []string {
	if names, ok := table[key]; ok {
		return names
	}
	return []string{key}
}

func isSidecar(name string) bool {
	lower := strings.ToLower(name)
	if isChecksumList(lower) {
		return true
	}
	for _, suffix := range sidecarSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func matchesAny(name string, tokens []string) bool {
	for _, tok := range tokens {
		if containsToken(name, tok) {
			return true
		}
	}
	return false
}

// containsToken reports whether tok appears in name delimited by
// separators or the ends of the name, so "win" does not match "darwin".
func containsToken(name, tok string) bool {
	for start := 0; ; {
		i := strings.Index(name[start:], tok)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(tok)
		if (i == 0 || isSeparator(name[i-1])) && (end == len(name) || isSeparator(name[end])) {
			return true
		}
		start = i + 1
	}
}

func isSeparator(c byte) bool {
	return c == '-' || c == '_' || c == '.' || c == ' '
}
