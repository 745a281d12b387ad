package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/mod/semver"

	"deploy/internal/failure"
	"deploy/internal/platform"
	"deploy/pkg/fileutil"
)

// Options configures an Updater.
type Options struct {
	// BinaryName is the executable's name inside release archives, without
	// the Windows ".exe" suffix.
	BinaryName string
	// Executable is the file to replace. Empty means the running binary.
	Executable string
	Logger     *slog.Logger
	// NewSwapper overrides the platform Swapper; used by tests.
	NewSwapper func(target string) Swapper
}

// Outcome describes a finished update.
type Outcome struct {
	PreviousVersion string
	NewVersion      string
	Replaced        bool
	// Verified is false when the release published no checksum for the
	// asset and it was installed unverified.
	Verified     bool
	ReleaseNotes string
	// Pending is set when the old executable was set aside and is removed
	// on the next start.
	Pending bool
	Asset   *Asset
}

// Updater installs the latest release of one repository over the running
// executable.
type Updater struct {
	source     ReleaseSource
	repo       string
	binary     string
	executable string
	logger     *slog.Logger
	newSwapper func(target string) Swapper
}

// NewUpdater returns an Updater for releases of repo.
func NewUpdater(source ReleaseSource, repo string, opts Options) *Updater {
	u := &Updater{
		source:     source,
		repo:       repo,
		binary:     opts.BinaryName,
		executable: opts.Executable,
		logger:     opts.Logger,
		newSwapper: opts.NewSwapper,
	}
	if u.binary == "" {
		u.binary = filepath.Base(repo)
	}
	if u.logger == nil {
		u.logger = slog.Default()
	}
	if u.newSwapper == nil {
		u.newSwapper = NewSwapper
	}
	return u
}

// Update moves to the latest release when it is newer than current.
// platformTag selects the asset, normally PlatformTag().
func (u *Updater) Update(ctx context.Context, current, platformTag string) (*Outcome, error) {
	rel, err := u.source.LatestRelease(ctx, u.repo)
	if err != nil {
		return nil, failure.At(failure.StageFetch, err)
	}

	out := &Outcome{
		PreviousVersion: current,
		NewVersion:      rel.TagName,
		ReleaseNotes:    rel.Body,
	}

	newer, err := IsNewer(rel.TagName, current)
	if err != nil {
		return nil, failure.At(failure.StageFetch, err)
	}
	if !newer {
		u.logger.Info("already up to date", "current", current, "latest", rel.TagName)
		return out, nil
	}

	picked, err := SelectAsset(rel, platformTag)
	if err != nil {
		return nil, failure.At(failure.StageSelect, err)
	}
	asset := &Asset{
		Version:     rel.TagName,
		PlatformTag: platformTag,
		Name:        picked.Name,
		DownloadURL: picked.DownloadURL,
		ID:          picked.ID,
		Size:        picked.Size,
	}
	out.Asset = asset
	u.logger.Info("selected release asset", "version", asset.Version, "asset", asset.Name)

	exe, err := u.resolveExecutable()
	if err != nil {
		return nil, failure.At(failure.StageDownload, err)
	}
	downloaded, err := u.download(ctx, asset, exe)
	if err != nil {
		return nil, failure.At(failure.StageDownload, err)
	}
	defer os.Remove(downloaded)

	sum, err := findChecksum(ctx, u.source, u.repo, rel, picked)
	switch {
	case errors.Is(err, ErrNoChecksum):
		u.logger.Warn("checksum unavailable, installing unverified binary", "asset", asset.Name)
	case err != nil:
		return nil, failure.At(failure.StageVerification, err)
	default:
		asset.Checksum = sum
		if err := VerifyFile(downloaded, asset.Name, sum); err != nil {
			return nil, failure.At(failure.StageVerification, err)
		}
		out.Verified = true
		u.logger.Debug("checksum verified", "asset", asset.Name, "sha256", sum)
	}

	newFile := downloaded
	if kind := archiveKindOf(asset.Name); kind != archiveNone {
		newFile, err = extractBinary(downloaded, kind, executableName(u.binary), exe)
		if err != nil {
			return nil, failure.At(failure.StageExtract, err)
		}
		defer os.Remove(newFile)
	}

	swapper := u.newSwapper(exe)
	if err := swapper.Stage(newFile); err != nil {
		return nil, failure.At(failure.StageSwap, err)
	}
	if err := swapper.Commit(); err != nil {
		return nil, failure.At(failure.StageSwap, err)
	}

	out.Replaced = true
	out.Pending = swapper.Pending()
	u.logger.Info("executable replaced", "path", exe, "from", current, "to", rel.TagName)
	return out, nil
}

// download streams the asset into a temp file next to exe. On a failed
// copy the partial file is left for CleanupStale.
func (u *Updater) download(ctx context.Context, asset *Asset, exe string) (string, error) {
	if asset.Size > maxBinaryBytes {
		return "", fmt.Errorf("%s is %d bytes, over the %d byte limit", asset.Name, asset.Size, maxBinaryBytes)
	}

	body, err := u.source.DownloadAsset(ctx, u.repo, asset.ID)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(exe), downloadPattern(exe))
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer tmp.Close()

	u.logger.Debug("downloading", "asset", asset.Name, "to", tmp.Name())
	n, err := io.Copy(tmp, io.LimitReader(body, maxBinaryBytes+1))
	if err != nil {
		return "", &failure.NetworkError{Op: "download " + asset.Name, Err: err}
	}
	if n > maxBinaryBytes {
		return "", fmt.Errorf("%s exceeds %d bytes", asset.Name, maxBinaryBytes)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	return tmp.Name(), nil
}

func (u *Updater) resolveExecutable() (string, error) {
	path := u.executable
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locating running executable: %w", err)
		}
		path = exe
	}
	return fileutil.ResolveRealPath(path)
}

// IsNewer reports whether release is a later version than current. A
// current version that is not semver, such as "dev", is older than any
// release.
func IsNewer(release, current string) (bool, error) {
	rel := canonical(release)
	if !semver.IsValid(rel) {
		return false, fmt.Errorf("release tag %q is not a semantic version", release)
	}
	cur := canonical(current)
	if !semver.IsValid(cur) {
		return true, nil
	}
	return semver.Compare(rel, cur) > 0, nil
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func executableName(binary string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(binary, ".exe") {
		return binary + ".exe"
	}
	return binary
}

var _ ReleaseSource = (*platform.Client)(nil)
