// Package selfupdate replaces the running executable with the binary from
// the latest GitHub release.
//
// An update moves through fixed stages, and every error is attributed to
// the stage it happened in:
//   - fetch: latest release metadata (release.go)
//   - select: the asset built for this OS and architecture (release.go)
//   - download: the asset into a temp file beside the executable (updater.go)
//   - verification: SHA-256 against a published checksum (checksum.go)
//   - swap: archive extraction and the final rename (archive.go, swap_*.go)
//
// Nothing touches the live executable before the swap stage.
package selfupdate
