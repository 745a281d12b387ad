package selfupdate

import (
	"path/filepath"
	"strings"

	"deploy/pkg/fileutil"
)

// Swapper puts a new executable in place of the running one. Stage
// prepares the file and must leave the target untouched; Commit performs
// the replacement.
type Swapper interface {
	Stage(newFile string) error
	Commit() error
	// Pending reports whether leftovers remain for CleanupStale after a
	// successful Commit.
	Pending() bool
}

// Temp files are named after the executable they will replace, so that
// CleanupStale finds them from the executable path alone.
func downloadPattern(exe string) string { return "." + stem(exe) + "-download-*" }
func stagedPattern(exe string) string   { return "." + stem(exe) + "-new-*" }
func asidePath(exe string) string       { return exe + ".old" }

func stem(exe string) string {
	return strings.TrimSuffix(filepath.Base(exe), ".exe")
}

// CleanupStale removes what earlier updates left next to exe: the old
// executable set aside by a staged swap and any abandoned temp files. It
// returns how many files were removed.
func CleanupStale(exe string) int {
	dir := filepath.Dir(exe)
	removed := fileutil.RemoveMatching(dir, filepath.Base(asidePath(exe)))
	removed += fileutil.RemoveMatching(dir, downloadPattern(exe))
	removed += fileutil.RemoveMatching(dir, stagedPattern(exe))
	return removed
}
