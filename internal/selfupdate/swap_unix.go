//go:build !windows

package selfupdate

import (
	"fmt"
	"os"

	"deploy/pkg/fileutil"
)

// renameSwapper replaces the executable with a single rename. Unix keeps
// the running image alive through its open inode, so the path can be
// replaced while the process runs.
type renameSwapper struct {
	target string
	staged string
}

// NewSwapper returns the Swapper for this platform.
func NewSwapper(target string) Swapper {
	return &renameSwapper{target: target}
}

func (s *renameSwapper) Stage(newFile string) error {
	info, err := os.Stat(s.target)
	if err != nil {
		return fmt.Errorf("reading mode of %s: %w", s.target, err)
	}
	if err := os.Chmod(newFile, info.Mode().Perm()); err != nil {
		return fmt.Errorf("setting mode of staged binary: %w", err)
	}
	s.staged = newFile
	return nil
}

func (s *renameSwapper) Commit() error {
	if s.staged == "" {
		return fmt.Errorf("nothing staged")
	}
	return fileutil.ReplaceFile(s.staged, s.target)
}

func (s *renameSwapper) Pending() bool { return false }
