//go:build windows

package selfupdate

import (
	"fmt"
	"os"

	"deploy/pkg/fileutil"
)

// relinkSwapper works around Windows refusing to overwrite a running
// executable: the running file can be renamed but not replaced, so it is
// moved to <exe>.old and removed on the next start.
type relinkSwapper struct {
	target string
	staged string
}

// NewSwapper returns the Swapper for this platform.
func NewSwapper(target string) Swapper {
	return &relinkSwapper{target: target}
}

func (s *relinkSwapper) Stage(newFile string) error {
	if _, err := os.Stat(s.target); err != nil {
		return fmt.Errorf("reading %s: %w", s.target, err)
	}
	s.staged = newFile
	return nil
}

func (s *relinkSwapper) Commit() error {
	if s.staged == "" {
		return fmt.Errorf("nothing staged")
	}

	aside := asidePath(s.target)
	if err := fileutil.MoveAside(s.target, aside); err != nil {
		_ = os.Remove(s.staged)
		return err
	}
	if err := os.Rename(s.staged, s.target); err != nil {
		if rbErr := os.Rename(aside, s.target); rbErr != nil {
			return fmt.Errorf("installing new binary: %v; restoring %s also failed: %w", err, aside, rbErr)
		}
		_ = os.Remove(s.staged)
		return fmt.Errorf("installing new binary: %w", err)
	}
	return nil
}

func (s *relinkSwapper) Pending() bool { return true }
