package security

import (
	"fmt"
	"os"
)

// PermConfigFile is for configuration files containing a token.
// rw------- (0600): only the owner can read or write.
const PermConfigFile os.FileMode = 0600

// IsWorldReadable checks if a file is readable by others.
func IsWorldReadable(perm os.FileMode) bool {
	return perm&0004 != 0
}

// IsWorldWritable checks if a file is writable by others.
func IsWorldWritable(perm os.FileMode) bool {
	return perm&0002 != 0
}

// CheckSecretFile reports files holding credentials that others can read
// or modify.
func CheckSecretFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	perm := info.Mode().Perm()

	if IsWorldWritable(perm) {
		return fmt.Errorf("file %s is world-writable (%04o); expected %04o", path, perm, PermConfigFile)
	}
	if IsWorldReadable(perm) {
		return fmt.Errorf("file %s is world-readable (%04o); expected %04o", path, perm, PermConfigFile)
	}

	return nil
}
