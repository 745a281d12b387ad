package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPermissionHelpers(t *testing.T) {
	tests := []struct {
		perm      os.FileMode
		readable  bool
		writeable bool
	}{
		{0600, false, false},
		{0640, false, false},
		{0644, true, false},
		{0666, true, true},
		{0602, false, true},
	}

	for _, tt := range tests {
		if got := IsWorldReadable(tt.perm); got != tt.readable {
			t.Errorf("IsWorldReadable(%04o) = %v, want %v", tt.perm, got, tt.readable)
		}
		if got := IsWorldWritable(tt.perm); got != tt.writeable {
			t.Errorf("IsWorldWritable(%04o) = %v, want %v", tt.perm, got, tt.writeable)
		}
	}
}

func TestCheckSecretFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		perm    os.FileMode
		wantErr bool
	}{
		{"owner only", 0600, false},
		{"group readable", 0640, false},
		{"world readable", 0644, true},
		{"world writable", 0666, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte("token: x\n"), 0600); err != nil {
				t.Fatal(err)
			}
			// Chmod bypasses umask
			if err := os.Chmod(path, tt.perm); err != nil {
				t.Fatal(err)
			}

			err := CheckSecretFile(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckSecretFile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := CheckSecretFile(filepath.Join(tmpDir, "missing")); err == nil {
		t.Error("CheckSecretFile() should fail for a missing file")
	}
}
