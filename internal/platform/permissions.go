package platform

import (
	"os"
	"runtime"
)

// ExecutableMode is the permission applied to staged binaries on Unix-like
// systems: read and execute for owner, group and other, write for owner.
const ExecutableMode os.FileMode = 0o755

// Chmod sets file permissions. On Windows this is a no-op because Windows
// does not support Unix-style permission bits.
func Chmod(path string, mode os.FileMode) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return os.Chmod(path, mode)
}
