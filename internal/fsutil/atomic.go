package fsutil

import (
	"fmt"
	"os"
)

// AtomicWrite writes data to path using a tmp+rename strategy. The tmp
// name carries the pid: hook invocations for different sessions can run
// concurrently in the same directory, and each must stage its own file.
// If rename fails, the tmp file is cleaned up.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	tmp := fmt.Sprintf("%s.tmp.%d", path, os.Getpid())
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
