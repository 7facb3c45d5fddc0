// =============================================================================
// PO Reconcile - File Management Utilities
// =============================================================================
//
// Shared filesystem helpers: directory creation, existence checks, and
// archival of processed work lists. After a successful live run the code
// list is moved into the archive directory with a timestamp so the same
// batch is not accidentally replayed.
//
// =============================================================================

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnsureDir creates the directory (and parents) if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ArchiveFile moves src into archiveDir, prefixing the name with a
// timestamp so repeated archivals never collide. Falls back to copy+remove
// when src and archiveDir are on different filesystems.
func ArchiveFile(src, archiveDir string) (string, error) {
	if err := EnsureDir(archiveDir); err != nil {
		return "", err
	}

	name := filepath.Base(src)
	stamped := time.Now().Format("20060102_150405") + "_" + name
	dst := filepath.Join(archiveDir, stamped)

	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	} else if !isCrossDevice(err) {
		return "", fmt.Errorf("archive %s: %w", src, err)
	}

	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("archive %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("archive %s: remove original: %w", src, err)
	}
	return dst, nil
}

// isCrossDevice detects the EXDEV rename failure without importing syscall
// directly.
func isCrossDevice(err error) bool {
	return err != nil && strings.Contains(err.Error(), "cross-device")
}

// copyFile copies src to dst, preserving the file mode.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
