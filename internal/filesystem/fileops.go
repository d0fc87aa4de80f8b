package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"photoshelf/internal/logging"
)

// timed reports one operation to the observer under the path's volume label.
func timed(op, path string, fn func() error) error {
	start := time.Now()
	err := fn()
	observe().ObserveOperation(defaultResolver.Resolve(path), op, time.Since(start).Seconds(), err)
	return err
}

// CreateTemp creates a hidden temporary file next to finalPath so that a
// later Publish is a same-directory rename.
func CreateTemp(finalPath string) (*os.File, error) {
	dir := filepath.Dir(finalPath)
	f, err := os.CreateTemp(dir, "."+filepath.Base(finalPath)+".tmp-*")
	if err != nil {
		return nil, err
	}
	// CreateTemp uses 0600; published files are world readable.
	if err := f.Chmod(0o644); err != nil {
		Discard(f)
		return nil, err
	}
	return f, nil
}

// Publish syncs and closes tmp, then renames it onto finalPath. On failure the
// temporary file is removed.
func Publish(tmp *os.File, finalPath string) error {
	tmpName := tmp.Name()
	err := timed("write", finalPath, func() error {
		if err := tmp.Sync(); err != nil {
			_ = tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		return os.Rename(tmpName, finalPath)
	})
	if err != nil {
		if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warn("failed to remove temp file %s: %v", tmpName, rmErr)
		}
		return fmt.Errorf("publish %s: %w", finalPath, err)
	}
	return nil
}

// Discard closes and removes an unpublished temporary file.
func Discard(tmp *os.File) {
	_ = tmp.Close()
	if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove temp file %s: %v", tmp.Name(), err)
	}
}

// WriteAtomic streams write's output into a temporary file and publishes it
// at path only if write succeeds.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := CreateTemp(path)
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	if err := write(tmp); err != nil {
		Discard(tmp)
		return err
	}
	return Publish(tmp, path)
}

// CopyFile copies src to dst through a temporary file.
func CopyFile(src, dst string) error {
	in, err := OpenWithRetry(src, DefaultRetryConfig())
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	err = WriteAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// MoveFile renames src to dst, falling back to copy and remove when the two
// paths live on different devices.
func MoveFile(src, dst string) error {
	err := timed("rename", dst, func() error { return os.Rename(src, dst) })
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return fmt.Errorf("move %s to %s: %w", src, dst, err)
	}

	logging.Debug("Cross-device move for %s, copying instead", src)
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		logging.Warn("moved %s but could not remove source: %v", src, err)
	}
	return nil
}

// RemoveIfExists deletes path, treating a missing file as success. It reports
// whether a file was removed.
func RemoveIfExists(path string) (bool, error) {
	err := timed("remove", path, func() error { return os.Remove(path) })
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// CheckWritable verifies dir exists, is a directory and accepts new files.
func CheckWritable(dir string) error {
	info, err := StatWithRetry(dir, DefaultRetryConfig())
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return err
	}
	testFile := f.Name()
	_, err = f.WriteString("test")
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if rerr := os.Remove(testFile); rerr != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, rerr)
	}
	return err
}
