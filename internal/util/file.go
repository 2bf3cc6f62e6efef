package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// TempPrefix marks in-flight files. Anything starting with it is never a
// finished page, archive or cache file.
const TempPrefix = ".part-"

// CreateTemp creates a hidden temporary file next to the final name so the
// later rename stays on one filesystem.
func CreateTemp(dir, finalName string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return os.CreateTemp(dir, TempPrefix+finalName+"-*")
}

// CommitTemp syncs and closes f, then renames it to dst. On any failure the
// temporary file is removed and dst is left untouched.
func CommitTemp(f *os.File, dst string) (err error) {
	tmpName := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = f.Chmod(0644); err != nil && runtime.GOOS != "windows" {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmpName, dst); err != nil {
		return err
	}

	_ = syncDir(filepath.Dir(dst))
	return nil
}

// AbortTemp discards an uncommitted temporary file.
func AbortTemp(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}

// WriteFileAtomic replaces path with data via temp file + rename.
func WriteFileAtomic(path string, data []byte) error {
	f, err := CreateTemp(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		AbortTemp(f)
		return err
	}

	return CommitTemp(f, path)
}

// CopyToFileAtomic streams src into path via temp file + rename.
func CopyToFileAtomic(path string, src io.Reader, progress func(done int64)) (int64, error) {
	f, err := CreateTemp(filepath.Dir(path), filepath.Base(path))
	if err != nil {
		return 0, err
	}

	n, err := copyWithProgress(f, src, progress)
	if err != nil {
		AbortTemp(f)
		return n, err
	}

	return n, CommitTemp(f, path)
}

// RemoveStaleTemps deletes temp files left behind by an interrupted run.
func RemoveStaleTemps(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed++
	}

	return removed, nil
}

// NonEmptyFile reports whether path is a regular file with size > 0.
func NonEmptyFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer func() {
		_ = d.Close()
	}()

	return d.Sync()
}

func copyWithProgress(dst io.Writer, src io.Reader, progress func(done int64)) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		nr, er := src.Read(buf)

		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])

			if nw > 0 {
				total += int64(nw)
				if progress != nil {
					progress(total)
				}
			}

			if ew != nil {
				return total, ew
			}

			if nr != nw {
				return total, io.ErrShortWrite
			}
		}

		if er != nil {
			if er == io.EOF {
				break
			}
			return total, er
		}
	}

	return total, nil
}
