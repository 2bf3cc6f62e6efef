// Package archive packs a finished issue directory into a .cbz file.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/brogergvhs/comicsnag/internal/comics"
	"github.com/brogergvhs/comicsnag/internal/util"
)

// removeAll is swapped in tests to simulate a directory that cannot be removed.
var removeAll = os.RemoveAll

type Result struct {
	Path  string
	Pages int
	// Warning is set when the archive was written but the working
	// directory could not be removed.
	Warning error
}

// Archive writes <dir>.cbz from the page files in dir and removes dir. The
// archive only appears under its final name once it is complete.
func Archive(dir string) (Result, error) {
	dir = filepath.Clean(dir)

	files, err := pageFiles(dir)
	if err != nil {
		return Result{}, err
	}

	output := dir + ".cbz"
	if err := writeCBZ(files, output); err != nil {
		return Result{}, err
	}

	res := Result{Path: output, Pages: len(files)}
	if err := removeAll(dir); err != nil {
		res.Warning = fmt.Errorf("archive written but %s kept: %w", dir, err)
	}

	return res, nil
}

func pageFiles(dir string) ([]string, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", comics.ErrInvalidDirectory, dir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", comics.ErrInvalidDirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", comics.ErrInvalidDirectory, dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s has no pages", comics.ErrInvalidDirectory, dir)
	}

	sort.Slice(files, func(i, j int) bool {
		return pageLess(filepath.Base(files[i]), filepath.Base(files[j]))
	})
	return files, nil
}

// pageLess orders page files by their leading number, so 100.jpg follows
// 99.jpg instead of 10.jpg. Names without a number sort after numbered ones.
func pageLess(a, b string) bool {
	na, oka := leadingNumber(a)
	nb, okb := leadingNumber(b)

	switch {
	case oka && okb && na != nb:
		return na < nb
	case oka != okb:
		return oka
	default:
		return a < b
	}
}

func leadingNumber(name string) (int, bool) {
	end := 0
	for end < len(name) && name[end] >= '0' && name[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.Atoi(name[:end])
	return n, err == nil
}

func writeCBZ(files []string, output string) error {
	out, err := util.CreateTemp(filepath.Dir(output), filepath.Base(output))
	if err != nil {
		return fmt.Errorf("cbz: %w", err)
	}

	z := zip.NewWriter(out)
	for _, file := range files {
		if err := addFileToZip(z, file); err != nil {
			_ = z.Close()
			util.AbortTemp(out)
			return fmt.Errorf("cbz: %s: %w", filepath.Base(file), err)
		}
	}

	if err := z.Close(); err != nil {
		util.AbortTemp(out)
		return fmt.Errorf("cbz: %w", err)
	}

	return util.CommitTemp(out, output)
}

func addFileToZip(z *zip.Writer, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = filepath.Base(file)
	header.Method = zip.Deflate

	w, err := z.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}

// Entries lists the entry names of a .cbz in stored order.
func Entries(cbzPath string) ([]string, error) {
	r, err := zip.OpenReader(cbzPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("open %s: %w", cbzPath, err)
	}
	defer func() {
		_ = r.Close()
	}()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}

	return names, nil
}
