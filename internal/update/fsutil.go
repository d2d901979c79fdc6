package update

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
)

// errSymlinkCopy means a tree holding a symlink had to be copied onto a
// filesystem that cannot create links.
var errSymlinkCopy = errors.New("cannot copy symlink on this filesystem")

// move renames src to dst, falling back to a copy when they sit on
// different devices. copied reports whether src still exists.
func move(fs afero.Fs, src, dst string) (copied bool, err error) {
	err = fs.Rename(src, dst)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return false, err
	}
	if err := copyTree(fs, src, dst); err != nil {
		_ = fs.RemoveAll(dst)
		return true, err
	}
	return true, nil
}

// copyTree copies a file or directory tree from src to dst.
func copyTree(fs afero.Fs, src, dst string) error {
	info, err := lstat(fs, src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return copyEntry(fs, src, dst, info)
	}

	return afero.Walk(fs, src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			return fs.MkdirAll(target, fi.Mode().Perm()|0o700)
		}
		return copyEntry(fs, path, target, fi)
	})
}

func copyEntry(fs afero.Fs, src, dst string, info os.FileInfo) error {
	if info.Mode()&os.ModeSymlink != 0 {
		reader, okR := fs.(afero.LinkReader)
		linker, okL := fs.(afero.Linker)
		if !okR || !okL {
			return fmt.Errorf("%w: %s", errSymlinkCopy, src)
		}
		target, err := reader.ReadlinkIfPossible(src)
		if err != nil {
			return err
		}
		return linker.SymlinkIfPossible(target, dst)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return copyFile(fs, src, dst, info.Mode().Perm())
}

func copyFile(fs afero.Fs, src, dst string, perm os.FileMode) (err error) {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

func lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fs.Stat(path)
}

func exists(fs afero.Fs, path string) (bool, error) {
	_, err := lstat(fs, path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
