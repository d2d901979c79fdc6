package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
)

func (e *Extractor) extractZip(archivePath, dest string) error {
	f, err := e.fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %w", ErrIO, archivePath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: failed to stat %s: %w", ErrIO, archivePath, err)
	}

	zr, err := zip.NewReader(f, info.Size())
	// Insecure names are sanitized below; the reader is still usable.
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return fmt.Errorf("%w: failed to read central directory: %w", ErrCorrupt, err)
	}

	for _, zf := range zr.File {
		path, ok, err := target(dest, zf.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := e.fs.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("%w: failed to create directory %s: %w", ErrIO, zf.Name, err)
			}
		case mode&(os.ModeSymlink|os.ModeDevice|os.ModeNamedPipe|os.ModeSocket|os.ModeCharDevice) != 0:
			continue
		default:
			if err := e.extractZipFile(zf, path); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Extractor) extractZipFile(zf *zip.File, path string) error {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open entry %s: %w", ErrCorrupt, zf.Name, err)
	}
	defer func() { _ = rc.Close() }()

	return e.writeEntry(path, rc, zf.Mode(), zf.Name)
}
