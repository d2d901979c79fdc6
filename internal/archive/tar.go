package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
)

func (e *Extractor) extractTarGzip(archivePath, dest string) error {
	f, err := e.fs.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %w", ErrIO, archivePath, err)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: failed to read gzip header: %w", ErrCorrupt, err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !(errors.Is(err, tar.ErrInsecurePath) && hdr != nil) {
			return fmt.Errorf("%w: failed to read tar entry: %w", ErrCorrupt, err)
		}

		path, ok, err := target(dest, hdr.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := e.fs.MkdirAll(path, 0o755); err != nil {
				return fmt.Errorf("%w: failed to create directory %s: %w", ErrIO, hdr.Name, err)
			}
		case tar.TypeReg:
			if err := e.writeEntry(path, tr, hdr.FileInfo().Mode(), hdr.Name); err != nil {
				return err
			}
		default:
			// links, devices, fifos, pax globals
			continue
		}
	}
}
