package repair

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/kjk/recstore/atomicfile"
	"github.com/kjk/recstore/log"
)

// Compression is picked based on extension of the archive
const (
	ExtZstd   = ".zst"
	ExtBrotli = ".br"
	ExtGzip   = ".gz"
)

func archiveExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// nopWriteCloser is for archives that are not compressed
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

func compressingWriter(w io.Writer, ext string) (io.WriteCloser, error) {
	switch ext {
	case ExtZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	case ExtBrotli:
		return brotli.NewWriterLevel(w, brotli.BestCompression), nil
	case ExtGzip:
		return gzip.NewWriterLevel(w, gzip.BestCompression)
	}
	return nopWriteCloser{w}, nil
}

// Archive copies srcPath to dstPath, compressed based on extension of
// dstPath (.zst, .br, .gz, anything else is copied as is).
// dstPath only appears once it's completely written.
func Archive(dstPath string, srcPath string) error {
	fSrc, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer fSrc.Close()

	fDst, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer fDst.Cancel()

	w, err := compressingWriter(fDst, archiveExt(dstPath))
	if err != nil {
		return err
	}
	n, err := io.Copy(w, fSrc)
	if err != nil {
		return fmt.Errorf("compress '%s': %w", srcPath, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("compress '%s': %w", srcPath, err)
	}
	if err = fDst.Commit(); err != nil {
		return err
	}
	log.Verbosef("repair: archived '%s' (%d bytes) as '%s'\n", srcPath, n, dstPath)
	return nil
}

// readerWrappedFile closes both the decompressor and the file
type readerWrappedFile struct {
	f     *os.File
	r     io.Reader
	close func()
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

func (rc *readerWrappedFile) Close() error {
	if rc.close != nil {
		rc.close()
	}
	return rc.f.Close()
}

// OpenArchive opens an archive created with Archive and
// returns uncompressed content
func OpenArchive(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch archiveExt(path) {
	case ExtZstd:
		r, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &readerWrappedFile{f: f, r: r, close: r.Close}, nil
	case ExtBrotli:
		return &readerWrappedFile{f: f, r: brotli.NewReader(f)}, nil
	case ExtGzip:
		r, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &readerWrappedFile{f: f, r: r, close: func() { r.Close() }}, nil
	}
	return f, nil
}

// Restore is the inverse of Archive: writes uncompressed content of
// archivePath to dstPath
func Restore(dstPath string, archivePath string) error {
	r, err := OpenArchive(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	fDst, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer fDst.Cancel()
	if _, err = io.Copy(fDst, r); err != nil {
		return fmt.Errorf("decompress '%s': %w", archivePath, err)
	}
	return fDst.Commit()
}
