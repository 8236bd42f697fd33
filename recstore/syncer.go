package recstore

import (
	"bufio"
	"fmt"
	"os"
)

// Syncer writes a record to the end of a file and makes it durable.
// Write may buffer. Sync must not return until every buffering layer
// (including the OS page cache) reached stable storage.
// Store calls both with its lock held.
type Syncer interface {
	// OpenFlag is or-ed into the flags used to open the file
	OpenFlag() int
	Write(f *os.File, d []byte) (int, error)
	Sync(f *os.File) error
}

var (
	_ Syncer = SyncFile{}
	_ Syncer = SyncData{}
	_ Syncer = SyncWriteThrough{}
	_ Syncer = &SyncBuffered{}
)

// SyncFile writes directly to the file and calls fsync.
// It's the default Syncer.
type SyncFile struct{}

func (SyncFile) OpenFlag() int { return 0 }

func (SyncFile) Write(f *os.File, d []byte) (int, error) {
	return f.Write(d)
}

func (SyncFile) Sync(f *os.File) error {
	return f.Sync()
}

// SyncData writes directly to the file and calls fdatasync where
// available, which skips flushing metadata not needed to read the data back.
type SyncData struct{}

func (SyncData) OpenFlag() int { return 0 }

func (SyncData) Write(f *os.File, d []byte) (int, error) {
	return f.Write(d)
}

func (SyncData) Sync(f *os.File) error {
	return fdatasync(f)
}

// SyncWriteThrough opens the file with O_DSYNC so every write is durable
// by the time it returns. Sync is a no-op.
type SyncWriteThrough struct{}

func (SyncWriteThrough) OpenFlag() int { return openFlagDataSync }

func (SyncWriteThrough) Write(f *os.File, d []byte) (int, error) {
	return f.Write(d)
}

func (SyncWriteThrough) Sync(f *os.File) error {
	return nil
}

// SyncBuffered writes through a bufio.Writer and on Sync flushes it
// and then calls fsync.
// Holds per-file state so it can't be shared between stores.
type SyncBuffered struct {
	// Size of the buffer, 4 kB if 0
	Size int

	w *bufio.Writer
	f *os.File
}

func (s *SyncBuffered) writer(f *os.File) *bufio.Writer {
	if s.w == nil {
		size := s.Size
		if size <= 0 {
			size = 4096
		}
		s.w = bufio.NewWriterSize(f, size)
		s.f = f
	}
	if s.f != f {
		s.w.Reset(f)
		s.f = f
	}
	return s.w
}

func (s *SyncBuffered) OpenFlag() int { return 0 }

func (s *SyncBuffered) Write(f *os.File, d []byte) (int, error) {
	w := s.writer(f)
	n, err := w.Write(d)
	if err != nil {
		// bufio.Writer errors are sticky, drop buffered data
		w.Reset(f)
	}
	return n, err
}

func (s *SyncBuffered) Sync(f *os.File) error {
	w := s.writer(f)
	if err := w.Flush(); err != nil {
		w.Reset(f)
		return fmt.Errorf("bufio.Flush: %w", err)
	}
	return f.Sync()
}
