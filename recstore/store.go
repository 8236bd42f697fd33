package recstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kjk/recstore/log"
)

var (
	// ErrClosed is returned by Write after Close
	ErrClosed = errors.New("store is closed")
	// ErrNotOpen is returned by Write if the file couldn't be opened
	// or its size couldn't be determined
	ErrNotOpen = errors.New("store is not open")
	// ErrCorrupt is returned by Write with Options.RefuseCorruptAppend if
	// the file had a partial record at the end when it was opened
	ErrCorrupt = errors.New("store was corrupt at load")
	// ErrMisaligned is returned by Write with Options.RefuseCorruptAppend
	// if the file has bytes past the last record, usually left by an
	// earlier failed Write
	ErrMisaligned = errors.New("file size doesn't match record count")
)

type Options struct {
	// makes writes durable, SyncFile{} if nil
	Syncer Syncer
	// notified about opens, writes, reads and closes
	Observers []Observer
	// permissions of a newly created file, 0644 if 0
	Perm os.FileMode
	// By default Write appends at the end of the file even if it was
	// corrupt at load or an earlier Write left a partial record.
	// If true, such writes fail with ErrCorrupt or ErrMisaligned
	// and the file isn't touched.
	RefuseCorruptAppend bool
}

// statFile is replaced in tests
var statFile = (*os.File).Stat

// Store is an append-only file of fixed-size records.
// It's safe for concurrent use but operations are serialized.
type Store[T any, P Record[T]] struct {
	path       string
	recordSize int
	syncer     Syncer
	observers  []Observer
	perm       os.FileMode
	// see Options.RefuseCorruptAppend
	refuseCorrupt bool

	// read without the lock by Status() and Closing()
	status      atomic.Int32
	recordCount atomic.Uint64
	// set once in Open
	loadState LoadState

	mu         sync.Mutex
	prevStatus Status
	file       *os.File
	err        error
}

// Open opens the file at path for reading and appending, creating it
// if it doesn't exist, and calculates the number of records in it.
// It never fails: check Status(), LoadState() and RecordCount() after.
func Open[T any, P Record[T]](path string, opts *Options) *Store[T, P] {
	s := &Store[T, P]{
		path:       path,
		recordSize: recordSize[T, P](),
		syncer:     SyncFile{},
		perm:       0644,
	}
	if opts != nil {
		if opts.Syncer != nil {
			s.syncer = opts.Syncer
		}
		if opts.Perm != 0 {
			s.perm = opts.Perm
		}
		s.observers = append(s.observers, opts.Observers...)
		s.refuseCorrupt = opts.RefuseCorruptAppend
	}
	s.setStatus(StatusReadyClosed)
	s.prevStatus = StatusReadyClosed
	s.openFile()
	return s
}

func (s *Store[T, P]) setStatus(st Status) {
	s.status.Store(int32(st))
}

// transition changes the status unless Close has started
func (s *Store[T, P]) transition(to Status) bool {
	for {
		cur := s.status.Load()
		if isClosing(Status(cur)) {
			return false
		}
		if s.status.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

func isClosing(st Status) bool {
	return st == StatusClosing || st == StatusClosed
}

// syncDir makes a newly created directory entry durable
func syncDir(dir string) {
	fdir, _ := os.Open(dir)
	if fdir != nil {
		// ignore errors as those are a nice have, not must have
		_ = fdir.Sync()
		_ = fdir.Close()
	}
}

func (s *Store[T, P]) openFile() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return
	}
	if s.recordSize <= 0 {
		s.openFailed(StatusErrorOpeningStream, fmt.Errorf("invalid record size %d", s.recordSize))
		return
	}
	if s.path == "" {
		s.openFailed(StatusErrorOpeningStream, fmt.Errorf("path is empty"))
		return
	}

	_, err := os.Lstat(s.path)
	created := os.IsNotExist(err)
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|s.syncer.OpenFlag(), s.perm)
	if err != nil {
		s.openFailed(StatusErrorOpeningStream, err)
		return
	}
	s.file = f
	if created {
		syncDir(filepath.Dir(s.path))
	}

	if err = s.calcRecordCount(); err != nil {
		s.openFailed(StatusUnableToCalculateRecords, err)
		return
	}
	s.setStatus(StatusReadyOpen)
}

func (s *Store[T, P]) openFailed(st Status, err error) {
	s.err = err
	s.setStatus(st)
	// the instance is unusable so don't hold the file until Close
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	log.Logf("recstore: failed to open '%s': %s (%s)\n", s.path, err, st)
}

// calcRecordCount derives record count and load state from file size.
// A size that is not a multiple of record size means an earlier Write
// didn't finish. We don't repair it, we only hide the partial record.
func (s *Store[T, P]) calcRecordCount() error {
	st, err := statFile(s.file)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	size := st.Size()
	recSize := int64(s.recordSize)
	count := uint64(size / recSize)
	remainder := size % recSize
	s.recordCount.Store(count)
	if remainder == 0 {
		s.loadState = LoadOkay
	} else {
		s.loadState = LoadCorrupt
		log.Logf("recstore: there are %d bytes in '%s' which is %d full records and %d bytes remaining\n", size, s.path, count, remainder)
		log.Event("recstore_corrupt", "path", s.path, "size", size, "records", count, "remainder", remainder)
	}
	for _, o := range s.observers {
		o.Opened(s.path, count, s.loadState, remainder)
	}
	return nil
}

// Write appends r to the file. It returns after the record is durably
// stored. On error the record count doesn't change and the file might
// have a partial record at the end (it will be reported as corrupt
// when opened again).
// A successful Write sets status to StatusReadyOpen, replacing an error
// status left by an earlier failed Write. That error stays in Err().
// If the file was corrupt at load the record is appended after the
// partial record, see Options.RefuseCorruptAppend.
func (s *Store[T, P]) Write(r *T) error {
	if s.Closing() {
		return ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if s.Closing() {
			return ErrClosed
		}
		return ErrNotOpen
	}
	switch s.loadState {
	case LoadCorrupt:
		if s.refuseCorrupt {
			s.transition(StatusPossibleCorruption)
			return ErrCorrupt
		}
	case LoadUnknown:
		return ErrNotOpen
	}
	if !s.transition(StatusWriting) {
		return ErrClosed
	}

	timeStart := time.Now()
	err := s.write(r)
	dur := time.Since(timeStart)
	for _, o := range s.observers {
		o.Wrote(s.path, dur, err)
	}
	return err
}

func (s *Store[T, P]) write(r *T) error {
	count := s.recordCount.Load()
	off, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return s.writeFailed(StatusErrorSeeking, fmt.Errorf("seek to end: %w", err))
	}
	if expected := int64(count) * int64(s.recordSize); s.refuseCorrupt && off != expected {
		err = fmt.Errorf("%w: size is %d, expected %d (%d records)", ErrMisaligned, off, expected, count)
		return s.writeFailed(StatusPossibleCorruption, err)
	}

	d := make([]byte, s.recordSize)
	P(r).MarshalRecord(d)
	n, err := s.syncer.Write(s.file, d)
	if err == nil && n != len(d) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return s.writeFailed(StatusErrorWriting, fmt.Errorf("write record %d: %w", count, err))
	}
	if err = s.syncer.Sync(s.file); err != nil {
		return s.writeFailed(StatusErrorSyncing, fmt.Errorf("sync record %d: %w", count, err))
	}

	s.recordCount.Add(1)
	s.transition(StatusReadyOpen)
	return nil
}

func (s *Store[T, P]) writeFailed(st Status, err error) error {
	s.err = err
	s.transition(st)
	log.Logf("recstore: Write() to '%s' failed with '%s'\n", s.path, err)
	return err
}

// ReadRecord reads the record at offset (0-based index).
// The returned record is only valid if status is ReadOkay and is owned
// by the caller.
// The bound is the record count as of open or the last Write.
func (s *Store[T, P]) ReadRecord(offset uint64) (*T, ReadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRecord(offset)
}

// LoadLastRecord reads the most recently written record.
// Check RecordCount() > 0 first, on an empty store this returns
// ReadOffsetOutOfRange.
func (s *Store[T, P]) LoadLastRecord() (*T, ReadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRecord(s.recordCount.Load() - 1)
}

func (s *Store[T, P]) readRecord(offset uint64) (*T, ReadStatus) {
	rec, res := s.readRecordNoNotify(offset)
	for _, o := range s.observers {
		o.Read(s.path, res)
	}
	return rec, res
}

func (s *Store[T, P]) readRecordNoNotify(offset uint64) (*T, ReadStatus) {
	if s.file == nil || s.Closing() {
		return nil, ReadStreamNotOpen
	}
	if offset >= s.recordCount.Load() {
		return nil, ReadOffsetOutOfRange
	}

	s.prevStatus = s.Status()
	if !s.transition(StatusReading) {
		return nil, ReadStreamNotOpen
	}
	defer s.transition(s.prevStatus)

	rec, d, ok := s.alloc()
	if !ok {
		return nil, ReadBadMemoryAlloc
	}
	pos := int64(offset) * int64(s.recordSize)
	// os.File.ReadAt returns an error if it reads less than len(d)
	if _, err := s.file.ReadAt(d, pos); err != nil {
		log.Verbosef("recstore: ReadAt(%d) of '%s' failed with '%s'\n", pos, s.path, err)
		return nil, ReadStreamReadError
	}
	P(rec).UnmarshalRecord(d)
	return rec, ReadOkay
}

func (s *Store[T, P]) alloc() (rec *T, d []byte, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			rec, d, ok = nil, nil, false
		}
	}()
	return new(T), make([]byte, s.recordSize), true
}

// Close closes the file. Can be called multiple times.
// Once closed, the store can't be re-opened, use Open() again.
func (s *Store[T, P]) Close() error {
	if s.Status() == StatusClosed {
		return nil
	}
	s.setStatus(StatusClosing)

	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.file != nil {
		err = s.file.Close()
		s.file = nil
		for _, o := range s.observers {
			o.Closed(s.path)
		}
	}
	s.setStatus(StatusClosed)
	return err
}

func (s *Store[T, P]) Path() string {
	return s.path
}

func (s *Store[T, P]) RecordCount() uint64 {
	return s.recordCount.Load()
}

func (s *Store[T, P]) RecordSize() int {
	return s.recordSize
}

// Status is the current state. Reads restore the status from before the
// read, Write sets StatusReadyOpen on success.
func (s *Store[T, P]) Status() Status {
	return Status(s.status.Load())
}

// Closing returns true if Close() has been called
func (s *Store[T, P]) Closing() bool {
	return isClosing(s.Status())
}

func (s *Store[T, P]) LoadState() LoadState {
	return s.loadState
}

func (s *Store[T, P]) WasCorruptAtLoad() bool {
	return s.loadState == LoadCorrupt
}

func (s *Store[T, P]) WasOkayAtLoad() bool {
	return s.loadState == LoadOkay
}

// Err returns the error behind the last failed open or write
func (s *Store[T, P]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
