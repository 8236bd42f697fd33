// Package repair implements what to do with a record file that
// recstore reported as corrupt: inspect it, truncate the partial record
// at the end or archive a copy before touching it.
//
// recstore never modifies existing bytes. These functions do, so the
// store using the file must be closed first.
package repair

import (
	"errors"
	"fmt"
	"os"

	"github.com/kjk/recstore/log"
	"github.com/kjk/recstore/recstore"
)

var ErrInvalidRecordSize = errors.New("record size must be > 0")

// Report describes a record file without opening it for writing
type Report struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	RecordSize  int    `json:"record_size"`
	RecordCount uint64 `json:"record_count"`
	// bytes past the last full record
	Remainder int64  `json:"remainder"`
	State     string `json:"state"`
}

func (r *Report) IsCorrupt() bool {
	return r.Remainder != 0
}

// Inspect calculates record count and load state the same way
// recstore.Open does
func Inspect(path string, recordSize int) (*Report, error) {
	if recordSize <= 0 {
		return nil, ErrInvalidRecordSize
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("'%s' is not a regular file", path)
	}
	size := st.Size()
	rs := int64(recordSize)
	res := &Report{
		Path:        path,
		Size:        size,
		RecordSize:  recordSize,
		RecordCount: uint64(size / rs),
		Remainder:   size % rs,
		State:       recstore.LoadOkay.String(),
	}
	if res.IsCorrupt() {
		res.State = recstore.LoadCorrupt.String()
	}
	return res, nil
}

// TruncateTail removes the partial record from the end of the file and
// returns the number of bytes removed (0 if there was nothing to remove).
func TruncateTail(path string, recordSize int) (int64, error) {
	if recordSize <= 0 {
		return 0, ErrInvalidRecordSize
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := st.Size()
	removed := size % int64(recordSize)
	if removed == 0 {
		return 0, nil
	}
	newSize := size - removed
	if err = f.Truncate(newSize); err != nil {
		return 0, fmt.Errorf("truncate '%s' to %d: %w", path, newSize, err)
	}
	if err = f.Sync(); err != nil {
		return 0, fmt.Errorf("sync '%s': %w", path, err)
	}
	if err = f.Close(); err != nil {
		return 0, err
	}
	log.Logf("repair: truncated '%s' from %d to %d bytes\n", path, size, newSize)
	log.Event("recstore_truncate", "path", path, "size", size, "removed", removed)
	return removed, nil
}
