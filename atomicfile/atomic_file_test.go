package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert"
)

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func TestCommit(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "archive.bin")
	f, err := New(dst)
	assert.NoError(t, err)
	assert.True(t, fileExists(f.TempPath()))
	assert.False(t, fileExists(dst))

	n, err := f.Write([]byte("foo"))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	// nothing at destination until Commit()
	assert.False(t, fileExists(dst))

	assert.NoError(t, f.Commit())
	assert.False(t, fileExists(f.TempPath()))
	d, err := os.ReadFile(dst)
	assert.NoError(t, err)
	assert.Equal(t, "foo", string(d))
	st, err := os.Stat(dst)
	assert.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), st.Mode().Perm())

	// Commit() twice is a no-op, Cancel() after Commit() too
	assert.NoError(t, f.Commit())
	f.Cancel()
	assert.True(t, fileExists(dst))
}

func TestCommitOverwrites(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "archive.bin")
	assert.NoError(t, os.WriteFile(dst, []byte("old content"), 0644))
	assert.NoError(t, WriteFile(dst, []byte("new")))
	d, err := os.ReadFile(dst)
	assert.NoError(t, err)
	assert.Equal(t, "new", string(d))
}

func TestCancel(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "archive.bin")
	assert.NoError(t, os.WriteFile(dst, []byte("old"), 0644))

	f, err := New(dst)
	assert.NoError(t, err)
	_, err = f.Write([]byte("partial"))
	assert.NoError(t, err)
	f.Cancel()
	assert.False(t, fileExists(f.TempPath()))

	_, err = f.Write([]byte("more"))
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, errors.Is(f.Commit(), ErrCancelled))

	// destination is untouched
	d, err := os.ReadFile(dst)
	assert.NoError(t, err)
	assert.Equal(t, "old", string(d))
}

func cancelOnPanic(f *File) {
	defer func() {
		_ = recover()
	}()
	defer f.Cancel()
	_, _ = f.Write([]byte("foo"))
	panic("simulating a crash")
}

func TestCancelOnPanic(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "archive.bin")
	f, err := New(dst)
	assert.NoError(t, err)
	cancelOnPanic(f)
	assert.False(t, fileExists(f.TempPath()))
	assert.False(t, fileExists(dst))
}

func TestNewErrors(t *testing.T) {
	// directory must exist
	f, err := New(filepath.Join(t.TempDir(), "foo", "bar.bin"))
	assert.Error(t, err)
	assert.Nil(t, f)

	_, err = New(t.TempDir() + string(filepath.Separator))
	assert.Error(t, err)
}
