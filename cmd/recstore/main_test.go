package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert"

	"github.com/kjk/recstore/recstore"
	"github.com/kjk/recstore/repair"
)

func appendBytes(t *testing.T, path string, d []byte) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	assert.NoError(t, err)
	_, err = f.Write(d)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
}

func runTorture(t *testing.T, path string, n int, syncer string) (*tortureResult, string, error) {
	var out bytes.Buffer
	c := &tortureConfig{
		Path:       path,
		Iterations: n,
		Syncer:     syncer,
		Rand:       rand.New(rand.NewSource(int64(n))),
		Out:        &out,
	}
	res, err := torture(c)
	return res, out.String(), err
}

func TestTorture(t *testing.T) {
	for _, name := range syncerNames {
		path := filepath.Join(t.TempDir(), "torture.bin")
		res, _, err := runTorture(t, path, 50, name)
		assert.NoError(t, err, "syncer: %s", name)
		assert.Equal(t, 50, res.Iterations)
		assert.Equal(t, 50, res.Written)

		// continues on the existing file
		res, _, err = runTorture(t, path, 10, name)
		assert.NoError(t, err)
		assert.Equal(t, 10, res.Written)

		r, err := repair.Inspect(path, pointSize)
		assert.NoError(t, err)
		assert.Equal(t, uint64(60), r.RecordCount)
		assert.False(t, r.IsCorrupt())
	}
}

func TestTortureStopsOnCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torture.bin")
	_, _, err := runTorture(t, path, 3, "file")
	assert.NoError(t, err)
	appendBytes(t, path, []byte{1, 2, 3, 4, 5})

	res, out, err := runTorture(t, path, 3, "file")
	assert.True(t, errors.Is(err, errCorruptAtLoad))
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 0, res.Written)
	assert.True(t, strings.Contains(out, "Corrupt At Load"))
}

func TestTortureBadSyncer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torture.bin")
	_, _, err := runTorture(t, path, 1, "nope")
	assert.Error(t, err)
}

func TestTortureDetectsMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torture.bin")
	c := &tortureConfig{
		Path:       path,
		Iterations: 2,
		Rand:       rand.New(rand.NewSource(1)),
		Out:        &bytes.Buffer{},
		// overwrites the last record after every write
		Observers: []recstore.Observer{&clobberObserver{t: t}},
	}
	res, err := torture(c)
	assert.True(t, errors.Is(err, errMismatch))
	assert.Equal(t, 2, res.Iterations)
	assert.NotNil(t, res.Expected)
	assert.NotNil(t, res.Loaded)
	assert.Equal(t, point{}, *res.Loaded)
}

type clobberObserver struct {
	recstore.NopObserver
	t *testing.T
}

func (o *clobberObserver) Wrote(path string, _ time.Duration, err error) {
	if err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	assert.NoError(o.t, err)
	st, err := f.Stat()
	assert.NoError(o.t, err)
	_, err = f.WriteAt(make([]byte, pointSize), st.Size()-pointSize)
	assert.NoError(o.t, err)
	assert.NoError(o.t, f.Close())
}

func TestInspectAndTruncate(t *testing.T) {
	dir := t.TempDir()
	okPath := filepath.Join(dir, "ok.bin")
	badPath := filepath.Join(dir, "bad.bin")
	appendBytes(t, okPath, make([]byte, pointSize*3))
	appendBytes(t, badPath, make([]byte, pointSize*2+7))

	var out bytes.Buffer
	nCorrupt, err := inspect(&out, []string{okPath, badPath}, pointSize, false)
	assert.NoError(t, err)
	assert.Equal(t, 1, nCorrupt)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, 2, len(lines))
	assert.False(t, strings.Contains(lines[0], "CORRUPT"))
	assert.True(t, strings.Contains(lines[1], "CORRUPT: 7 bytes remaining"))

	out.Reset()
	_, err = inspect(&out, []string{okPath, badPath}, pointSize, true)
	assert.NoError(t, err)
	var reports []repair.Report
	assert.NoError(t, json.Unmarshal(out.Bytes(), &reports))
	assert.Equal(t, 2, len(reports))
	assert.Equal(t, uint64(2), reports[1].RecordCount)
	assert.Equal(t, "corrupt", reports[1].State)

	_, err = inspect(&out, []string{filepath.Join(dir, "missing.bin")}, pointSize, false)
	assert.Error(t, err)

	out.Reset()
	archivePath := filepath.Join(dir, "bad.bin.zst")
	assert.NoError(t, truncate(&out, badPath, pointSize, archivePath))
	assert.True(t, strings.Contains(out.String(), "removed 7 bytes, 2 records left"))
	assert.True(t, fileExists(archivePath))

	r, err := repair.Inspect(badPath, pointSize)
	assert.NoError(t, err)
	assert.False(t, r.IsCorrupt())

	out.Reset()
	assert.NoError(t, truncate(&out, okPath, pointSize, ""))
	assert.True(t, strings.Contains(out.String(), "nothing to do"))
}

func TestSyncerByName(t *testing.T) {
	for _, name := range syncerNames {
		s, err := syncerByName(name)
		assert.NoError(t, err)
		assert.NotNil(t, s)
	}
	s, err := syncerByName("")
	assert.NoError(t, err)
	assert.Equal(t, recstore.SyncFile{}, s)
	_, err = syncerByName("fsync")
	assert.Error(t, err)
}

func TestPointString(t *testing.T) {
	p := point{X: 1, Y: 0xff, Z: 0x10}
	assert.Equal(t, "[0x1, 0xff, 0x10]", p.String())
}
