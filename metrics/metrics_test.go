package metrics

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kjk/recstore/recstore"
)

type counter struct {
	N uint32
}

func (*counter) Size() int { return 4 }

func (c *counter) MarshalRecord(d []byte) {
	binary.LittleEndian.PutUint32(d, c.N)
}

func (c *counter) UnmarshalRecord(d []byte) {
	c.N = binary.LittleEndian.Uint32(d)
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test")
	assert.NoError(t, c.Register(reg))
	// registering the same metrics twice fails
	assert.Error(t, c.Register(reg))

	c2 := NewCollector("other")
	assert.NoError(t, c2.Register(reg))
}

func TestObserverCalls(t *testing.T) {
	c := NewCollector("test")
	c.Opened("a.bin", 3, recstore.LoadOkay, 0)
	c.Opened("b.bin", 3, recstore.LoadCorrupt, 2)
	c.Wrote("a.bin", time.Millisecond, nil)
	c.Wrote("a.bin", time.Millisecond, nil)
	c.Wrote("b.bin", 0, errors.New("failed"))
	c.Read("a.bin", recstore.ReadOkay)
	c.Read("a.bin", recstore.ReadOffsetOutOfRange)
	c.Read("a.bin", recstore.ReadOkay)
	c.Closed("a.bin")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Opens.WithLabelValues("okay")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Opens.WithLabelValues("corrupt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.OpenStores))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Writes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.WriteErrors))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Reads.WithLabelValues("okay")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Reads.WithLabelValues("offset_out_of_range")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Closes))
	assert.Equal(t, 1, testutil.CollectAndCount(c.WriteLatency))
}

func TestWithStore(t *testing.T) {
	c := NewCollector("test")
	reg := prometheus.NewRegistry()
	assert.NoError(t, c.Register(reg))

	path := filepath.Join(t.TempDir(), "counters.bin")
	opts := &recstore.Options{Observers: []recstore.Observer{c}}
	s := recstore.Open[counter](path, opts)
	for i := 0; i < 5; i++ {
		assert.NoError(t, s.Write(&counter{N: uint32(i)}))
	}
	_, st := s.LoadLastRecord()
	assert.Equal(t, recstore.ReadOkay, st)
	_, st = s.ReadRecord(5)
	assert.Equal(t, recstore.ReadOffsetOutOfRange, st)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	// partial record at the end
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	assert.NoError(t, err)
	_, err = f.Write([]byte{1})
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	s = recstore.Open[counter](path, opts)
	assert.NoError(t, s.Write(&counter{N: 1}))
	assert.NoError(t, s.Close())

	// refused writes don't reach the file
	refuse := &recstore.Options{Observers: []recstore.Observer{c}, RefuseCorruptAppend: true}
	s = recstore.Open[counter](path, refuse)
	assert.Error(t, s.Write(&counter{N: 2}))
	assert.NoError(t, s.Close())

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Opens.WithLabelValues("okay")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Opens.WithLabelValues("corrupt")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.OpenStores))
	assert.Equal(t, 6.0, testutil.ToFloat64(c.Writes))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.WriteErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Reads.WithLabelValues("okay")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Reads.WithLabelValues("offset_out_of_range")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Closes))

	n, err := testutil.GatherAndCount(reg, "test_recstore_writes_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
