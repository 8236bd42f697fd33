// Package recstore provides a durable, append-only file of fixed-size
// records.
//
// # File Format
//
// The file is a flat array of records, without header, magic number,
// checksum or footer. Record i starts at byte i * RecordSize().
//
// # Record Type
//
// Records are values of type T where *T implements [Record]:
//
//	type Point struct{ X, Y, Z uint32 }
//
//	func (*Point) Size() int { return 12 }
//	func (p *Point) MarshalRecord(d []byte) {
//	    binary.LittleEndian.PutUint32(d[0:], p.X)
//	    binary.LittleEndian.PutUint32(d[4:], p.Y)
//	    binary.LittleEndian.PutUint32(d[8:], p.Z)
//	}
//	func (p *Point) UnmarshalRecord(d []byte) {
//	    p.X = binary.LittleEndian.Uint32(d[0:])
//	    p.Y = binary.LittleEndian.Uint32(d[4:])
//	    p.Z = binary.LittleEndian.Uint32(d[8:])
//	}
//
// # Basic Usage
//
//	s := recstore.Open[Point]("points.bin", nil)
//	if s.Status() != recstore.StatusReadyOpen {
//	    log.Fatalf("open failed: %s", s.Err())
//	}
//	if s.WasCorruptAtLoad() {
//	    // the last Write() didn't finish, see package repair
//	}
//	defer s.Close()
//
//	err := s.Write(&Point{X: 1, Y: 2, Z: 3})
//	if s.RecordCount() > 0 {
//	    p, status := s.LoadLastRecord()
//	    // ...
//	}
//
// # Durability
//
// Write() returns after the record reached stable storage. How it gets
// there is decided by a [Syncer] set in [Options]. A crash in the middle
// of Write() leaves a partial record at the end of the file. Open()
// reports it as [LoadCorrupt] and hides the partial record but doesn't
// remove it. New records are appended after it unless
// [Options] RefuseCorruptAppend is set, in which case Write fails.
//
// # Thread Safety
//
// The Store is safe for concurrent use. All operations are serialized
// by a mutex. There is no locking between processes.
package recstore
