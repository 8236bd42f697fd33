package recstore

// Record is the constraint for values stored in a Store.
// T is the value type, *T implements the encoding.
//
// Size must return the same value for every T (including the zero value)
// and must be > 0. MarshalRecord writes exactly Size() bytes to dst and
// UnmarshalRecord reads exactly Size() bytes from src.
type Record[T any] interface {
	*T
	Size() int
	MarshalRecord(dst []byte)
	UnmarshalRecord(src []byte)
}

// recordSize returns the size of the zero value of T
func recordSize[T any, P Record[T]]() int {
	var v T
	return P(&v).Size()
}
