package recstore

import "strconv"

// Status is the position of a Store in its state machine
type Status int32

const (
	StatusUnknown Status = iota
	StatusReadyClosed
	StatusReadyOpen
	StatusWriting
	StatusReading
	StatusClosing
	StatusClosed
	StatusErrorOpeningStream
	StatusErrorWriting
	StatusErrorSeeking
	StatusErrorSyncing
	// Write refused with Options.RefuseCorruptAppend
	StatusPossibleCorruption
	StatusUnableToCalculateRecords
)

var statusNames = []string{
	"unknown",
	"ready_closed",
	"ready_open",
	"writing",
	"reading",
	"closing",
	"closed",
	"error_opening_stream",
	"error_writing",
	"error_seeking",
	"error_syncing",
	"possible_corruption",
	"unable_to_calculate_records",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// IsError returns true for statuses that record a failure
func (s Status) IsError() bool {
	switch s {
	case StatusErrorOpeningStream, StatusErrorWriting, StatusErrorSeeking,
		StatusErrorSyncing, StatusPossibleCorruption, StatusUnableToCalculateRecords:
		return true
	}
	return false
}

// LoadState is the corruption classification computed once at open time
type LoadState uint8

const (
	LoadUnknown LoadState = 0
	LoadCorrupt LoadState = 254
	LoadOkay    LoadState = 255
)

func (s LoadState) String() string {
	switch s {
	case LoadCorrupt:
		return "corrupt"
	case LoadOkay:
		return "okay"
	}
	return "unknown"
}

// ReadStatus is the result code of ReadRecord
type ReadStatus uint8

const (
	ReadUnknown ReadStatus = iota
	ReadOffsetOutOfRange
	ReadBadMemoryAlloc
	ReadStreamNotOpen
	ReadStreamReadError
	ReadOkay ReadStatus = 255
)

func (s ReadStatus) String() string {
	switch s {
	case ReadOffsetOutOfRange:
		return "offset_out_of_range"
	case ReadBadMemoryAlloc:
		return "bad_memory_alloc"
	case ReadStreamNotOpen:
		return "stream_not_open"
	case ReadStreamReadError:
		return "stream_read_error"
	case ReadOkay:
		return "okay"
	}
	return "unknown"
}
