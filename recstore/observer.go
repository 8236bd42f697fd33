package recstore

import "time"

// Observer is notified about store operations.
// Methods are called with the store's lock held so they should be fast
// and must not call back into the store.
type Observer interface {
	Opened(path string, recordCount uint64, state LoadState, remainder int64)
	Wrote(path string, dur time.Duration, err error)
	Read(path string, status ReadStatus)
	Closed(path string)
}

// NopObserver can be embedded to implement only some Observer methods
type NopObserver struct{}

func (NopObserver) Opened(string, uint64, LoadState, int64) {}
func (NopObserver) Wrote(string, time.Duration, error)     {}
func (NopObserver) Read(string, ReadStatus)                 {}
func (NopObserver) Closed(string)                           {}
