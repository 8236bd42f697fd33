//go:build !linux

package recstore

import "os"

// on darwin os.File.Sync uses F_FULLFSYNC which is what we want
const openFlagDataSync = os.O_SYNC

func fdatasync(f *os.File) error {
	return f.Sync()
}
