//go:build linux

package recstore

import (
	"os"

	"golang.org/x/sys/unix"
)

const openFlagDataSync = unix.O_DSYNC

func fdatasync(f *os.File) error {
	for {
		err := unix.Fdatasync(int(f.Fd()))
		if err != unix.EINTR {
			return err
		}
	}
}
