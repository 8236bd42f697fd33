package main

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/kjk/recstore/recstore"
)

// point is the record written by the torture command
type point struct {
	X uint32
	Y uint32
	Z uint32
}

const pointSize = 12

func (*point) Size() int { return pointSize }

func (p *point) MarshalRecord(d []byte) {
	binary.LittleEndian.PutUint32(d[0:], p.X)
	binary.LittleEndian.PutUint32(d[4:], p.Y)
	binary.LittleEndian.PutUint32(d[8:], p.Z)
}

func (p *point) UnmarshalRecord(d []byte) {
	p.X = binary.LittleEndian.Uint32(d[0:])
	p.Y = binary.LittleEndian.Uint32(d[4:])
	p.Z = binary.LittleEndian.Uint32(d[8:])
}

func (p point) String() string {
	return fmt.Sprintf("[0x%x, 0x%x, 0x%x]", p.X, p.Y, p.Z)
}

var syncerNames = []string{"file", "data", "write_through", "buffered"}

func syncerByName(name string) (recstore.Syncer, error) {
	switch strings.ToLower(name) {
	case "", "file":
		return recstore.SyncFile{}, nil
	case "data":
		return recstore.SyncData{}, nil
	case "write_through":
		return recstore.SyncWriteThrough{}, nil
	case "buffered":
		return &recstore.SyncBuffered{}, nil
	}
	return nil, fmt.Errorf("unknown syncer '%s', valid: %s", name, strings.Join(syncerNames, ", "))
}
