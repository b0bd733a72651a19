// Package wire frames encoded records before they reach a byte provider.
//
// Frame:
//
//	magic(4) | ver(1) | codec(1) | epoch(u64 be) | klen(u16 be) | key(klen) | vlen(u32 be) | payload(vlen)
//
// The record key travels inside the frame so a reader can detect a storage
// key collision (long keys are hashed) and the epoch lets a namespace be
// invalidated in O(1). Trailing bytes are rejected.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 1 + 8 + 2
)

var (
	ErrCorrupt    = errors.New("normcache: corrupt entry")
	ErrKeyTooLong = errors.New("normcache: record key longer than 65535 bytes")
	ErrEmptyKey   = errors.New("normcache: empty record key")
	magic4        = [...]byte{'N', 'R', 'M', 'C'}
)

// Frame is one decoded entry. Payload aliases the input buffer.
type Frame struct {
	Codec   byte
	Epoch   uint64
	Key     string
	Payload []byte
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode frames payload for key.
func Encode(codec byte, epoch uint64, key string, payload []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	if len(key) > 0xFFFF {
		return nil, ErrKeyTooLong
	}

	var buf bytes.Buffer
	buf.Grow(hdrLen + len(key) + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(codec)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], epoch)
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(key)))
	buf.Write(u2[:])
	buf.WriteString(key)

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes(), nil
}

// Decode parses a frame. Any structural problem yields ErrCorrupt.
func Decode(b []byte) (Frame, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return Frame{}, ErrCorrupt
	}
	f := Frame{Codec: b[5]}
	off := 6

	f.Epoch = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	klen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if klen == 0 || klen > len(b)-off {
		return Frame{}, ErrCorrupt
	}
	f.Key = string(b[off : off+klen])
	off += klen

	if off+4 > len(b) {
		return Frame{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact: no trailing bytes
		return Frame{}, ErrCorrupt
	}
	f.Payload = b[off : off+vlen]
	return f, nil
}
