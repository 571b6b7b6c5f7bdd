package hashslot

import (
	"strings"

	"github.com/cuemby/burrow/pkg/types"
)

const (
	// SlotCount is the fixed size of the hash-slot space.
	SlotCount = 16384

	// SlotMax is the highest slot number. It doubles as the sentinel
	// upper-bound key of the last partition in a partition table.
	SlotMax = SlotCount - 1

	// NoSlot means routing is not needed for the operation.
	NoSlot = -1
)

// ForKey computes the hash slot for a key.
//
// If the key contains a hash tag ("{...}"), only the tag content is hashed
// so related keys colocate on one partition. An empty tag ("{}") falls back
// to hashing the whole key, matching the server-side keyspace algorithm.
// An opening brace with no closing brace is a programming error and is
// rejected with types.ErrInvalidKeyTag instead of hashing a truncated key.
func ForKey(key string) (int, error) {
	hashed := key
	if start := strings.IndexByte(key, '{'); start != -1 {
		end := strings.IndexByte(key[start+1:], '}')
		if end == -1 {
			return NoSlot, types.ErrInvalidKeyTag
		}
		if end > 0 {
			hashed = key[start+1 : start+1+end]
		}
	}
	return int(CRC16([]byte(hashed)) % SlotCount), nil
}

// CRC16 computes the CCITT (XModem) 16-bit checksum used for keyspace
// hashing: polynomial 0x1021, initial value 0, no reflection.
func CRC16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
