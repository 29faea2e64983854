package core

// Little-endian wire helpers shared by the instruction, transaction, node
// and account codecs. All amounts and fees travel as 16-byte (u128)
// little-endian fields; Go has no native 128-bit integer so they are held
// as big.Int in memory.

import (
	"encoding/binary"
	"math/big"
)

const u128Len = 16

// appendU128LE appends the 16-byte little-endian form of v. Values wider
// than 128 bits are truncated to the low 128 bits; negative values are
// treated as zero.
func appendU128LE(dst []byte, v *big.Int) []byte {
	var buf [u128Len]byte
	if v != nil && v.Sign() > 0 {
		raw := v.Bytes() // big-endian
		if len(raw) > u128Len {
			raw = raw[len(raw)-u128Len:]
		}
		for i, b := range raw {
			buf[len(raw)-1-i] = b
		}
	}
	return append(dst, buf[:]...)
}

// u128FromLE decodes a 16-byte little-endian field.
func u128FromLE(b []byte) *big.Int {
	var be [u128Len]byte
	for i := 0; i < u128Len; i++ {
		be[u128Len-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be[:])
}

func appendU64LE(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

func appendU32LE(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// boundsOK reports whether b holds at least n bytes past offset. Every
// decoder checks this before each field read so decoding never panics on
// short input.
func boundsOK(b []byte, offset, n int) bool {
	return n >= 0 && offset >= 0 && offset+n <= len(b)
}
