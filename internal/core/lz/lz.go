// Package lz implements the LZ77 variant used to shrink payloads before they
// are typed into the receiving device.
//
// A stream is a sequence of records. Each record starts with a control byte
// whose bits (least significant first) describe up to 8 slots:
//
//	0: literal run, followed by up to 3 raw bytes (fewer only at the end)
//	1: match, followed by a big-endian 16 bit distance and one length byte
//
// A match copies length+3 bytes starting distance bytes before the position
// 3 bytes behind the current output position. The final control byte may be
// partially used; the decoder relies on the decompressed size, which is
// communicated separately.
package lz

const (
	MinMatch = 3
	// MaxDistance is the largest stored back-distance.
	MaxDistance = 0xFFFF
	// MaxMatch is the longest match; length-MinMatch must fit in a byte.
	MaxMatch = MinMatch + 0xFF

	memLevel  = 15
	hashBits  = memLevel + 7
	hashMask  = 1<<hashBits - 1
	hashShift = (hashBits + MinMatch - 1) / MinMatch

	// maxTracked is the number of positions kept in the hash buckets.
	maxTracked = MaxDistance + MinMatch

	slotsPerRecord = 8
)
