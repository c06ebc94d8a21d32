// Package bits provides a positionable bit-level reader/writer over a byte slice.
// Bits are addressed most significant first within each byte.
package bits

import (
	"errors"
	"fmt"
)

var (
	ErrShortBuffer = errors.New("bits: write past end of buffer")
	ErrSeekRange   = errors.New("bits: seek offset out of range")
)

// Cursor reads and writes groups of 1 to 32 bits at a bit offset into buf.
// The offset never exceeds len(buf)*8. Reads past the end of the buffer
// yield zero bits, so callers must track the logical size themselves.
type Cursor struct {
	buf    []byte
	offset int
}

func New(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Seek moves the cursor to an absolute bit offset.
func (c *Cursor) Seek(bitOffset int) error {
	if bitOffset < 0 || bitOffset > len(c.buf)*8 {
		return fmt.Errorf("%w: %d (max %d)", ErrSeekRange, bitOffset, len(c.buf)*8)
	}
	c.offset = bitOffset
	return nil
}

// Offset returns the current bit offset.
func (c *Cursor) Offset() int { return c.offset }

// Len returns the size of the underlying buffer in bits.
func (c *Cursor) Len() int { return len(c.buf) * 8 }

// Bytes returns the underlying buffer.
func (c *Cursor) Bytes() []byte { return c.buf }

// ReadBits returns the next n bits as an unsigned integer, most significant
// bit first, and advances the cursor by n (clamped to the end of the buffer).
// Panics if n is outside of [1..32].
func (c *Cursor) ReadBits(n int) uint32 {
	checkCount(n)

	var v uint32
	for i := 0; i < n; i++ {
		v <<= 1
		pos := c.offset + i
		if pos < len(c.buf)*8 {
			v |= uint32(c.buf[pos>>3]>>(7-uint(pos&7))) & 1
		}
	}

	c.offset += n
	if end := len(c.buf) * 8; c.offset > end {
		c.offset = end
	}
	return v
}

// WriteBits writes the low n bits of v at the cursor and advances it.
// Nothing is written if the group does not fit in the buffer.
// Panics if n is outside of [1..32].
func (c *Cursor) WriteBits(n int, v uint32) error {
	checkCount(n)

	if c.offset+n > len(c.buf)*8 {
		return fmt.Errorf("%w: offset=%d count=%d size=%d", ErrShortBuffer, c.offset, n, len(c.buf)*8)
	}

	for i := n - 1; i >= 0; i-- {
		pos := c.offset
		mask := byte(1) << (7 - uint(pos&7))
		if (v>>uint(i))&1 == 1 {
			c.buf[pos>>3] |= mask
		} else {
			c.buf[pos>>3] &^= mask
		}
		c.offset++
	}
	return nil
}

// ReadByte reads the next 8 bits. It never fails; past the end it returns 0.
func (c *Cursor) ReadByte() (byte, error) {
	return byte(c.ReadBits(8)), nil
}

// WriteByte writes 8 bits at the cursor.
func (c *Cursor) WriteByte(b byte) error {
	return c.WriteBits(8, uint32(b))
}

func checkCount(n int) {
	if n < 1 || n > 32 {
		panic(fmt.Errorf("bits: invalid bit count %d (must be in [1..32])", n))
	}
}
