package lz

import "fmt"

// Record describes one decoded slot of a compressed stream.
type Record struct {
	Match bool
	// Offset is the position of the slot's first byte in src.
	Offset int
	// Distance and Length are only set for matches; Length is the number of
	// bytes copied.
	Distance int
	Length   int
	// Literal holds the raw bytes of a literal run.
	Literal []byte
}

type decompressor struct {
	// bitPos is the next slot to read from controlByte.
	bitPos      int
	controlByte byte

	srcPos int
	src    []byte

	dst  []byte
	size int

	// records is nil unless the caller asked for the record list.
	records *[]Record
}

// Decompress expands src into exactly size bytes.
func Decompress(src []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, ErrNegativeLen
	}
	d := &decompressor{src: src, size: size, dst: make([]byte, 0, size)}
	if err := d.decompress(); err != nil {
		return nil, err
	}
	return d.dst, nil
}

// Records decodes src and returns every slot it contains, in order.
func Records(src []byte, size int) ([]Record, error) {
	if size < 0 {
		return nil, ErrNegativeLen
	}
	var records []Record
	d := &decompressor{src: src, size: size, dst: make([]byte, 0, size), records: &records}
	if err := d.decompress(); err != nil {
		return records, err
	}
	return records, nil
}

func (d *decompressor) decompress() error {
	d.bitPos = slotsPerRecord

	for len(d.dst) < d.size {
		bit, err := d.getNextBit()
		if err != nil {
			return err
		}

		if bit == 1 {
			err = d.copyMatch()
		} else {
			err = d.copyLiteralRun()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// getNextBit returns the next slot flag, reading a new control byte once the
// current one has been used up.
func (d *decompressor) getNextBit() (byte, error) {
	if d.bitPos == slotsPerRecord {
		b, err := d.getNextByte()
		if err != nil {
			return 0, err
		}
		d.controlByte = b
		d.bitPos = 0
	}
	bit := (d.controlByte >> uint(d.bitPos)) & 1
	d.bitPos++
	return bit, nil
}

func (d *decompressor) getNextByte() (byte, error) {
	if d.srcPos >= len(d.src) {
		return 0, fmt.Errorf("%w: offset %d, %d of %d bytes decoded", ErrTruncated, d.srcPos, len(d.dst), d.size)
	}
	b := d.src[d.srcPos]
	d.srcPos++
	return b, nil
}

func (d *decompressor) copyMatch() error {
	offset := d.srcPos
	var hdr [3]byte
	for i := range hdr {
		b, err := d.getNextByte()
		if err != nil {
			return err
		}
		hdr[i] = b
	}

	distance := int(hdr[0])<<8 | int(hdr[1])
	length := int(hdr[2]) + MinMatch
	from := len(d.dst) - MinMatch - distance
	if from < 0 {
		return fmt.Errorf("%w: distance %d at output position %d", ErrBadDistance, distance, len(d.dst))
	}
	if remaining := d.size - len(d.dst); length > remaining {
		length = remaining
	}

	// The source may overlap the bytes being written, so copy one at a time.
	for i := 0; i < length; i++ {
		d.dst = append(d.dst, d.dst[from+i])
	}

	if d.records != nil {
		*d.records = append(*d.records, Record{Match: true, Offset: offset, Distance: distance, Length: length})
	}
	return nil
}

func (d *decompressor) copyLiteralRun() error {
	offset := d.srcPos
	n := d.size - len(d.dst)
	if n > MinMatch {
		n = MinMatch
	}
	for i := 0; i < n; i++ {
		b, err := d.getNextByte()
		if err != nil {
			return err
		}
		d.dst = append(d.dst, b)
	}

	if d.records != nil {
		lit := make([]byte, n)
		copy(lit, d.src[offset:offset+n])
		*d.records = append(*d.records, Record{Offset: offset, Literal: lit})
	}
	return nil
}
