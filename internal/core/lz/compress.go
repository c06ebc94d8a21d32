package lz

import "context"

// Options configures a Compress call. A nil *Options is valid.
type Options struct {
	// Progress, if set, is called once per emitted token with the number of
	// input bytes consumed so far, and once more when compression stops.
	Progress func(done, total int)
}

type compressor struct {
	finder *MatchFinder

	// slot is the number of decisions recorded in the current control byte.
	slot             int
	controlByte      byte
	controlByteIndex int

	src []byte
	dst []byte
}

// Compress compresses src. An empty src returns ErrNoData.
//
// ctx is checked once per emitted token. If it is cancelled the stream
// emitted so far is returned along with ctx.Err(); that output is not a
// valid complete stream and must not be transmitted.
func Compress(ctx context.Context, src []byte, opts *Options) ([]byte, error) {
	if len(src) == 0 {
		return nil, ErrNoData
	}
	if opts == nil {
		opts = &Options{}
	}

	c := &compressor{
		finder: newMatchFinder(src),
		src:    src,
		dst:    make([]byte, 0, len(src)+len(src)/(slotsPerRecord*MinMatch)+2),
	}
	return c.compress(ctx, opts.Progress)
}

func (c *compressor) compress(ctx context.Context, progress func(done, total int)) ([]byte, error) {
	c.startRecord()

	var err error
	for c.finder.Pos() < len(c.src) {
		if candidate, length := c.finder.longest(); length > MinMatch {
			c.writeMatch(candidate, length)
		} else {
			c.writeLiteralRun()
		}

		if c.slot == slotsPerRecord {
			c.finishRecord()
			if c.finder.Pos() < len(c.src) {
				c.startRecord()
			}
		}

		if progress != nil {
			progress(c.finder.Pos(), len(c.src))
		}
		if err = ctx.Err(); err != nil {
			break
		}
	}

	if progress != nil {
		progress(c.finder.Pos(), len(c.src))
	}
	if c.slot > 0 {
		c.finishRecord()
	}
	return c.dst, err
}

func (c *compressor) startRecord() {
	c.controlByteIndex = len(c.dst)
	c.dst = append(c.dst, 0)
	c.controlByte = 0
	c.slot = 0
}

func (c *compressor) finishRecord() {
	c.dst[c.controlByteIndex] = c.controlByte
	c.slot = 0
}

func (c *compressor) setControlBit(bit byte) {
	c.controlByte |= (bit & 1) << uint(c.slot)
	c.slot++
}

// writeMatch emits a match token. The stored distance is measured from the
// position MinMatch bytes behind the cursor.
func (c *compressor) writeMatch(candidate, length int) {
	if length > MaxMatch {
		length = MaxMatch
	}
	c.setControlBit(1)

	distance := (c.finder.Pos() - MinMatch) - candidate
	c.dst = append(c.dst, byte(distance>>8), byte(distance), byte(length-MinMatch))

	c.finder.skip(length)
}

// writeLiteralRun copies up to MinMatch raw bytes.
func (c *compressor) writeLiteralRun() {
	c.setControlBit(0)

	start := c.finder.Pos()
	end := start + MinMatch
	if end > len(c.src) {
		end = len(c.src)
	}
	c.dst = append(c.dst, c.src[start:end]...)

	c.finder.skip(end - start)
}
