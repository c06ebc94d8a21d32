package emulator

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/keycast/keycast/internal/core/debug"
	"github.com/keycast/keycast/internal/core/keycode"
	"github.com/keycast/keycast/internal/core/lz"
	"github.com/keycast/keycast/internal/core/token"
	"github.com/keycast/keycast/internal/packets"
	"github.com/keycast/keycast/internal/transfer"
)

var (
	ErrBadHeader  = errors.New("emulator: malformed transfer header")
	ErrBadPayload = errors.New("emulator: malformed payload")
)

const headerLines = 4

// File is a transfer reassembled from the reports that carried it.
type File struct {
	Name           string
	Type           string
	CompressedSize int
	Data           []byte
}

type receiverState int

const (
	idle receiverState = iota
	readingHeader
	readingPayload
)

// Receiver plays the receiving application: it collects the header lines,
// the payload symbols and, on the terminator, decodes and decompresses the
// file. Keys that arrive outside of a transfer are ignored.
type Receiver struct {
	codec token.Codec
	chars map[byte]byte

	state   receiverState
	line    []rune
	header  []string
	symbols []byte

	compressedSize int
	actualSize     int
}

func NewReceiver(codec token.Codec) *Receiver {
	r := &Receiver{codec: codec, chars: make(map[byte]byte)}
	for _, tok := range codec.Symbols() {
		r.chars[tok.Code] = tok.Char
	}
	return r
}

// Handle consumes one serialized report and returns the file it completes,
// if any. After an error the receiver waits for the next header.
func (r *Receiver) Handle(data []byte) (*File, error) {
	report, err := debug.DecodeReport(data)
	if err != nil {
		return nil, err
	}

	var file *File
	switch rep := report.(type) {
	case *packets.KeyReport:
		file, err = r.key(rep.Modifier, rep.Code)
	case *packets.StreamReport:
		err = r.stream(rep)
	}
	if err != nil {
		r.reset()
	}
	return file, err
}

func (r *Receiver) key(modifier, code byte) (*File, error) {
	if code == 0 {
		return nil, nil
	}

	if r.state == readingPayload {
		if modifier == 0 && code == keycode.KeyRightBracket {
			return r.finish()
		}
		return nil, fmt.Errorf("%w: key %#02x inside the payload", ErrBadPayload, code)
	}

	if code == keycode.KeyEnter {
		if r.state == idle {
			return nil, nil
		}
		r.header = append(r.header, string(r.line))
		r.line = r.line[:0]
		if len(r.header) == headerLines {
			return nil, r.startPayload()
		}
		return nil, nil
	}

	if modifier&^(keycode.ModLShift|keycode.ModRShift) != 0 {
		return nil, nil
	}
	ch, ok := keycode.Char(modifier, code)
	if !ok {
		return nil, nil
	}
	r.state = readingHeader
	r.line = append(r.line, ch)
	return nil, nil
}

func (r *Receiver) startPayload() error {
	var err error
	if r.compressedSize, err = strconv.Atoi(r.header[2]); err != nil {
		return fmt.Errorf("%w: compressed size %q", ErrBadHeader, r.header[2])
	}
	if r.actualSize, err = strconv.Atoi(r.header[3]); err != nil {
		return fmt.Errorf("%w: size %q", ErrBadHeader, r.header[3])
	}
	r.codec.Reset()
	r.symbols = r.symbols[:0]
	r.state = readingPayload
	return nil
}

func (r *Receiver) stream(rep *packets.StreamReport) error {
	if r.state != readingPayload {
		return nil
	}
	if rep.Codes == [packets.MaxCodes]uint8{} {
		return nil
	}
	if rep.Modifier != keycode.ModLShift {
		return fmt.Errorf("%w: stream report with modifier %#02x", ErrBadPayload, rep.Modifier)
	}
	if rep.Codes == [packets.MaxCodes]uint8{keycode.KeyEnter} {
		return nil
	}

	for _, code := range rep.Codes {
		ch, ok := r.chars[code]
		if !ok {
			return fmt.Errorf("%w: code %#02x is not a %s symbol", ErrBadPayload, code, r.codec.Name())
		}
		r.symbols = append(r.symbols, ch)
	}
	return nil
}

func (r *Receiver) finish() (*File, error) {
	defer r.reset()

	payload, err := token.DecodeTokens(r.codec, r.symbols, r.compressedSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadPayload, err)
	}
	data, err := lz.Decompress(payload, r.actualSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadPayload, err)
	}

	return &File{
		Name:           transfer.InvertCase(r.header[0]),
		Type:           r.header[1],
		CompressedSize: r.compressedSize,
		Data:           data,
	}, nil
}

func (r *Receiver) reset() {
	r.state = idle
	r.line = r.line[:0]
	r.header = r.header[:0]
	r.symbols = r.symbols[:0]
}
