// Package token packs bytes into keystroke symbols the receiving device can
// decode. A Codec reads its input in fixed width bit groups and maps every
// group onto a symbol of its alphabet.
package token

import (
	"fmt"

	"github.com/keycast/keycast/internal/core/bits"
	"github.com/keycast/keycast/internal/core/keycode"
)

// SymbolsPerReport is the number of symbols carried by one stream report.
const SymbolsPerReport = 6

const (
	PolicySixBit  = "six"
	PolicyFiveBit = "five"
)

// Token is one symbol of an alphabet.
type Token struct {
	// Char is the printable character the receiver sees.
	Char byte
	// Code is the usage code typed with the shift modifier held.
	Code byte
}

// Codec converts bit groups to tokens and back. Codecs may carry state
// between calls; Reset returns them to their initial state.
type Codec interface {
	Name() string
	// Bits is the width of one group.
	Bits() int
	// ChunkBytes is the number of payload bytes encoded per chunk.
	ChunkBytes() int
	Reset()
	// Symbols returns the alphabet in index order.
	Symbols() []Token
	Encode(v uint32) (Token, error)
	Decode(ch byte) (uint32, error)
}

// New returns the codec for a policy name.
func New(policy string) (Codec, error) {
	switch policy {
	case PolicySixBit, "":
		c, err := NewSixBit()
		if err != nil {
			return nil, err
		}
		return c, nil
	case PolicyFiveBit:
		c, err := NewFiveBit()
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}

// EncodeChunk reads chunk in groups of c.Bits() bits and encodes each one.
// The last group is padded with zero bits.
func EncodeChunk(c Codec, chunk []byte) ([]Token, error) {
	width := c.Bits()
	groups := (len(chunk)*8 + width - 1) / width

	cur := bits.New(chunk)
	tokens := make([]Token, 0, groups)
	for i := 0; i < groups; i++ {
		v := cur.ReadBits(width)
		tok, err := c.Encode(v)
		if err != nil {
			return tokens, fmt.Errorf("group %d: %w", i, err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// DecodeTokens reverses EncodeChunk and returns the first size bytes.
func DecodeTokens(c Codec, chars []byte, size int) ([]byte, error) {
	width := c.Bits()
	buf := make([]byte, (len(chars)*width+7)/8)
	if size > len(buf) {
		return nil, fmt.Errorf("%w: %d symbols hold %d bytes, want %d", ErrShortInput, len(chars), len(buf), size)
	}

	cur := bits.New(buf)
	for i, ch := range chars {
		v, err := c.Decode(ch)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		if err := cur.WriteBits(width, v); err != nil {
			return nil, err
		}
	}
	return buf[:size], nil
}

// chunkBytes returns the smallest number of bytes that fills a whole number
// of reports, scaled by reports.
func chunkBytes(width, reports int) int {
	bitsPerReport := width * SymbolsPerReport
	l := bitsPerReport
	for l%8 != 0 {
		l += bitsPerReport
	}
	return l / 8 * reports
}

// resolve returns the usage code a symbol is typed with. Symbols that are
// not shifted and would collide with a shifted symbol, along with the
// digits, are moved to the keypad.
func resolve(ch byte) (byte, error) {
	code, ok := keycode.CharCode(rune(ch))
	if !ok {
		return 0, fmt.Errorf("%w: symbol %q", ErrNoMapping, ch)
	}
	if code.Shifted() {
		return code.Key(), nil
	}

	switch ch {
	case '-':
		return keycode.KeyPadMinus, nil
	case '.':
		return keycode.KeyPadPeriod, nil
	case '/':
		return keycode.KeyPadDivide, nil
	}
	if k := code.Key(); k >= keycode.Key1 && k <= keycode.Key0 {
		return keycode.KeyPad1 + (k - keycode.Key1), nil
	}
	return code.Key(), nil
}

func buildAlphabet(symbols string) ([]Token, map[byte]int, error) {
	tokens := make([]Token, len(symbols))
	index := make(map[byte]int, len(symbols))
	for i := 0; i < len(symbols); i++ {
		code, err := resolve(symbols[i])
		if err != nil {
			return nil, nil, err
		}
		tokens[i] = Token{Char: symbols[i], Code: code}
		index[symbols[i]] = i
	}
	return tokens, index, nil
}
