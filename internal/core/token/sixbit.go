package token

import "fmt"

const (
	sixBitSymbols = "ABCDEFGHIJKLMNOPQRSTUVWXYZ!\"#$%&'()=~|`{+*}<>?_0123456789/- .\t\x1b\b"
	sixBitReports = 40
)

// SixBit maps every 6 bit value directly onto a 64 symbol table. It is the
// policy the stock receiver understands.
type SixBit struct {
	table []Token
	index map[byte]int
}

func NewSixBit() (*SixBit, error) {
	table, index, err := buildAlphabet(sixBitSymbols)
	if err != nil {
		return nil, err
	}
	return &SixBit{table: table, index: index}, nil
}

func (s *SixBit) Name() string    { return PolicySixBit }
func (s *SixBit) Bits() int       { return 6 }
func (s *SixBit) ChunkBytes() int { return chunkBytes(6, sixBitReports) }
func (s *SixBit) Reset()          {}

func (s *SixBit) Symbols() []Token { return append([]Token(nil), s.table...) }

func (s *SixBit) Encode(v uint32) (Token, error) {
	if v >= uint32(len(s.table)) {
		return Token{}, fmt.Errorf("%w: value %d", ErrNoMapping, v)
	}
	return s.table[v], nil
}

func (s *SixBit) Decode(ch byte) (uint32, error) {
	i, ok := s.index[ch]
	if !ok {
		return 0, fmt.Errorf("%w: symbol %q", ErrNoMapping, ch)
	}
	return uint32(i), nil
}
