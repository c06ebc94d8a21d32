package token

import "fmt"

const (
	fiveBitSymbols = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-./!\"#$%&"
	fiveBitReports = 20

	// RepeatWindow is the number of consecutive symbols that are always
	// distinct under the five bit policy.
	RepeatWindow = 12
)

// FiveBit maps every 5 bit value onto the Nth symbol that has not been used
// recently. Receivers that merge identical consecutive key reports never see
// the same symbol twice within RepeatWindow emissions.
type FiveBit struct {
	symbols []Token
	index   map[byte]int
	window  int

	usable []bool
	recent []int
}

func NewFiveBit() (*FiveBit, error) {
	return newFiveBit(fiveBitSymbols, RepeatWindow)
}

func newFiveBit(symbols string, window int) (*FiveBit, error) {
	if len(symbols)-window < 1<<5 {
		return nil, fmt.Errorf("%w: %d symbols, window %d", ErrAlphabetTooSmall, len(symbols), window)
	}
	table, index, err := buildAlphabet(symbols)
	if err != nil {
		return nil, err
	}
	f := &FiveBit{
		symbols: table,
		index:   index,
		window:  window,
		usable:  make([]bool, len(table)),
		recent:  make([]int, 0, window),
	}
	f.Reset()
	return f, nil
}

func (f *FiveBit) Name() string    { return PolicyFiveBit }
func (f *FiveBit) Bits() int       { return 5 }
func (f *FiveBit) ChunkBytes() int { return chunkBytes(5, fiveBitReports) }

func (f *FiveBit) Symbols() []Token { return append([]Token(nil), f.symbols...) }

func (f *FiveBit) Reset() {
	for i := range f.usable {
		f.usable[i] = true
	}
	f.recent = f.recent[:0]
}

func (f *FiveBit) Encode(v uint32) (Token, error) {
	n := int(v)
	for i, ok := range f.usable {
		if !ok {
			continue
		}
		if n == 0 {
			f.use(i)
			return f.symbols[i], nil
		}
		n--
	}
	return Token{}, fmt.Errorf("%w: value %d", ErrNoMapping, v)
}

func (f *FiveBit) Decode(ch byte) (uint32, error) {
	i, ok := f.index[ch]
	if !ok {
		return 0, fmt.Errorf("%w: symbol %q", ErrNoMapping, ch)
	}
	if !f.usable[i] {
		return 0, fmt.Errorf("%w: symbol %q repeated inside the window", ErrNoMapping, ch)
	}

	rank := 0
	for j := 0; j < i; j++ {
		if f.usable[j] {
			rank++
		}
	}
	f.use(i)
	return uint32(rank), nil
}

// use marks symbol i as recently used and releases the oldest one once the
// window is full.
func (f *FiveBit) use(i int) {
	f.usable[i] = false
	f.recent = append(f.recent, i)
	if len(f.recent) == f.window {
		f.usable[f.recent[0]] = true
		copy(f.recent, f.recent[1:])
		f.recent = f.recent[:len(f.recent)-1]
	}
}
