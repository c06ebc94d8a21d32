package token

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func chars(tokens []Token) []byte {
	out := make([]byte, len(tokens))
	for i, t := range tokens {
		out[i] = t.Char
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		policy     string
		name       string
		bits       int
		chunkBytes int
	}{
		{policy: "", name: PolicySixBit, bits: 6, chunkBytes: 360},
		{policy: PolicySixBit, name: PolicySixBit, bits: 6, chunkBytes: 360},
		{policy: PolicyFiveBit, name: PolicyFiveBit, bits: 5, chunkBytes: 300},
	}
	for _, tt := range tests {
		c, err := New(tt.policy)
		if err != nil {
			t.Fatalf("New(%q) returned an unexpected error: %v", tt.policy, err)
		}
		if c.Name() != tt.name || c.Bits() != tt.bits || c.ChunkBytes() != tt.chunkBytes {
			t.Errorf("New(%q) = %s/%d bits/%d bytes, want %s/%d bits/%d bytes",
				tt.policy, c.Name(), c.Bits(), c.ChunkBytes(), tt.name, tt.bits, tt.chunkBytes)
		}
		if (c.ChunkBytes()*8/c.Bits())%SymbolsPerReport != 0 {
			t.Errorf("%s chunk does not fill whole reports", c.Name())
		}
	}

	if _, err := New("seven"); !errors.Is(err, ErrUnknownPolicy) {
		t.Errorf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestSixBit_Table(t *testing.T) {
	c, err := NewSixBit()
	if err != nil {
		t.Fatal(err)
	}

	expected := map[byte]byte{
		'A':  0x04,
		'Z':  0x1D,
		'!':  0x1E,
		'=':  0x2D,
		'-':  0x56,
		'.':  0x63,
		'/':  0x54,
		'1':  0x59,
		'9':  0x61,
		'0':  0x62,
		' ':  0x2C,
		'\t': 0x2B,
		0x1b: 0x29,
		'\b': 0x2A,
	}
	seen := make(map[byte]byte)
	for v := uint32(0); v < 64; v++ {
		tok, err := c.Encode(v)
		if err != nil {
			t.Fatalf("Encode(%d) returned an unexpected error: %v", v, err)
		}
		if want, ok := expected[tok.Char]; ok && tok.Code != want {
			t.Errorf("symbol %q has code %#02x, want %#02x", tok.Char, tok.Code, want)
		}
		if other, dup := seen[tok.Code]; dup {
			t.Errorf("symbols %q and %q share code %#02x", other, tok.Char, tok.Code)
		}
		seen[tok.Code] = tok.Char

		back, err := c.Decode(tok.Char)
		if err != nil || back != v {
			t.Errorf("Decode(%q) = %d, %v; want %d", tok.Char, back, err, v)
		}
	}

	if _, err := c.Encode(64); !errors.Is(err, ErrNoMapping) {
		t.Errorf("expected ErrNoMapping for 64, got %v", err)
	}
	if _, err := c.Decode('a'); !errors.Is(err, ErrNoMapping) {
		t.Errorf("expected ErrNoMapping for 'a', got %v", err)
	}
}

func TestFiveBit_DistinctCodes(t *testing.T) {
	c, err := NewFiveBit()
	if err != nil {
		t.Fatal(err)
	}
	if len(c.symbols) != 45 {
		t.Fatalf("alphabet has %d symbols, want 45", len(c.symbols))
	}
	seen := make(map[byte]bool)
	for _, tok := range c.symbols {
		if seen[tok.Code] {
			t.Errorf("code %#02x used twice", tok.Code)
		}
		seen[tok.Code] = true
	}
}

func TestFiveBit_AntiRepeatWindow(t *testing.T) {
	c, err := NewFiveBit()
	if err != nil {
		t.Fatal(err)
	}

	// A constant value would pick the same symbol every time without the
	// window.
	var emitted []byte
	for i := 0; i < 200; i++ {
		tok, err := c.Encode(0)
		if err != nil {
			t.Fatalf("Encode(0) #%d returned an unexpected error: %v", i, err)
		}
		emitted = append(emitted, tok.Char)
	}

	r := rand.New(rand.NewSource(5))
	for i := 0; i < 2000; i++ {
		tok, err := c.Encode(uint32(r.Intn(32)))
		if err != nil {
			t.Fatal(err)
		}
		emitted = append(emitted, tok.Char)
	}

	for i := range emitted {
		end := i + RepeatWindow
		if end > len(emitted) {
			end = len(emitted)
		}
		window := make(map[byte]bool)
		for _, ch := range emitted[i:end] {
			if window[ch] {
				t.Fatalf("symbol %q repeated within %d emissions starting at %d", ch, RepeatWindow, i)
			}
			window[ch] = true
		}
	}
}

func TestFiveBit_FirstSymbols(t *testing.T) {
	c, err := NewFiveBit()
	if err != nil {
		t.Fatal(err)
	}
	var got []byte
	for i := 0; i < 3; i++ {
		tok, err := c.Encode(0)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, tok.Char)
	}
	if diff := cmp.Diff([]byte("ABC"), got); diff != "" {
		t.Errorf("unexpected symbols; diff:\n%s", diff)
	}

	c.Reset()
	tok, _ := c.Encode(0)
	if tok.Char != 'A' {
		t.Errorf("Reset() did not restore the alphabet, got %q", tok.Char)
	}
}

func TestFiveBit_AlphabetTooSmall(t *testing.T) {
	if _, err := newFiveBit("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", RepeatWindow); !errors.Is(err, ErrAlphabetTooSmall) {
		t.Errorf("expected ErrAlphabetTooSmall, got %v", err)
	}
}

func TestFiveBit_DecodeRejectsRepeat(t *testing.T) {
	c, err := NewFiveBit()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decode('Q'); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decode('Q'); !errors.Is(err, ErrNoMapping) {
		t.Errorf("expected ErrNoMapping for a repeated symbol, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	random := make([]byte, 1000)
	r.Read(random)

	inputs := map[string][]byte{
		"zeros":  make([]byte, 360),
		"ones":   bytes.Repeat([]byte{0xFF}, 300),
		"random": random,
		"short":  []byte{0x42},
	}
	for _, policy := range []string{PolicySixBit, PolicyFiveBit} {
		for name, src := range inputs {
			t.Run(policy+"/"+name, func(t *testing.T) {
				enc, err := New(policy)
				if err != nil {
					t.Fatal(err)
				}
				tokens, err := EncodeChunk(enc, src)
				if err != nil {
					t.Fatalf("EncodeChunk() returned an unexpected error: %v", err)
				}
				if want := (len(src)*8 + enc.Bits() - 1) / enc.Bits(); len(tokens) != want {
					t.Fatalf("got %d tokens, want %d", len(tokens), want)
				}

				dec, err := New(policy)
				if err != nil {
					t.Fatal(err)
				}
				got, err := DecodeTokens(dec, chars(tokens), len(src))
				if err != nil {
					t.Fatalf("DecodeTokens() returned an unexpected error: %v", err)
				}
				if diff := cmp.Diff(src, got); diff != "" {
					t.Errorf("round trip mismatch; diff:\n%s", diff)
				}
			})
		}
	}
}

func TestEncodeChunk_Padding(t *testing.T) {
	c, err := NewSixBit()
	if err != nil {
		t.Fatal(err)
	}
	// 0xFF -> 111111 11(0000): the tail group is zero padded.
	tokens, err := EncodeChunk(c, []byte{0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{'\b', '1'}, chars(tokens)); diff != "" {
		t.Errorf("unexpected symbols; diff:\n%s", diff)
	}
}

func TestDecodeTokens_ShortInput(t *testing.T) {
	c, err := NewSixBit()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeTokens(c, []byte("A"), 2); !errors.Is(err, ErrShortInput) {
		t.Errorf("expected ErrShortInput, got %v", err)
	}
}

func TestSymbols(t *testing.T) {
	six, _ := NewSixBit()
	for i, tok := range six.Symbols() {
		if v, err := six.Decode(tok.Char); err != nil || v != uint32(i) {
			t.Errorf("symbol %d decoded to %d, %v", i, v, err)
		}
	}

	five, _ := NewFiveBit()
	syms := five.Symbols()
	if len(syms) != 45 {
		t.Fatalf("expected 45 five bit symbols, got %d", len(syms))
	}
	syms[0].Char = 0
	if five.Symbols()[0].Char != 'A' {
		t.Error("Symbols() exposed the internal table")
	}
}
