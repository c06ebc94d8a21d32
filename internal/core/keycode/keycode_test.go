package keycode

import "testing"

func TestCharCode(t *testing.T) {
	tests := []struct {
		ch       rune
		key      byte
		modifier byte
	}{
		{ch: ' ', key: KeySpace},
		{ch: 'a', key: 0x04},
		{ch: 'z', key: 0x1D},
		{ch: 'A', key: 0x04, modifier: ModLShift},
		{ch: '1', key: Key1},
		{ch: '0', key: Key0},
		{ch: '!', key: 0x1E, modifier: ModLShift},
		{ch: '-', key: 0x2D},
		{ch: '=', key: 0x2D, modifier: ModLShift},
		{ch: ']', key: KeyRightBracket},
		{ch: '_', key: 0x87, modifier: ModLShift},
		{ch: '~', key: 0x2E, modifier: ModLShift},
		{ch: '\n', key: KeyEnter},
		{ch: '\t', key: KeyTab},
		{ch: '\x1b', key: KeyEscape},
		{ch: '\b', key: KeyBackspace},
	}
	for _, tt := range tests {
		code, ok := CharCode(tt.ch)
		if !ok {
			t.Errorf("CharCode(%q) found no mapping", tt.ch)
			continue
		}
		if code.Key() != tt.key || code.Modifier() != tt.modifier {
			t.Errorf("CharCode(%q) = key %#02x mod %#02x, want key %#02x mod %#02x",
				tt.ch, code.Key(), code.Modifier(), tt.key, tt.modifier)
		}
	}
}

func TestCharCode_Unmapped(t *testing.T) {
	for _, ch := range []rune{'\r', 0x7F, 'é', '漢'} {
		if _, ok := CharCode(ch); ok {
			t.Errorf("expected no mapping for %q", ch)
		}
	}
}

func TestByName(t *testing.T) {
	tests := map[string]byte{
		"F11":   KeyF11,
		"f1":    KeyF1,
		"Enter": KeyEnter,
		" tab ": KeyTab,
		"v":     KeyV,
	}
	for name, want := range tests {
		got, ok := ByName(name)
		if !ok || got != want {
			t.Errorf("ByName(%q) = %#02x, %v; want %#02x", name, got, ok, want)
		}
	}
	if _, ok := ByName("F13"); ok {
		t.Error("expected F13 to be unknown")
	}
}

func TestChar(t *testing.T) {
	for ch := rune(0x20); ch <= 0x7E; ch++ {
		code, _ := CharCode(ch)
		got, ok := Char(code.Modifier(), code.Key())
		if !ok || got != ch {
			t.Errorf("Char(%#02x, %#02x) = %q, %v; want %q", code.Modifier(), code.Key(), got, ok, ch)
		}
	}

	if got, ok := Char(ModRShift, 0x04); !ok || got != 'A' {
		t.Errorf("expected right shift to select 'A', got %q", got)
	}
	if got, _ := Char(0, KeyEnter); got != '\n' {
		t.Errorf("expected Enter to type a newline, got %q", got)
	}
	if _, ok := Char(0, KeyF11); ok {
		t.Error("expected no character for F11")
	}
}
