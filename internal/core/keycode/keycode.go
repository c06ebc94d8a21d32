// Package keycode maps characters and key names to the USB HID usage codes
// understood by the receiving keyboard device. The character table follows a
// Japanese (JIS) layout.
package keycode

import (
	"strconv"
	"strings"
)

// Modifier bits of a key report.
const (
	ModLCtrl byte = 1 << iota
	ModLShift
	ModLAlt
	ModLWindows
	ModRCtrl
	ModRShift
	ModRAlt
	ModRWindows
)

// Key usage codes referenced directly by the sender.
const (
	KeyA            byte = 0x04
	KeyV            byte = 0x19
	KeyZ            byte = 0x1D
	Key1            byte = 0x1E
	Key0            byte = 0x27
	KeyEnter        byte = 0x28
	KeyEscape       byte = 0x29
	KeyBackspace    byte = 0x2A
	KeyTab          byte = 0x2B
	KeySpace        byte = 0x2C
	KeyF1           byte = 0x3A
	KeyF11          byte = 0x44
	KeyF12          byte = 0x45
	KeyPadDivide    byte = 0x54
	KeyPadMinus     byte = 0x56
	KeyPadEnter     byte = 0x58
	KeyPad1         byte = 0x59
	KeyPad0         byte = 0x62
	KeyPadPeriod    byte = 0x63
	KeyRightBracket byte = 0x32
)

// Shift marks a Code that must be typed with the shift modifier held.
const Shift Code = 0x100

// Code is a usage code, optionally combined with Shift.
type Code uint16

// Key returns the usage code without the shift flag.
func (c Code) Key() byte { return byte(c & 0xFF) }

// Shifted reports whether the code needs the shift modifier.
func (c Code) Shifted() bool { return c&Shift != 0 }

// Modifier returns the modifier byte needed to type c.
func (c Code) Modifier() byte {
	if c.Shifted() {
		return ModLShift
	}
	return 0
}

// printable covers 0x20 through 0x7E.
var printable = [...]Code{
	//  0      1      2      3      4      5      6      7      8      9      A      B      C      D      E      F
	0x02C, 0x11E, 0x11F, 0x120, 0x121, 0x122, 0x123, 0x124, 0x125, 0x126, 0x134, 0x133, 0x036, 0x02D, 0x037, 0x038, // 0x20
	0x027, 0x01E, 0x01F, 0x020, 0x021, 0x022, 0x023, 0x024, 0x025, 0x026, 0x034, 0x033, 0x136, 0x12D, 0x137, 0x138, // 0x30
	0x02F, 0x104, 0x105, 0x106, 0x107, 0x108, 0x109, 0x10A, 0x10B, 0x10C, 0x10D, 0x10E, 0x10F, 0x110, 0x111, 0x112, // 0x40
	0x113, 0x114, 0x115, 0x116, 0x117, 0x118, 0x119, 0x11A, 0x11B, 0x11C, 0x11D, 0x030, 0x089, 0x032, 0x02E, 0x187, // 0x50
	0x12F, 0x004, 0x005, 0x006, 0x007, 0x008, 0x009, 0x00A, 0x00B, 0x00C, 0x00D, 0x00E, 0x00F, 0x010, 0x011, 0x012, // 0x60
	0x013, 0x014, 0x015, 0x016, 0x017, 0x018, 0x019, 0x01A, 0x01B, 0x01C, 0x01D, 0x130, 0x189, 0x132, 0x12E, // 0x70
}

var control = map[rune]Code{
	'\b':   Code(KeyBackspace),
	'\t':   Code(KeyTab),
	'\n':   Code(KeyEnter),
	'\x1b': Code(KeyEscape),
}

// CharCode returns the code that types ch.
func CharCode(ch rune) (Code, bool) {
	if ch >= 0x20 && ch <= 0x7E {
		return printable[ch-0x20], true
	}
	c, ok := control[ch]
	return c, ok
}

var chars = make(map[Code]rune)

// Char returns the character typed by key with modifier held. Either shift
// key selects the shifted character.
func Char(modifier, key byte) (rune, bool) {
	code := Code(key)
	if modifier&(ModLShift|ModRShift) != 0 {
		code |= Shift
	}
	ch, ok := chars[code]
	return ch, ok
}

var named = map[string]byte{
	"ENTER":     KeyEnter,
	"ESC":       KeyEscape,
	"ESCAPE":    KeyEscape,
	"BACKSPACE": KeyBackspace,
	"TAB":       KeyTab,
	"SPACE":     KeySpace,
	"INSERT":    0x49,
	"HOME":      0x4A,
	"PAGEUP":    0x4B,
	"DELETE":    0x4C,
	"END":       0x4D,
	"PAGEDOWN":  0x4E,
	"RIGHT":     0x4F,
	"LEFT":      0x50,
	"DOWN":      0x51,
	"UP":        0x52,
}

func init() {
	for ch, code := range control {
		chars[code] = ch
	}
	for i, code := range printable {
		if _, ok := chars[code]; !ok {
			chars[code] = rune(0x20 + i)
		}
	}

	for i := byte(0); i < 12; i++ {
		named["F"+strconv.Itoa(int(i)+1)] = KeyF1 + i
	}
	for i := byte(0); i < 26; i++ {
		named[string(rune('A'+i))] = KeyA + i
	}
}

// ByName looks up a key by its name, such as "F11", "Enter" or "A".
// Names are case-insensitive.
func ByName(name string) (byte, bool) {
	code, ok := named[strings.ToUpper(strings.TrimSpace(name))]
	return code, ok
}
