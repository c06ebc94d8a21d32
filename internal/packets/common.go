// Key reports written to the keyboard device.
package packets

const (
	KeyReportSize    = 0x03
	StreamReportSize = 0x08

	// MaxCodes is the number of keys a stream report can hold.
	MaxCodes = 6
)

// Report types.
const (
	KeyReportType    = 0x00
	StreamReportType = 0xFF
)

// Report is a key report ready to be serialized and written to a transport.
type Report interface {
	// Released returns the report that lets go of the keys held by this one.
	Released() Report
}

// KeyReport presses a single key. It is the first 3 bytes of the
// [type][modifier][code0..code5] layout.
type KeyReport struct {
	Type     uint8
	Modifier uint8
	Code     uint8
}

// StreamReport presses up to MaxCodes keys at once.
type StreamReport struct {
	Type     uint8
	Modifier uint8
	Codes    [MaxCodes]uint8
}

func NewKeyReport(modifier, code uint8) *KeyReport {
	return &KeyReport{Type: KeyReportType, Modifier: modifier, Code: code}
}

// NewStreamReport builds a stream report. Unused code slots are left zero and
// codes beyond MaxCodes are ignored.
func NewStreamReport(modifier uint8, codes []uint8) *StreamReport {
	r := &StreamReport{Type: StreamReportType, Modifier: modifier}
	copy(r.Codes[:], codes)
	return r
}

// Released keeps the report type and clears the modifier and key code.
func (r *KeyReport) Released() Report {
	return &KeyReport{Type: r.Type}
}

// Released keeps the report type and clears the modifier and key codes.
func (r *StreamReport) Released() Report {
	return &StreamReport{Type: r.Type}
}
