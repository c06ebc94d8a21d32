package debug

import (
	"fmt"
	"reflect"

	"github.com/keycast/keycast/internal/core/bytes"
	"github.com/keycast/keycast/internal/packets"
)

// Report types keyed by their leading type byte, along with the size each
// occupies on the wire.
var reportTypes = map[byte]struct {
	name string
	size int
	def  interface{}
}{
	packets.KeyReportType:    {"KeyReport", packets.KeyReportSize, packets.KeyReport{}},
	packets.StreamReportType: {"StreamReport", packets.StreamReportSize, packets.StreamReport{}},
}

// DecodeReport parses one serialized report into a new *packets.KeyReport or
// *packets.StreamReport.
func DecodeReport(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty report")
	}
	t, found := reportTypes[data[0]]
	if !found {
		return nil, fmt.Errorf("unknown report type %#02x", data[0])
	}
	if len(data) != t.size {
		return nil, fmt.Errorf("%s must be %d bytes, got %d", t.name, t.size, len(data))
	}

	v := reflect.New(reflect.TypeOf(t.def))
	bytes.StructFromBytes(data, v.Interface())
	return v.Interface(), nil
}

// DescribeReport returns the hex dump of a report followed by its decoded fields.
func DescribeReport(data []byte) string {
	report, err := DecodeReport(data)
	if err != nil {
		return FormatPacket(data) + err.Error() + "\n"
	}
	return FormatPacket(data) + Dump(report)
}
