package debug

import (
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
)

// StartPprofServer starts the default pprof HTTP server that can be accessed via localhost
// to get runtime information about keycast. See https://golang.org/pkg/net/http/pprof/
func StartPprofServer(logger *logrus.Logger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

// Dump returns a readable representation of v for debug logs.
func Dump(v interface{}) string {
	return spew.Sdump(v)
}

const displayWidth = 16

// PrintPacket writes the contents of a packet to w in two columns, one for bytes and
// the other for their ascii representation.
func PrintPacket(w io.Writer, data []byte) {
	for offset := 0; offset < len(data); offset += displayWidth {
		end := offset + displayWidth
		if end > len(data) {
			end = len(data)
		}
		printPacketLine(w, data[offset:end], offset)
	}
}

// FormatPacket returns the output of PrintPacket as a string.
func FormatPacket(data []byte) string {
	var sb strings.Builder
	PrintPacket(&sb, data)
	return sb.String()
}

// printPacketLine writes one line of data to w.
func printPacketLine(w io.Writer, data []byte, offset int) {
	fmt.Fprintf(w, "(%04X) ", offset)
	// Print our bytes.
	for i, j := 0, 0; i < len(data); i++ {
		if j == 8 {
			// Visual aid - spacing between groups of 8 bytes.
			j = 0
			fmt.Fprint(w, "  ")
		}
		fmt.Fprintf(w, "%02x ", data[i])
		j++
	}
	// Fill in the gap if we don't have enough bytes to fill the line.
	for i := len(data); i < displayWidth; i++ {
		if i == 8 {
			fmt.Fprint(w, "  ")
		}
		fmt.Fprint(w, "   ")
	}
	fmt.Fprint(w, "    ")
	// Display the print characters as-is, others as periods.
	for _, c := range data {
		if c < 0x80 && strconv.IsPrint(rune(c)) {
			fmt.Fprintf(w, "%c", c)
		} else {
			fmt.Fprint(w, ".")
		}
	}
	fmt.Fprintln(w)
}
