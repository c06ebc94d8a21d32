// Package transport carries serialized key reports to a keyboard device,
// either over a serial link or through a network keyboard server.
package transport

import (
	"errors"
	"fmt"
	"io"
)

// Flow control bytes sent by a serial keyboard device.
const (
	XON  = 0x11
	XOFF = 0x13
)

// ErrClosed is returned when writing to a transport that has been closed.
var ErrClosed = errors.New("transport: closed")

// Transport is a connection to a keyboard device.
type Transport interface {
	io.WriteCloser
	// SendEnabled reports whether the device currently accepts data.
	SendEnabled() bool
	// Name identifies the device in logs and history.
	Name() string
}

// transmit writes the contents of data to w until every byte has been written.
func transmit(w io.Writer, name string, data []byte) error {
	bytesSent := 0

	for bytesSent < len(data) {
		n, err := w.Write(data[bytesSent:])
		if err != nil {
			return fmt.Errorf("failed to send to %s: %w", name, err)
		}
		bytesSent += n
	}

	return nil
}
