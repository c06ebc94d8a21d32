package transport

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Serial is a keyboard device attached to a serial port. The device pauses
// the link with XOFF and resumes it with XON; any other bytes it sends are
// logged one line at a time.
type Serial struct {
	port   io.ReadWriteCloser
	name   string
	logger *logrus.Entry

	sendEnabled atomic.Bool
	closed      atomic.Bool
	closeOnce   sync.Once
	done        chan struct{}
}

// ListSerialPorts returns the names of the serial ports on this machine.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// OpenSerial opens a serial port at baudRate, 8N1.
func OpenSerial(name string, baudRate int, logger *logrus.Logger) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("error opening serial port %s: %w", name, err)
	}
	return NewSerial(name, port, logger), nil
}

// NewSerial wraps an already open port and starts reading from it.
func NewSerial(name string, port io.ReadWriteCloser, logger *logrus.Logger) *Serial {
	s := &Serial{
		port:   port,
		name:   name,
		logger: logger.WithField("device", name),
		done:   make(chan struct{}),
	}
	s.sendEnabled.Store(true)

	go s.receive()
	return s
}

func (s *Serial) Name() string { return s.name }

func (s *Serial) SendEnabled() bool { return s.sendEnabled.Load() }

func (s *Serial) Write(data []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if err := transmit(s.port, s.name, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Close closes the port and waits for the reader to stop.
func (s *Serial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.port.Close()
		<-s.done
	})
	return err
}

func (s *Serial) receive() {
	defer close(s.done)

	buf := make([]byte, 256)
	var line []byte
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			line = s.consume(buf[:n], line)
		}
		if err != nil {
			if !s.closed.Load() {
				s.logger.Warnf("serial read stopped: %s", err)
			}
			return
		}
	}
}

// consume applies flow control bytes and logs every completed line.
func (s *Serial) consume(data, line []byte) []byte {
	for _, b := range data {
		switch b {
		case XOFF:
			s.sendEnabled.Store(false)
		case XON:
			s.sendEnabled.Store(true)
		default:
			line = append(line, b)
			if b == '\n' {
				s.logger.Infof("received: [%s]", bytes.TrimRight(line, "\r\n"))
				line = line[:0]
			}
		}
	}
	return line
}
