package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultServerPort is the TCP and UDP port of a network keyboard server.
const DefaultServerPort = 3720

// Socket is a connection to a network keyboard server. The server has no
// flow control, so a Socket is always send-enabled.
type Socket struct {
	connection *net.TCPConn
	ipAddr     string
	port       string
	logger     *logrus.Entry

	closeOnce sync.Once
	done      chan struct{}
}

// DialSocket connects to the keyboard server at addr (host:port).
func DialSocket(ctx context.Context, addr string, timeout time.Duration, logger *logrus.Logger) (*Socket, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to keyboard server %s: %w", addr, err)
	}
	return NewSocket(conn.(*net.TCPConn), logger), nil
}

// NewSocket wraps an established connection and starts reading from it.
func NewSocket(connection *net.TCPConn, logger *logrus.Logger) *Socket {
	host, port, _ := net.SplitHostPort(connection.RemoteAddr().String())

	s := &Socket{
		connection: connection,
		ipAddr:     host,
		port:       port,
		logger:     logger.WithField("device", host),
		done:       make(chan struct{}),
	}
	go s.receive()
	return s
}

func (s *Socket) IPAddr() string { return s.ipAddr }
func (s *Socket) Port() string   { return s.port }

func (s *Socket) Name() string { return net.JoinHostPort(s.ipAddr, s.port) }

func (s *Socket) SendEnabled() bool { return true }

// Write sends data to the server over the TCP connection.
func (s *Socket) Write(data []byte) (int, error) {
	if err := transmit(s.connection, s.Name(), data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Close the TCP connection and wait for the reader to stop.
func (s *Socket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.connection.Close()
		<-s.done
	})
	return err
}

func (s *Socket) receive() {
	defer close(s.done)

	buf := make([]byte, 256)
	for {
		n, err := s.connection.Read(buf)
		if n > 0 {
			s.logger.Infof("server sent: [%s]", buf[:n])
		}
		if err != nil {
			return
		}
	}
}
