// Package emulator implements a network keyboard server that decodes the
// reports it receives instead of typing them. It answers discovery like a
// real server and is used to check transfers end to end.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"strconv"

	"github.com/sirupsen/logrus"

	kcdebug "github.com/keycast/keycast/internal/core/debug"
	"github.com/keycast/keycast/internal/core/token"
	"github.com/keycast/keycast/internal/packets"
)

// Server accepts keycast connections and reassembles the files sent over them.
type Server struct {
	Logger *logrus.Logger
	// Policy is the token policy the senders use.
	Policy string
	// Hostname is returned to discovery requests.
	Hostname string
	// OnFile, if set, is called for every file received.
	OnFile func(*File)
	// PacketLogging dumps every received report.
	PacketLogging bool
}

// ListenAndServe answers discovery datagrams and accepts connections on
// host:port until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, host string, port int) error {
	if _, err := token.New(s.Policy); err != nil {
		return err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return fmt.Errorf("error resolving %s: %w", addr, err)
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("error listening on socket: %w", err)
	}

	udp, err := net.ListenUDP("udp4", &net.UDPAddr{IP: tcpAddr.IP, Port: port})
	if err != nil {
		listener.Close()
		return fmt.Errorf("error listening for discovery: %w", err)
	}
	go s.AnswerDiscovery(ctx, udp)

	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is done, handling each one
// in its own goroutine.
func (s *Server) Serve(ctx context.Context, listener *net.TCPListener) error {
	s.Logger.Infof("waiting for keycast connections on %s", listener.Addr())
	defer s.Logger.Info("emulator exiting")

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		connection, err := listener.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.Logger.Warnf("failed to accept connection: %s", err)
			continue
		}
		go s.processReports(ctx, connection)
	}
}

// AnswerDiscovery replies to every datagram with Hostname until ctx is done.
func (s *Server) AnswerDiscovery(ctx context.Context, conn *net.UDPConn) {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 64)
	for {
		_, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil {
				s.Logger.Warnf("discovery stopped: %s", err)
			}
			return
		}
		s.Logger.Debugf("discovery request from %s", from)
		if _, err := conn.WriteToUDP([]byte(s.Hostname), from); err != nil {
			s.Logger.Warnf("error answering discovery from %s: %s", from, err)
		}
	}
}

// processReports reads reports from one connection until it closes. Every
// finished file is acknowledged with a line back to the sender.
func (s *Server) processReports(ctx context.Context, connection *net.TCPConn) {
	log := s.Logger.WithField("client", connection.RemoteAddr().String())
	defer s.closeConnectionAndRecover(log, connection)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			connection.Close()
		case <-stop:
		}
	}()

	codec, err := token.New(s.Policy)
	if err != nil {
		log.Error(err)
		return
	}
	receiver := NewReceiver(codec)
	log.Info("accepted connection")

	buffer := make([]byte, packets.StreamReportSize)
	for {
		report, err := readNextReport(connection, buffer)
		if err == io.EOF {
			return
		} else if err != nil {
			if ctx.Err() == nil {
				log.Warn(err)
			}
			return
		}

		if s.PacketLogging {
			log.Debugf("received report\n%s", kcdebug.DescribeReport(report))
		}

		file, err := receiver.Handle(report)
		if err != nil {
			log.Warnf("dropping transfer: %s", err)
			continue
		}
		if file == nil {
			continue
		}

		log.WithFields(logrus.Fields{
			"name": file.Name,
			"type": file.Type,
			"size": len(file.Data),
		}).Info("received file")
		if _, err := fmt.Fprintf(connection, "received %s %d\n", file.Name, len(file.Data)); err != nil {
			log.Warnf("error acknowledging %s: %s", file.Name, err)
		}
		if s.OnFile != nil {
			s.OnFile(file)
		}
	}
}

// Catch any panics, disconnect the client, and log the reason regardless of
// the state of the connection.
func (*Server) closeConnectionAndRecover(log *logrus.Entry, connection *net.TCPConn) {
	if err := recover(); err != nil {
		log.Errorf("error in client communication: %s\n%s", err, debug.Stack())
	}
	if err := connection.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warnf("failed to close client connection: %s", err)
	}
	log.Info("disconnected")
}

// readNextReport blocks until the next whole report has been read into
// buffer. The leading type byte determines the report size.
func readNextReport(r io.Reader, buffer []byte) ([]byte, error) {
	if _, err := io.ReadFull(r, buffer[:1]); err != nil {
		return nil, err
	}

	var size int
	switch buffer[0] {
	case packets.KeyReportType:
		size = packets.KeyReportSize
	case packets.StreamReportType:
		size = packets.StreamReportSize
	default:
		return nil, fmt.Errorf("unknown report type %#02x", buffer[0])
	}

	if _, err := io.ReadFull(r, buffer[1:size]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buffer[:size], nil
}
