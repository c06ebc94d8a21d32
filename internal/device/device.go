// Package device finds keyboard devices and opens transports to them.
package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/keycast/keycast/internal/core"
	"github.com/keycast/keycast/internal/transport"
)

// ErrNoDevice is returned when opening a device that has not been found.
var ErrNoDevice = errors.New("device: no such keyboard device")

type EventKind int

const (
	DeviceFound EventKind = iota
	DeviceConnected
)

func (k EventKind) String() string {
	switch k {
	case DeviceFound:
		return "found"
	case DeviceConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Event notifies the observer about a device.
type Event struct {
	Kind EventKind
	Name string
}

type Kind int

const (
	Serial Kind = iota
	Server
)

// Device is a keyboard device that can be opened.
type Device struct {
	// Name is unique among the found devices.
	Name string
	// Address is the serial port name or the server's IP address.
	Address string
	Kind    Kind
}

// Manager keeps the list of found devices and the currently open transport.
type Manager struct {
	Logger *logrus.Logger
	// OnEvent is called for every found or connected device. It may be nil.
	OnEvent func(Event)

	BaudRate         int
	ServerPort       int
	DialTimeout      time.Duration
	DiscoveryTimeout time.Duration

	listPorts      func() ([]string, error)
	openPort       func(name string, baudRate int) (io.ReadWriteCloser, error)
	broadcastAddrs func() ([]net.IP, error)

	mu      sync.Mutex
	devices []Device
	current transport.Transport
}

// NewManager builds a Manager from the transport section of cfg.
func NewManager(cfg *core.Config, logger *logrus.Logger, onEvent func(Event)) *Manager {
	return &Manager{
		Logger:           logger,
		OnEvent:          onEvent,
		BaudRate:         cfg.Transport.BaudRate,
		ServerPort:       cfg.Transport.ServerPort,
		DialTimeout:      cfg.Transport.DialTimeout,
		DiscoveryTimeout: cfg.Transport.DiscoveryTimeout,
		listPorts:        transport.ListSerialPorts,
		broadcastAddrs:   BroadcastAddresses,
	}
}

// Find enumerates serial ports and then broadcasts for keyboard servers.
func (m *Manager) Find(ctx context.Context) error {
	if err := m.FindSerialPorts(); err != nil {
		m.Logger.Warnf("error listing serial ports: %s", err)
	}
	return m.DiscoverServers(ctx)
}

// FindSerialPorts adds every serial port on this machine.
func (m *Manager) FindSerialPorts() error {
	ports, err := m.listPorts()
	if err != nil {
		return err
	}
	for _, name := range ports {
		m.AddDevice(Device{Name: name, Address: name, Kind: Serial})
	}
	return nil
}

// AddDevice records d and emits DeviceFound unless a device with the same
// name is already known.
func (m *Manager) AddDevice(d Device) {
	m.mu.Lock()
	for _, known := range m.devices {
		if known.Name == d.Name {
			m.mu.Unlock()
			return
		}
	}
	m.devices = append(m.devices, d)
	m.mu.Unlock()

	m.Logger.WithField("device", d.Name).Debug("keyboard device found")
	m.emit(Event{Kind: DeviceFound, Name: d.Name})
}

// Devices returns the found devices in the order they were found.
func (m *Manager) Devices() []Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Device(nil), m.devices...)
}

// Open closes the current transport, if any, and connects to the named device.
func (m *Manager) Open(ctx context.Context, name string) (transport.Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var device *Device
	for i := range m.devices {
		if m.devices[i].Name == name {
			device = &m.devices[i]
			break
		}
	}
	if device == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDevice, name)
	}

	if m.current != nil {
		if err := m.current.Close(); err != nil {
			m.Logger.Warnf("error closing %s: %s", m.current.Name(), err)
		}
		m.current = nil
	}

	var (
		t   transport.Transport
		err error
	)
	switch device.Kind {
	case Serial:
		t, err = m.openSerial(device.Address)
	case Server:
		addr := net.JoinHostPort(device.Address, strconv.Itoa(m.ServerPort))
		t, err = transport.DialSocket(ctx, addr, m.DialTimeout, m.Logger)
	}
	if err != nil {
		return nil, err
	}

	m.current = t
	m.Logger.Infof("opened [%s]", device.Address)
	m.emit(Event{Kind: DeviceConnected, Name: device.Name})
	return t, nil
}

// OpenLatest opens the most recently found device.
func (m *Manager) OpenLatest(ctx context.Context) (transport.Transport, error) {
	devices := m.Devices()
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}
	return m.Open(ctx, devices[len(devices)-1].Name)
}

// Close closes the current transport.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}

func (m *Manager) openSerial(name string) (transport.Transport, error) {
	if m.openPort != nil {
		port, err := m.openPort(name, m.BaudRate)
		if err != nil {
			return nil, err
		}
		return transport.NewSerial(name, port, m.Logger), nil
	}
	return transport.OpenSerial(name, m.BaudRate, m.Logger)
}

func (m *Manager) emit(e Event) {
	if m.OnEvent != nil {
		m.OnEvent(e)
	}
}
