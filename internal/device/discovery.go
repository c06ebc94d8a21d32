package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

var linkLocal = net.IPNet{IP: net.IPv4(169, 254, 0, 0).To4(), Mask: net.CIDRMask(16, 32)}

// DiscoverServers sends an empty datagram to the server port of every
// broadcast address and adds each server that answers within
// DiscoveryTimeout. Replies carry the server's host name.
func (m *Manager) DiscoverServers(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return fmt.Errorf("error opening discovery socket: %w", err)
	}
	defer conn.Close()

	addrs, err := m.broadcastAddrs()
	if err != nil {
		return fmt.Errorf("error listing broadcast addresses: %w", err)
	}
	for _, ip := range addrs {
		dst := &net.UDPAddr{IP: ip, Port: m.ServerPort}
		if _, err := conn.WriteToUDP(nil, dst); err != nil {
			m.Logger.Warnf("error broadcasting to %s: %s", dst, err)
		}
	}

	deadline := time.Now().Add(m.DiscoveryTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			// Unblock the read below.
			conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	buf := make([]byte, 256)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}

		hostname := string(buf[:n])
		address := from.IP.String()
		m.Logger.Infof("keyboard server found: %s(%s)", address, hostname)
		m.AddDevice(Device{
			Name:    fmt.Sprintf("%s(%s)", address, hostname),
			Address: address,
			Kind:    Server,
		})
	}
}

// BroadcastAddresses returns the IPv4 broadcast address of every network
// interface that is up, skipping loopback and link-local networks.
func BroadcastAddresses() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var broadcasts []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if b := broadcastAddress(ipNet); b != nil {
				broadcasts = append(broadcasts, b)
			}
		}
	}
	return broadcasts, nil
}

// broadcastAddress returns the broadcast address of an IPv4 network, or nil
// for other networks.
func broadcastAddress(ipNet *net.IPNet) net.IP {
	ip := ipNet.IP.To4()
	mask := ipNet.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if ip == nil || ip.IsLoopback() || len(mask) != net.IPv4len {
		return nil
	}
	if linkLocal.Contains(ip) {
		return nil
	}
	b := make(net.IP, net.IPv4len)
	for i := range ip {
		b[i] = ip[i] | ^mask[i]
	}
	return b
}
