// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"

	applog "olafx/internal/log"
)

// MaxDatagram is the largest payload a single IPv4 UDP packet can carry.
const MaxDatagram = 65507

var ErrSenderClosed = errors.New("UDP sender is closed")

// UDPSender sends snapshot packets to one target over a connected socket.
type UDPSender struct {
	mu     sync.Mutex // Protects conn during Close
	conn   *net.UDPConn
	target string
	closed bool

	sent     uint64
	failed   uint64
	failing  bool // Last send failed; suppresses repeated warnings.
	lastFail error
}

// SenderStats counts packets since the sender was created.
type SenderStats struct {
	Sent   uint64
	Failed uint64
}

// NewUDPSender creates a new UDPSender targeting the specified address.
// The address should be in the format "host:port", e.g., "127.0.0.1:9090".
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address '%s': %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP for target '%s': %w", targetAddress, err)
	}

	applog.Infof("UDP Sender: Sending snapshots to %s", conn.RemoteAddr())

	return &UDPSender{
		conn:   conn,
		target: conn.RemoteAddr().String(),
	}, nil
}

// Send transmits data as one datagram. With no listener on the target a
// connected socket reports refused sends; only the first failure of a run
// is logged.
func (s *UDPSender) Send(data []byte) error {
	if len(data) > MaxDatagram {
		return fmt.Errorf("UDP packet of %d bytes exceeds %d", len(data), MaxDatagram)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSenderClosed
	}

	if _, err := s.conn.Write(data); err != nil {
		s.failed++
		s.lastFail = err
		if !s.failing {
			s.failing = true
			applog.Warnf("UDP Sender: Error sending to %s: %v", s.target, err)
		}
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	if s.failing {
		s.failing = false
		applog.Infof("UDP Sender: Sending to %s again after %d failures", s.target, s.failed)
	}
	s.sent++
	return nil
}

// Stats returns the packet counters.
func (s *UDPSender) Stats() SenderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SenderStats{Sent: s.sent, Failed: s.failed}
}

// Target returns the resolved remote address.
func (s *UDPSender) Target() string { return s.target }

// Close closes the underlying UDP connection.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	applog.WithFields(applog.Fields{
		"target": s.target,
		"sent":   s.sent,
		"failed": s.failed,
	}).Info("UDP Sender: Closed")

	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close UDP connection: %w", err)
	}
	return nil
}

var _ PacketSender = (*UDPSender)(nil)
