// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	applog "olafx/internal/log"
	"olafx/internal/snapshot"
)

// HeaderSize is the fixed packet header preceding the snapshot payload.
const HeaderSize = 4 + 8 + 2

// Source is the observer side of the snapshot cache.
type Source interface {
	Revision() uint64
	Read(dst *snapshot.Snapshot) uint64
}

// PacketSender sends one datagram. *UDPSender implements it.
type PacketSender interface {
	Send(data []byte) error
}

// UDPPublisher packs the latest engine snapshot into a binary packet and
// sends it over UDP. It is driven by a scheduler: every Tick sends at most
// one packet, rate-limited to the configured interval, and only when the
// snapshot revision has changed.
type UDPPublisher struct {
	sender   PacketSender
	source   Source
	interval time.Duration

	mu       sync.Mutex // Serialises Tick.
	lastSent time.Time
	lastRev  uint64

	sequenceNum uint32 // Monotonically increasing sequence number for packets.

	// Pre-allocated buffers to reduce allocations per packet.
	snap         snapshot.Snapshot
	payload      []byte
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 33ms (~30Hz).
func NewUDPPublisher(interval time.Duration, sender PacketSender, source Source) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: snapshot source cannot be nil")
	}

	if interval <= 0 {
		interval = 33 * time.Millisecond // Default to ~30Hz if invalid
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Packet: %d bytes)", interval, HeaderSize+snapshot.Size)

	return &UDPPublisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		payload:      make([]byte, 0, snapshot.Size),
		packetBuffer: bytes.NewBuffer(make([]byte, 0, HeaderSize+snapshot.Size)),
	}, nil
}

// Tick implements scheduler.Client.
func (p *UDPPublisher) Tick(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if now.Sub(p.lastSent) < p.interval {
		return
	}
	rev := p.source.Revision()
	if rev == 0 || rev == p.lastRev {
		return
	}
	p.lastSent = now
	p.buildAndSendPacket(now)
}

/*
UDP Packet Structure

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32 (BE)    | 4            | Monotonically increasing|
| Timestamp         | int64 (BE)     | 8            | Nanoseconds since epoch |
| Payload Length    | uint16 (BE)    | 2            | Snapshot bytes (N)      |
| Snapshot          | snapshot.Size  | N            | Little-endian snapshot  |
+-----------------------------------------------------------------------------+

The header keeps network byte order; the payload is the snapshot's own
stable little-endian layout, copied verbatim.
*/

// buildAndSendPacket performs the following steps:
// 1. Copies the latest snapshot out of the cache.
// 2. Encodes it into the reusable payload buffer.
// 3. Packs the header and payload.
// 4. Sends the resulting packet using the PacketSender.
func (p *UDPPublisher) buildAndSendPacket(now time.Time) {
	// --- 1. Fetch Data ---
	p.lastRev = p.source.Read(&p.snap)

	// --- 2. Encode Snapshot ---
	payload, err := p.snap.AppendBinary(p.payload[:0])
	if err != nil {
		applog.Errorf("UDPPublisher: Error encoding snapshot: %v", err)
		return
	}
	p.payload = payload

	// --- 3. Pack Data ---
	p.sequenceNum++
	p.packetBuffer.Reset()

	err = binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, now.UnixNano())
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, uint16(len(payload)))
	}
	if err == nil {
		_, err = p.packetBuffer.Write(payload)
	}
	if err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	// --- 4. Send Data ---
	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err != nil {
		// Error logging is handled within sender.Send.
		return
	}
	applog.Debugf("UDPPublisher: Sent packet %d (rev %d, %d bytes)", p.sequenceNum, p.lastRev, len(packetBytes))
}

// Packet is a decoded UDP packet.
type Packet struct {
	Sequence  uint32
	Timestamp time.Time
	Snapshot  snapshot.Snapshot
}

var ErrShortPacket = errors.New("udp: short packet")

// DecodePacket parses a packet produced by UDPPublisher.
func DecodePacket(data []byte, pkt *Packet) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	pkt.Sequence = binary.BigEndian.Uint32(data[0:4])
	pkt.Timestamp = time.Unix(0, int64(binary.BigEndian.Uint64(data[4:12])))
	n := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) < HeaderSize+n {
		return fmt.Errorf("%w: payload %d of %d bytes", ErrShortPacket, len(data)-HeaderSize, n)
	}
	return pkt.Snapshot.UnmarshalBinary(data[HeaderSize : HeaderSize+n])
}
