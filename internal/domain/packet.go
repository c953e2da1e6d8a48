// Package domain: simulated WireGuard messages.
package domain

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// PacketType is the WireGuard message type carried by a Packet.
type PacketType int

const (
	PacketHandshakeInit PacketType = iota
	PacketHandshakeResponse
	PacketKeepalive
	PacketData
)

// String returns the wire name of the packet type.
func (t PacketType) String() string {
	switch t {
	case PacketHandshakeInit:
		return "handshake_init"
	case PacketHandshakeResponse:
		return "handshake_response"
	case PacketKeepalive:
		return "keepalive"
	case PacketData:
		return "data"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the packet type as its string name.
func (t PacketType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// Message sizes in bytes, as on the real wire.
const (
	HandshakeInitSize     = 148
	HandshakeResponseSize = 92
	KeepaliveSize         = 32
)

// DefaultSize returns the on-wire size of a message of type t.
// Data packets have no fixed size and return 0.
func (t PacketType) DefaultSize() int {
	switch t {
	case PacketHandshakeInit:
		return HandshakeInitSize
	case PacketHandshakeResponse:
		return HandshakeResponseSize
	case PacketKeepalive:
		return KeepaliveSize
	default:
		return 0
	}
}

// Packet is one simulated message between two nodes.
// Construct with NewPacket; a Packet is not modified after creation.
type Packet struct {
	ID        uuid.UUID         `json:"id"`
	Src       string            `json:"src"`
	Dst       string            `json:"dst"`
	Type      PacketType        `json:"type"`
	Payload   map[string]string `json:"payload,omitempty"`
	SizeBytes int               `json:"size_bytes"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewPacket creates a packet stamped with the current time. The payload map
// is copied. A size <= 0 selects the default size for the packet type.
func NewPacket(src, dst string, typ PacketType, payload map[string]string, size int) Packet {
	if size <= 0 {
		size = typ.DefaultSize()
	}
	return Packet{
		ID:        uuid.New(),
		Src:       src,
		Dst:       dst,
		Type:      typ,
		Payload:   maps.Clone(payload),
		SizeBytes: size,
		Timestamp: time.Now(),
	}
}

// String returns a short human-readable description.
func (p Packet) String() string {
	return fmt.Sprintf("%s -> %s %s length=%d", p.Src, p.Dst, p.Type, p.SizeBytes)
}
