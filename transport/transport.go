// Package transport defines the datagram transport the pipeline's
// outgoing path (§4.3.10) and daemon's receive loop depend on: a single
// abstract interface with a real UDP implementation (transport/udp) and
// a loopback implementation for tests (transport/loopback).
package transport

import (
	"context"
	"time"
)

// Datagram is one inbound or outbound wire message: raw_data is
// transit_key_id(32) ‖ transit_ciphertext (§6), never unpacked by the
// transport itself.
type Datagram struct {
	RawData    []byte
	DestIP     string
	DestPort   int
	OriginIP   string
	OriginPort int
	ReceivedAt time.Time
	DueMs      int64
}

// Transport sends and receives raw datagrams. Send may delay delivery
// until DueMs for implementations that support scheduled delivery (the
// real UDP transport queues by DueMs per §11.4); transports that don't
// schedule may send immediately.
type Transport interface {
	// Send queues or immediately delivers dg to its destination.
	Send(ctx context.Context, dg Datagram) error

	// Receive blocks until one datagram arrives or ctx is done.
	Receive(ctx context.Context) (Datagram, error)

	Close() error
}
