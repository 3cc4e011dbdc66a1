// Package loopback provides an in-process Transport for tests: two or
// more loopback transports can be wired together so envelopes sent by
// one peer's pipeline are observed by another's, without a real socket.
package loopback

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/quiet-mesh/quietcore/transport"
)

// Transport is an in-memory datagram channel addressed by "ip:port"
// string keys. Peers sharing a Network are mutually reachable; Send
// looks the destination up in the network's routing table and delivers
// directly into its inbox channel.
type Transport struct {
	addr    string
	network *Network
	inbox   chan transport.Datagram
	closed  chan struct{}
	once    sync.Once
}

// Network is the shared fabric a set of loopback Transports register
// into, keyed by "ip:port".
type Network struct {
	mu    sync.Mutex
	peers map[string]*Transport
}

// NewNetwork returns an empty loopback fabric.
func NewNetwork() *Network {
	return &Network{peers: make(map[string]*Transport)}
}

// NewTransport registers a Transport at addr ("ip:port") on net.
func (net *Network) NewTransport(addr string) *Transport {
	t := &Transport{
		addr:    addr,
		network: net,
		inbox:   make(chan transport.Datagram, 256),
		closed:  make(chan struct{}),
	}
	net.mu.Lock()
	net.peers[addr] = t
	net.mu.Unlock()
	return t
}

func (t *Transport) Send(ctx context.Context, dg transport.Datagram) error {
	dest := net.JoinHostPort(dg.DestIP, strconv.Itoa(dg.DestPort))
	t.network.mu.Lock()
	peer, ok := t.network.peers[dest]
	t.network.mu.Unlock()
	if !ok {
		// No listener at this address; the real UDP transport would
		// simply have the datagram vanish into the network too.
		return nil
	}
	dg.OriginIP, dg.OriginPort = splitAddr(t.addr)
	select {
	case peer.inbox <- dg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-peer.closed:
		return nil
	}
}

func (t *Transport) Receive(ctx context.Context) (transport.Datagram, error) {
	select {
	case dg := <-t.inbox:
		return dg, nil
	case <-ctx.Done():
		return transport.Datagram{}, ctx.Err()
	case <-t.closed:
		return transport.Datagram{}, net.ErrClosed
	}
}

func (t *Transport) Close() error {
	t.once.Do(func() { close(t.closed) })
	t.network.mu.Lock()
	delete(t.network.peers, t.addr)
	t.network.mu.Unlock()
	return nil
}

func splitAddr(addr string) (ip string, port int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	p, _ := strconv.Atoi(portStr)
	return host, p
}
