// Package udp is the real Transport implementation: one UDP socket,
// sized to the protocol's 600-byte datagram ceiling (§6), with an
// outgoing delay queue ordered by DueMs (§11.4) so the outgoing path's
// scheduled deliveries (sync responses, deliberately paced retries)
// aren't all flushed in one instant.
package udp

import (
	"container/heap"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/transport"
)

// MaxDatagramBytes is the wire ceiling a single raw_data payload may
// not exceed (§6).
const MaxDatagramBytes = 600

// Transport is a UDP socket plus a due-time-ordered outgoing queue.
type Transport struct {
	conn  *net.UDPConn
	clock clock.Clock

	mu      sync.Mutex
	pending dueQueue
	wake    chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// Listen opens a UDP socket at listenAddr ("ip:port" or ":port").
func Listen(listenAddr string, clk clock.Clock) (*Transport, error) {
	addr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %q: %w", listenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp: listen %q: %w", listenAddr, err)
	}
	t := &Transport{
		conn:   conn,
		clock:  clk,
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go t.flushLoop()
	return t, nil
}

// Send enqueues dg for delivery at DueMs (or immediately if DueMs is
// zero or already past).
func (t *Transport) Send(ctx context.Context, dg transport.Datagram) error {
	if len(dg.RawData) > MaxDatagramBytes {
		return fmt.Errorf("udp: datagram of %d bytes exceeds %d-byte ceiling", len(dg.RawData), MaxDatagramBytes)
	}
	t.mu.Lock()
	heap.Push(&t.pending, &queuedDatagram{dg: dg, dueMs: dg.DueMs})
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
	return nil
}

// Receive blocks for the next inbound datagram.
func (t *Transport) Receive(ctx context.Context) (transport.Datagram, error) {
	buf := make([]byte, MaxDatagramBytes)
	type result struct {
		dg  transport.Datagram
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			done <- result{err: err}
			return
		}
		raw := make([]byte, n)
		copy(raw, buf[:n])
		done <- result{dg: transport.Datagram{
			RawData:    raw,
			OriginIP:   addr.IP.String(),
			OriginPort: addr.Port,
			ReceivedAt: t.clock.Now(),
		}}
	}()

	select {
	case r := <-done:
		return r.dg, r.err
	case <-ctx.Done():
		return transport.Datagram{}, ctx.Err()
	case <-t.closed:
		return transport.Datagram{}, net.ErrClosed
	}
}

func (t *Transport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return t.conn.Close()
}

// flushLoop wakes whenever Send enqueues a datagram or the earliest
// pending due time elapses, and writes every datagram whose due time
// has arrived.
func (t *Transport) flushLoop() {
	for {
		t.mu.Lock()
		var wait time.Duration
		if t.pending.Len() == 0 {
			wait = time.Hour
		} else {
			due := t.pending[0].dueMs
			nowMs := t.clock.NowMillis()
			if due <= nowMs {
				wait = 0
			} else {
				wait = time.Duration(due-nowMs) * time.Millisecond
			}
		}
		t.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-t.closed:
			timer.Stop()
			return
		case <-t.wake:
			timer.Stop()
		case <-timer.C:
		}

		t.mu.Lock()
		nowMs := t.clock.NowMillis()
		var ready []*queuedDatagram
		for t.pending.Len() > 0 && t.pending[0].dueMs <= nowMs {
			ready = append(ready, heap.Pop(&t.pending).(*queuedDatagram))
		}
		t.mu.Unlock()

		for _, q := range ready {
			t.deliver(q.dg)
		}
	}
}

func (t *Transport) deliver(dg transport.Datagram) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(dg.DestIP, strconv.Itoa(dg.DestPort)))
	if err != nil {
		return
	}
	_, _ = t.conn.WriteToUDP(dg.RawData, addr)
}

type queuedDatagram struct {
	dg    transport.Datagram
	dueMs int64
}

// dueQueue is a container/heap.Interface ordering queued datagrams by
// due time, earliest first.
type dueQueue []*queuedDatagram

func (q dueQueue) Len() int            { return len(q) }
func (q dueQueue) Less(i, j int) bool  { return q[i].dueMs < q[j].dueMs }
func (q dueQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *dueQueue) Push(x any)         { *q = append(*q, x.(*queuedDatagram)) }
func (q *dueQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
