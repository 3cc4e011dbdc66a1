// SPDX-License-Identifier: LGPL-3.0-or-later

// Package core wires the envelope pipeline, commands, queries and
// scheduler into the single entry point a process surface (cmd/, or a
// test) drives: CoreContext. It owns no business logic of its own —
// every operation it exposes is a thin, explicit call into commands,
// queries, handlers or scheduler: the process that owns one store and
// one transport and runs the pipeline to quiescence for every
// top-level request.
package core

import (
	"context"

	"github.com/quiet-mesh/quietcore/commands"
	"github.com/quiet-mesh/quietcore/config"
	"github.com/quiet-mesh/quietcore/crypto"
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/handlers"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/queries"
	"github.com/quiet-mesh/quietcore/scheduler"
	"github.com/quiet-mesh/quietcore/store"
	"github.com/quiet-mesh/quietcore/store/memory"
	"github.com/quiet-mesh/quietcore/transport"
)

// CommandResult is what a command invocation returns: the ids of any
// events the command's envelopes carried (keyed by event_type, for
// multi-emission commands like create_network) and the raw params
// echoed back, mirroring §4.4's response-handler signature
// `(stored_ids, original_params, read_only_db)` minus the db, which
// callers reach separately through Query.
type CommandResult struct {
	StoredIDs map[string]string `json:"ids"`
	Params    commands.Params   `json:"params"`
}

// CoreContext bundles one store, one transport, one clock and one
// crypto mode with the runner built over them (§5: "single-threaded
// cooperative pipeline per store"). Two CoreContext values over two
// stores and a shared transport.loopback.Network is the standard way
// to set up an Alice/Bob pair in tests (§10.4).
type CoreContext struct {
	Store     store.Store
	Clock     clock.Clock
	Transport transport.Transport
	Mode      crypto.Mode
	Sync      *handlers.SyncCache
	Runner    *envelope.Runner
	Scheduler *scheduler.Scheduler
}

// New builds a CoreContext over the given store and transport,
// registers the sync_request scheduler job against the resulting
// handler deps, and wires a Scheduler driven by cfg.Scheduler.Jobs.
func New(st store.Store, tr transport.Transport, clk clock.Clock, cfg *config.Config) *CoreContext {
	mode := crypto.Mode(cfg.CryptoMode)
	if mode == "" {
		mode = crypto.ModeReal
	}
	deps := handlers.Deps{
		Store:     st,
		Clock:     clk,
		Mode:      mode,
		Transport: tr,
		Sync:      handlers.NewSyncCache(),
	}
	scheduler.RegisterSyncRequestJob(deps)

	runner := handlers.NewRunner(deps)
	sched := scheduler.New(st, clk, cfg.Scheduler.Jobs, runner.Run)

	return &CoreContext{
		Store:     st,
		Clock:     clk,
		Transport: tr,
		Mode:      mode,
		Sync:      deps.Sync,
		Runner:    runner,
		Scheduler: sched,
	}
}

// NewInMemory builds a CoreContext over an in-memory store, the
// protocol's default for tests and throwaway processes (§11.2).
func NewInMemory(tr transport.Transport, clk clock.Clock, cfg *config.Config) *CoreContext {
	return New(memory.New(), tr, clk, cfg)
}

// Command looks up name in the commands registry, builds its
// envelope(s), runs them through the pipeline to quiescence, and
// reports, per event type, the domain id of what each stored event
// created (see domainID), falling back to the event id.
func (c *CoreContext) Command(ctx context.Context, name string, params commands.Params) (CommandResult, error) {
	fn, ok := commands.Lookup(name)
	if !ok {
		return CommandResult{}, errkind.New(errkind.InputMalformed, "core: unknown command "+name)
	}

	var result CommandResult
	err := c.Store.WithWriteLease(ctx, func(ctx context.Context) error {
		envs, err := fn(c.Clock, params)
		if err != nil {
			return err
		}
		terminal, err := c.Runner.RunCollecting(ctx, envs...)
		if err != nil {
			return err
		}

		ids := make(map[string]string, len(terminal))
		for _, e := range terminal {
			if e.EventID == "" {
				continue
			}
			ids[e.EventType] = domainID(e)
		}
		result = CommandResult{StoredIDs: ids, Params: params}
		return nil
	})
	return result, err
}

// domainID picks the id a caller actually wants back for an event the
// pipeline finished processing: the id of the thing the event created,
// not the content hash of its ciphertext — create_network's response
// is useless if "network" maps to a hash no query accepts.
func domainID(e *envelope.Envelope) string {
	switch e.EventType {
	case events.TypeIdentity, events.TypePeer:
		return e.PeerID
	case events.TypeNetwork:
		return e.NetworkID
	case events.TypeGroup:
		return e.GroupID
	case events.TypeChannel:
		return e.ChannelID
	case events.TypeMessage:
		if id, ok := e.EventPlaintext["message_id"].(string); ok && id != "" {
			return id
		}
	case events.TypeInvite, events.TypeLinkInvite:
		if id, ok := e.EventPlaintext["invite_id"].(string); ok && id != "" {
			return id
		}
	}
	return e.EventID
}

// Query looks up name in the queries registry and runs it against the
// store's read-only query surface. §6: "write verbs are rejected at
// the connection layer" — Query consults the commands registry only to
// reject a command name with queries.ErrWriteVerb, so a caller cannot
// invoke a command by name through this path.
func (c *CoreContext) Query(ctx context.Context, name string, params queries.Params) ([]queries.Row, error) {
	fn, ok := queries.Lookup(name)
	if !ok {
		if _, isCommand := commands.Lookup(name); isCommand {
			return nil, queries.ErrWriteVerb
		}
		return nil, errkind.New(errkind.InputMalformed, "core: unknown query "+name)
	}
	return fn(ctx, c.Store, params)
}

// HandleDatagram seeds one received datagram into the pipeline and
// runs it to quiescence — the entry point a transport receive-loop
// calls for every inbound packet (§4.3.1).
func (c *CoreContext) HandleDatagram(ctx context.Context, dg transport.Datagram) error {
	return c.Store.WithWriteLease(ctx, func(ctx context.Context) error {
		return c.Runner.Run(ctx, &envelope.Envelope{
			RawData:    dg.RawData,
			OriginIP:   dg.OriginIP,
			OriginPort: dg.OriginPort,
			ReceivedAt: dg.ReceivedAt,
		})
	})
}

// Tick evaluates due scheduler jobs and runs their emitted envelopes
// through the pipeline, returning the number enqueued (§4.5, §6
// "Scheduler tick: tick() -> envelopes_enqueued:int").
func (c *CoreContext) Tick(ctx context.Context) (int, error) {
	var n int
	err := c.Store.WithWriteLease(ctx, func(ctx context.Context) error {
		var err error
		n, err = c.Scheduler.Tick(ctx)
		return err
	})
	return n, err
}

// ReceiveLoop polls the transport until ctx is done, handling one
// datagram at a time. Intended to run in its own goroutine; errors
// from individual datagrams are reported to onError rather than
// stopping the loop, since one malformed packet must not take down
// the process (§4.3.1's "receive may reorder, drop, or duplicate").
func (c *CoreContext) ReceiveLoop(ctx context.Context, onError func(error)) {
	for {
		dg, err := c.Transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if onError != nil {
				onError(err)
			}
			continue
		}
		if err := c.HandleDatagram(ctx, dg); err != nil && onError != nil {
			onError(err)
		}
	}
}
