package handlers

import (
	"github.com/quiet-mesh/quietcore/canon"
	"github.com/quiet-mesh/quietcore/envelope"
)

// routingFields merges the type's own plaintext fields with the
// routing fields (event_type, peer_id, network/group/channel id) that
// travel alongside them on the wire.
func routingFields(e *envelope.Envelope, includeSignature bool) map[string]any {
	wire := make(map[string]any, len(e.EventPlaintext)+5)
	for k, v := range e.EventPlaintext {
		if k == "signature" && !includeSignature {
			continue
		}
		wire[k] = v
	}
	wire["event_type"] = e.EventType
	wire["peer_id"] = e.PeerID
	if e.NetworkID != "" {
		wire["network_id"] = e.NetworkID
	}
	if e.GroupID != "" {
		wire["group_id"] = e.GroupID
	}
	if e.ChannelID != "" {
		wire["channel_id"] = e.ChannelID
	}
	return wire
}

// canonicalPlaintext renders e's signable form via canon.Canonicalize
// (§4.1) — the signature field itself is excluded, since a signature
// can't cover its own bytes.
func canonicalPlaintext(e *envelope.Envelope) ([]byte, error) {
	return canon.Canonicalize(routingFields(e, false))
}

// eventLayerPlaintext renders the full wire object the event AEAD
// layer actually encrypts, signature included: this is what a receiver
// recovers after event-crypto's decrypt sub-path opens the layer.
func eventLayerPlaintext(e *envelope.Envelope) ([]byte, error) {
	return canon.Canonicalize(routingFields(e, true))
}

// depsReady reports whether e's declared dependencies are resolved —
// trivially true for an envelope that declares none. Handlers that
// consume plaintext gate on this so resolve-deps always wins the race
// for an envelope with outstanding refs (§8's dependency safety).
func depsReady(e *envelope.Envelope) bool {
	return len(e.Deps) == 0 || e.DepsIncludedAndValid
}

// stringField reads a string field out of a plaintext map, returning
// "" if absent or the wrong type.
func stringField(plaintext map[string]any, key string) string {
	v, _ := plaintext[key].(string)
	return v
}
