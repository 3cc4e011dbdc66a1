package commands

import (
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/errkind"
)

func init() {
	Register("announce_address", announceAddress)
}

// announceAddress emits an address event advertising this peer's
// transport endpoint and transit key within a network — the row other
// members' outgoing resolution and sync probes look up in
// peer_transit_keys (§4.3.10, §4.3.11).
func announceAddress(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	peerID := params.str("peer_id")
	networkID := params.str("network_id")
	transitKeyID := params.str("transit_key_id")
	ip := params.str("ip")
	if peerID == "" || networkID == "" || transitKeyID == "" || ip == "" {
		return nil, errkind.New(errkind.InputMalformed,
			"announce_address: peer_id, network_id, transit_key_id and ip are required")
	}

	e := &envelope.Envelope{
		EventType:   events.TypeAddress,
		PeerID:      peerID,
		NetworkID:   networkID,
		SelfCreated: true,
		EventPlaintext: map[string]any{
			"transit_key_id": transitKeyID,
			"ip":             ip,
			"port":           params.intOr("port", 0),
		},
	}
	seedDeps(e)
	return []*envelope.Envelope{e}, nil
}
