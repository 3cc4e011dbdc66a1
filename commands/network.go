package commands

import (
	"encoding/hex"

	sagecrypto "github.com/quiet-mesh/quietcore/crypto"
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/errkind"
)

func init() {
	Register("create_network", createNetwork)
	Register("join_network", joinNetwork)
	Register("create_group", createGroup)
	Register("create_channel", createChannel)
}

// joinNetwork emits the peer event announcing an already-established
// identity's membership in a network the caller learned of some other
// way (an invite code, a link invite) — distinct from create_network,
// which bootstraps a brand new network and its founding identity
// together.
func joinNetwork(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	peerID := params.str("peer_id")
	networkID := params.str("network_id")
	publicKey := params.strOr("public_key", peerID)
	if peerID == "" || networkID == "" {
		return nil, errkind.New(errkind.InputMalformed, "join_network: peer_id and network_id are required")
	}

	e := &envelope.Envelope{
		EventType:   events.TypePeer,
		PeerID:      peerID,
		SelfCreated: true,
		EventPlaintext: map[string]any{
			"network_id": networkID,
			// peer_id is the hex public key (§11.6), so the embedded
			// verification root defaults to it.
			"public_key": publicKey,
			"key_type":   params.strOr("key_type", "ed25519"),
			"name":       params.str("name"),
		},
	}
	seedDeps(e)
	return []*envelope.Envelope{e}, nil
}

// derivedID derives a stable, content-derived id (not random) by
// hashing seed; callers build the seed from the ids the new entity is
// scoped under, so the same inputs always yield the same id.
func derivedID(seed string) string {
	sum := sagecrypto.Hash256([]byte(seed))
	return hex.EncodeToString(sum[:16])
}

// createNetwork implements S2: a network has no meaning without an
// author, so this command bootstraps a fresh identity first and emits
// it ahead of the network event — order is load-bearing, since the
// network's own signature depends on the identity's signing key
// existing by the time SignOutgoing runs (§9 "multi-emission
// commands").
func createNetwork(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	identityEnvs, err := createIdentity(clk, Params{"name": params.str("creator_name")})
	if err != nil {
		return nil, err
	}
	identity := identityEnvs[0]

	networkID := params.strOr("network_id", derivedID(identity.PeerID+":network"))
	network := &envelope.Envelope{
		EventType:   events.TypeNetwork,
		PeerID:      identity.PeerID,
		NetworkID:   networkID,
		SelfCreated: true,
		EventPlaintext: map[string]any{
			"name": params.strOr("name", "network"),
		},
	}
	seedDeps(network)

	return []*envelope.Envelope{identity, network}, nil
}

// createGroup emits a single group event scoped to an existing
// network; the caller supplies network_id and the acting peer_id
// (resolved by the caller from a prior create_identity/create_network
// response — commands never read the store to look it up themselves).
func createGroup(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	networkID := params.str("network_id")
	peerID := params.str("peer_id")
	if networkID == "" || peerID == "" {
		return nil, errkind.New(errkind.InputMalformed, "create_group: network_id and peer_id are required")
	}
	groupID := params.strOr("group_id", derivedID(networkID+":"+peerID+":group"))

	e := &envelope.Envelope{
		EventType:   events.TypeGroup,
		PeerID:      peerID,
		NetworkID:   networkID,
		GroupID:     groupID,
		SelfCreated: true,
		EventPlaintext: map[string]any{
			"name": params.strOr("name", "group"),
		},
	}
	seedDeps(e)
	return []*envelope.Envelope{e}, nil
}

// createChannel emits a single channel event scoped to an existing
// group.
func createChannel(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	groupID := params.str("group_id")
	peerID := params.str("peer_id")
	if groupID == "" || peerID == "" {
		return nil, errkind.New(errkind.InputMalformed, "create_channel: group_id and peer_id are required")
	}
	channelID := params.strOr("channel_id", derivedID(groupID+":channel:"+params.strOr("name", "general")))

	e := &envelope.Envelope{
		EventType:   events.TypeChannel,
		PeerID:      peerID,
		GroupID:     groupID,
		ChannelID:   channelID,
		SelfCreated: true,
		EventPlaintext: map[string]any{
			"name": params.strOr("name", "general"),
		},
	}
	seedDeps(e)
	return []*envelope.Envelope{e}, nil
}
