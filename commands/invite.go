package commands

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/errkind"
)

func init() {
	Register("create_invite", createInvite)
	Register("create_link_invite", createLinkInvite)
}

func randomCode() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// createInvite emits a group-scoped invite redeemable by a peer who
// already has some relationship with the network.
func createInvite(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	groupID := params.str("group_id")
	peerID := params.str("peer_id")
	if groupID == "" || peerID == "" {
		return nil, errkind.New(errkind.InputMalformed, "create_invite: group_id and peer_id are required")
	}
	code, err := randomCode()
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "create_invite: generate code", err)
	}

	e := &envelope.Envelope{
		EventType:   events.TypeInvite,
		PeerID:      peerID,
		GroupID:     groupID,
		SelfCreated: true,
		EventPlaintext: map[string]any{
			"invite_id":     derivedID("invite:" + groupID + ":" + code),
			"code":          code,
			"expires_at_ms": clk.NowMillis() + params.intOr("ttl_ms", 7*24*3600*1000),
		},
	}
	seedDeps(e)
	return []*envelope.Envelope{e}, nil
}

// createLinkInvite emits a network-wide invite redeemable without a
// prior peer relationship: a shareable link rather than a direct
// invite (§11.7).
func createLinkInvite(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	networkID := params.str("network_id")
	peerID := params.str("peer_id")
	if networkID == "" || peerID == "" {
		return nil, errkind.New(errkind.InputMalformed, "create_link_invite: network_id and peer_id are required")
	}
	code, err := randomCode()
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "create_link_invite: generate code", err)
	}

	e := &envelope.Envelope{
		EventType:   events.TypeLinkInvite,
		PeerID:      peerID,
		NetworkID:   networkID,
		SelfCreated: true,
		EventPlaintext: map[string]any{
			"invite_id":     derivedID("link_invite:" + networkID + ":" + code),
			"code":          code,
			"expires_at_ms": clk.NowMillis() + params.intOr("ttl_ms", 7*24*3600*1000),
		},
	}
	seedDeps(e)
	return []*envelope.Envelope{e}, nil
}
