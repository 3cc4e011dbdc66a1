package commands

import (
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/errkind"
)

func init() {
	Register("add_member", addMember)
	Register("remove_member", removeMember)
}

func addMember(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	return memberEvent(params, "add")
}

func removeMember(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	return memberEvent(params, "remove")
}

func memberEvent(params Params, action string) ([]*envelope.Envelope, error) {
	groupID := params.str("group_id")
	actingPeerID := params.str("peer_id")
	targetPeerID := params.str("target_peer_id")
	if groupID == "" || actingPeerID == "" || targetPeerID == "" {
		return nil, errkind.New(errkind.InputMalformed, "member: group_id, peer_id and target_peer_id are required")
	}

	e := &envelope.Envelope{
		EventType:   events.TypeMember,
		PeerID:      actingPeerID,
		GroupID:     groupID,
		SelfCreated: true,
		EventPlaintext: map[string]any{
			"action":         action,
			"target_peer_id": targetPeerID,
			"role":           params.strOr("role", "member"),
		},
	}
	seedDeps(e)
	return []*envelope.Envelope{e}, nil
}
