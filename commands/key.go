package commands

import (
	"github.com/quiet-mesh/quietcore/crypto/rotation"
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/errkind"
)

func init() {
	Register("distribute_group_key", distributeGroupKey)
}

// distributeGroupKey mints a fresh group/channel secret and seals it
// to one recipient peer (event-crypto's encrypt sub-path, §4.3.5,
// chooses the seal-to-peer path whenever EventType==key and Secret is
// set). Distributing a key to N group members is N calls to this
// command, one envelope each; there is no broadcast primitive at this
// layer, since a sealed box only ever has one recipient.
func distributeGroupKey(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	groupID := params.str("group_id")
	recipientPeerID := params.str("peer_id")
	if groupID == "" || recipientPeerID == "" {
		return nil, errkind.New(errkind.InputMalformed, "distribute_group_key: group_id and peer_id are required")
	}

	// Epoch 0 of the group's key schedule; later epochs advance via
	// rotation.AdvanceEpoch and reach members as sealed blind factors.
	epoch, err := rotation.NewGroupSecret()
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "distribute_group_key: generate secret", err)
	}
	secret := epoch.EventKey(groupID)[:]

	e := &envelope.Envelope{
		EventType:   events.TypeKey,
		PeerID:      recipientPeerID,
		GroupID:     groupID,
		SelfCreated: true,
		// Sealed boxes authenticate implicitly (§4.3.5); key events
		// skip the signature stage entirely.
		SigChecked: true,
		Secret:     secret,
		EventPlaintext: map[string]any{
			// The group id doubles as the key id: event-crypto encrypts
			// group-scoped events under whatever secret is stored for
			// the group, and the recipient's unseal path files this
			// secret under the same id.
			"prekey_id": params.strOr("prekey_id", groupID),
			"tag_id":    params.strOr("tag_id", groupID),
		},
	}
	seedDeps(e)
	return []*envelope.Envelope{e}, nil
}
