package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quiet-mesh/quietcore/envelope"
)

func TestLookupKnownTypes(t *testing.T) {
	for _, typ := range []string{
		TypeIdentity, TypePeer, TypeNetwork, TypeGroup, TypeChannel,
		TypeMessage, TypeMember, TypeInvite, TypeLinkInvite, TypeKey, TypeAddress,
	} {
		t.Run(typ, func(t *testing.T) {
			spec, ok := Lookup(typ)
			require.True(t, ok, "type %q must be registered", typ)
			require.Equal(t, typ, spec.Type)
			require.NotNil(t, spec.Validate)
			require.NotNil(t, spec.Project)
			require.NotNil(t, spec.Deps)
		})
	}
}

func TestLookupUnknownType(t *testing.T) {
	_, ok := Lookup("no_such_type")
	require.False(t, ok)
}

func TestIdentitySpec(t *testing.T) {
	spec, ok := Lookup(TypeIdentity)
	require.True(t, ok)

	valid := &envelope.Envelope{
		PeerID:         "peer1",
		EventPlaintext: map[string]any{"public_key": "pub", "key_type": "ed25519", "name": "alice"},
	}
	require.Empty(t, spec.Deps(valid))
	require.True(t, spec.Validate(valid))

	deltas := spec.Project(valid)
	require.Len(t, deltas, 1)
	require.Equal(t, envelope.OpInsert, deltas[0].Op)
	require.Equal(t, "peers", deltas[0].Table)
	require.Equal(t, "peer1", deltas[0].Data["id"])
	require.Equal(t, "", deltas[0].Data["network_id"])

	missingKey := &envelope.Envelope{PeerID: "peer1", EventPlaintext: map[string]any{"key_type": "ed25519"}}
	require.False(t, spec.Validate(missingKey))
}

func TestPeerSpecIsSelfIntroducing(t *testing.T) {
	spec, ok := Lookup(TypePeer)
	require.True(t, ok)

	e := &envelope.Envelope{PeerID: "peer1", EventPlaintext: map[string]any{"network_id": "net1", "public_key": "ab12"}}
	// A peer event is the introduction of its author — it cannot depend
	// on a row only it can create.
	require.Empty(t, spec.Deps(e))
	require.True(t, spec.Validate(e))

	noKey := &envelope.Envelope{PeerID: "peer1", EventPlaintext: map[string]any{"network_id": "net1"}}
	require.False(t, spec.Validate(noKey))

	deltas := spec.Project(e)
	require.Len(t, deltas, 2)
	require.Equal(t, envelope.OpInsert, deltas[0].Op)
	require.Equal(t, "peers", deltas[0].Table)
	require.Equal(t, "ab12", deltas[0].Data["public_key"])
	require.Equal(t, envelope.OpUpdate, deltas[1].Op)
	require.Equal(t, "net1", deltas[1].Data["network_id"])
	require.Equal(t, "peer1", deltas[1].Where["id"])
}

func TestNetworkSpecResolvesAgainstIdentityNotPeer(t *testing.T) {
	spec, ok := Lookup(TypeNetwork)
	require.True(t, ok)

	e := &envelope.Envelope{
		NetworkID:      "net1",
		PeerID:         "peer1",
		EventPlaintext: map[string]any{"name": "my network"},
	}
	// create_network (S2) never emits a separate peer event — the
	// dependency must resolve against the identity event directly.
	require.Equal(t, []string{"identity:peer1"}, spec.Deps(e))
	require.True(t, spec.Validate(e))

	noPeer := &envelope.Envelope{NetworkID: "net1", EventPlaintext: map[string]any{"name": "x"}}
	require.Nil(t, spec.Deps(noPeer))
	require.False(t, spec.Validate(noPeer))
}

func TestGroupSpec(t *testing.T) {
	spec, ok := Lookup(TypeGroup)
	require.True(t, ok)

	e := &envelope.Envelope{
		GroupID:        "grp1",
		NetworkID:      "net1",
		PeerID:         "peer1",
		EventPlaintext: map[string]any{"name": "general"},
	}
	require.ElementsMatch(t, []string{"network:net1", "identity:peer1"}, spec.Deps(e))
	require.True(t, spec.Validate(e))

	deltas := spec.Project(e)
	require.Equal(t, "groups", deltas[0].Table)
	require.Equal(t, "grp1", deltas[0].Data["id"])
}

func TestChannelSpec(t *testing.T) {
	spec, ok := Lookup(TypeChannel)
	require.True(t, ok)

	e := &envelope.Envelope{
		ChannelID:      "chan1",
		GroupID:        "grp1",
		EventPlaintext: map[string]any{"name": "#general"},
	}
	// Deliverable ahead of its group (out-of-order arrival).
	require.Empty(t, spec.Deps(e))
	require.True(t, spec.Validate(e))

	deltas := spec.Project(e)
	require.Equal(t, "channels", deltas[0].Table)
	require.Equal(t, "grp1", deltas[0].Data["group_id"])
}

func TestMessageSpecDepsOnChannelAndPeer(t *testing.T) {
	spec, ok := Lookup(TypeMessage)
	require.True(t, ok)

	e := &envelope.Envelope{
		ChannelID:      "chan1",
		PeerID:         "peer1",
		EventPlaintext: map[string]any{"message_id": "msg1", "content": "hi", "timestamp_ms": int64(1000)},
	}
	require.ElementsMatch(t, []string{"channel:chan1", "peer:peer1"}, spec.Deps(e))
	require.True(t, spec.Validate(e))

	deltas := spec.Project(e)
	require.Equal(t, "messages", deltas[0].Table)
	require.Equal(t, "msg1", deltas[0].Data["message_id"])
	require.Equal(t, "hi", deltas[0].Data["content"])

	missingContent := &envelope.Envelope{ChannelID: "chan1", PeerID: "peer1", EventPlaintext: map[string]any{"message_id": "msg1"}}
	require.False(t, spec.Validate(missingContent))
}

func TestMemberSpecAddAndRemove(t *testing.T) {
	spec, ok := Lookup(TypeMember)
	require.True(t, ok)

	add := &envelope.Envelope{
		GroupID:        "grp1",
		PeerID:         "peer1",
		EventPlaintext: map[string]any{"action": "add", "target_peer_id": "peer2", "role": "member"},
	}
	require.True(t, spec.Validate(add))
	deltas := spec.Project(add)
	require.Equal(t, envelope.OpInsert, deltas[0].Op)
	require.Equal(t, "group_members", deltas[0].Table)
	require.Equal(t, "peer2", deltas[0].Data["peer_id"])

	remove := &envelope.Envelope{
		GroupID:        "grp1",
		PeerID:         "peer1",
		EventPlaintext: map[string]any{"action": "remove", "target_peer_id": "peer2"},
	}
	require.True(t, spec.Validate(remove))
	deltas = spec.Project(remove)
	require.Equal(t, envelope.OpDelete, deltas[0].Op)
	require.Equal(t, "grp1", deltas[0].Where["group_id"])
	require.Equal(t, "peer2", deltas[0].Where["peer_id"])

	badAction := &envelope.Envelope{GroupID: "grp1", PeerID: "peer1", EventPlaintext: map[string]any{"action": "kick", "target_peer_id": "peer2"}}
	require.False(t, spec.Validate(badAction))
}

func TestInviteSpec(t *testing.T) {
	spec, ok := Lookup(TypeInvite)
	require.True(t, ok)

	e := &envelope.Envelope{
		GroupID:        "grp1",
		PeerID:         "peer1",
		EventPlaintext: map[string]any{"invite_id": "inv1", "code": "abc123"},
	}
	require.Equal(t, []string{"group:grp1"}, spec.Deps(e))
	require.True(t, spec.Validate(e))

	deltas := spec.Project(e)
	require.Equal(t, "invites", deltas[0].Table)
	require.Equal(t, "invite", deltas[0].Data["kind"])
	require.Equal(t, "grp1", deltas[0].Data["group_id"])
}

func TestLinkInviteSpec(t *testing.T) {
	spec, ok := Lookup(TypeLinkInvite)
	require.True(t, ok)

	e := &envelope.Envelope{
		NetworkID:      "net1",
		PeerID:         "peer1",
		EventPlaintext: map[string]any{"invite_id": "inv1", "code": "xyz789"},
	}
	require.Equal(t, []string{"network:net1"}, spec.Deps(e))
	require.True(t, spec.Validate(e))

	deltas := spec.Project(e)
	require.Equal(t, "invites", deltas[0].Table)
	require.Equal(t, "link", deltas[0].Data["kind"])
	require.Equal(t, "net1", deltas[0].Data["network_id"])
}

func TestKeySpecProjectsNothing(t *testing.T) {
	spec, ok := Lookup(TypeKey)
	require.True(t, ok)

	e := &envelope.Envelope{GroupID: "grp1", EventPlaintext: map[string]any{"prekey_id": "pk1"}}
	require.Equal(t, []string{"group:grp1"}, spec.Deps(e))
	require.True(t, spec.Validate(e))
	require.Nil(t, spec.Project(e))
}

func TestAddressSpec(t *testing.T) {
	spec, ok := Lookup(TypeAddress)
	require.True(t, ok)

	e := &envelope.Envelope{
		PeerID:         "peer1",
		NetworkID:      "net1",
		EventPlaintext: map[string]any{"transit_key_id": "tk1", "ip": "10.0.0.1", "port": float64(4242)},
	}
	require.ElementsMatch(t, []string{"peer:peer1", "network:net1"}, spec.Deps(e))
	require.True(t, spec.Validate(e))

	deltas := spec.Project(e)
	require.Equal(t, "peer_transit_keys", deltas[0].Table)
	require.Equal(t, "net1:peer1", deltas[0].Data["id"])
	require.Equal(t, "tk1", deltas[0].Data["transit_key_id"])
}

func TestStringFieldAndNonEmptyHelpers(t *testing.T) {
	pt := map[string]any{"name": "alice", "count": 3}
	require.Equal(t, "alice", stringField(pt, "name"))
	require.Equal(t, "", stringField(pt, "count"))
	require.Equal(t, "", stringField(pt, "missing"))

	require.True(t, nonEmpty("a", "b"))
	require.False(t, nonEmpty("a", ""))
	require.True(t, nonEmpty())
}
