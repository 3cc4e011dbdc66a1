package commands

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/clock"
)

func fixedClock() *clock.Fixed {
	return clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestRegistryLookup(t *testing.T) {
	fn, ok := Lookup("create_identity")
	require.True(t, ok)
	require.NotNil(t, fn)

	_, ok = Lookup("not_a_command")
	require.False(t, ok)

	assert.Contains(t, Names(), "create_identity")
	assert.Contains(t, Names(), "post_message")
}

func TestCreateIdentity(t *testing.T) {
	envs, err := createIdentity(fixedClock(), Params{"name": "Alice"})
	require.NoError(t, err)
	require.Len(t, envs, 1)

	e := envs[0]
	assert.Equal(t, events.TypeIdentity, e.EventType)
	assert.True(t, e.SelfCreated)
	assert.Len(t, e.PeerID, 64) // hex of a 32-byte Ed25519 public key

	pub, ok := e.EventPlaintext["public_key"].(string)
	require.True(t, ok)
	assert.Equal(t, e.PeerID, pub)

	priv, ok := e.LocalMetadata["private_key"].([]byte)
	require.True(t, ok)
	assert.Len(t, priv, 64) // ed25519.PrivateKey is 64 bytes

	pubBytes, ok := e.LocalMetadata["public_key"].([]byte)
	require.True(t, ok)
	assert.Equal(t, e.PeerID, hex.EncodeToString(pubBytes))
}

func TestCreateIdentityGeneratesDistinctPeers(t *testing.T) {
	a, err := createIdentity(fixedClock(), Params{})
	require.NoError(t, err)
	b, err := createIdentity(fixedClock(), Params{})
	require.NoError(t, err)
	assert.NotEqual(t, a[0].PeerID, b[0].PeerID)
}

func TestCreateNetworkEmitsIdentityThenNetwork(t *testing.T) {
	envs, err := createNetwork(fixedClock(), Params{"name": "Net A"})
	require.NoError(t, err)
	require.Len(t, envs, 2)

	assert.Equal(t, events.TypeIdentity, envs[0].EventType)
	assert.Equal(t, events.TypeNetwork, envs[1].EventType)
	assert.Equal(t, envs[0].PeerID, envs[1].PeerID)
	assert.NotEmpty(t, envs[1].NetworkID)

	// the network event declares a dependency on its own creator's identity
	assert.Contains(t, envs[1].Deps, "identity:"+envs[0].PeerID)
}

func TestCreateGroupRequiresIdentifiers(t *testing.T) {
	_, err := createGroup(fixedClock(), Params{"network_id": "net1"})
	assert.Error(t, err)

	envs, err := createGroup(fixedClock(), Params{"network_id": "net1", "peer_id": "peer1", "name": "Friends"})
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, events.TypeGroup, envs[0].EventType)
	assert.Equal(t, "net1", envs[0].NetworkID)
	assert.NotEmpty(t, envs[0].GroupID)
}

func TestCreateChannelIsDeterministicPerGroupAndName(t *testing.T) {
	a, err := createChannel(fixedClock(), Params{"group_id": "grp1", "peer_id": "peer1", "name": "general"})
	require.NoError(t, err)
	b, err := createChannel(fixedClock(), Params{"group_id": "grp1", "peer_id": "peer1", "name": "general"})
	require.NoError(t, err)
	assert.Equal(t, a[0].ChannelID, b[0].ChannelID)
}

func TestPostMessageValidation(t *testing.T) {
	_, err := postMessage(fixedClock(), Params{"channel_id": "chan1", "peer_id": "peer1"})
	assert.Error(t, err)

	tooLong := make([]byte, maxMessageContentChars+1)
	for i := range tooLong {
		tooLong[i] = 'a'
	}
	_, err = postMessage(fixedClock(), Params{"channel_id": "chan1", "peer_id": "peer1", "content": string(tooLong)})
	assert.Error(t, err)

	envs, err := postMessage(fixedClock(), Params{"channel_id": "chan1", "peer_id": "peer1", "content": "hello"})
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "hello", envs[0].EventPlaintext["content"])
	assert.Equal(t, fixedClock().NowMillis(), envs[0].EventPlaintext["timestamp_ms"])
}

func TestMemberCommandsSplitAuthorAndTarget(t *testing.T) {
	envs, err := addMember(fixedClock(), Params{"group_id": "grp1", "peer_id": "admin1", "target_peer_id": "newbie"})
	require.NoError(t, err)
	require.Len(t, envs, 1)

	e := envs[0]
	assert.Equal(t, "admin1", e.PeerID, "event is authored by the acting admin, not the target")
	assert.Equal(t, "newbie", e.EventPlaintext["target_peer_id"])
	assert.Equal(t, "add", e.EventPlaintext["action"])

	removed, err := removeMember(fixedClock(), Params{"group_id": "grp1", "peer_id": "admin1", "target_peer_id": "newbie"})
	require.NoError(t, err)
	assert.Equal(t, "remove", removed[0].EventPlaintext["action"])
}

func TestCreateInviteAndLinkInvite(t *testing.T) {
	invite, err := createInvite(fixedClock(), Params{"group_id": "grp1", "peer_id": "peer1"})
	require.NoError(t, err)
	assert.Equal(t, events.TypeInvite, invite[0].EventType)
	assert.NotEmpty(t, invite[0].EventPlaintext["code"])

	link, err := createLinkInvite(fixedClock(), Params{"network_id": "net1", "peer_id": "peer1"})
	require.NoError(t, err)
	assert.Equal(t, events.TypeLinkInvite, link[0].EventType)
	assert.NotEmpty(t, link[0].EventPlaintext["code"])
}

func TestAnnounceAddressRequiresEndpointFields(t *testing.T) {
	_, err := announceAddress(fixedClock(), Params{"peer_id": "p1", "network_id": "net1"})
	assert.Error(t, err)

	envs, err := announceAddress(fixedClock(), Params{
		"peer_id": "p1", "network_id": "net1",
		"transit_key_id": "tk1", "ip": "10.0.0.1", "port": 4242,
	})
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, events.TypeAddress, envs[0].EventType)
	assert.Equal(t, "tk1", envs[0].EventPlaintext["transit_key_id"])
	assert.Equal(t, int64(4242), envs[0].EventPlaintext["port"])
}

func TestDistributeGroupKeySealsToRecipient(t *testing.T) {
	envs, err := distributeGroupKey(fixedClock(), Params{"group_id": "grp1", "peer_id": "bob"})
	require.NoError(t, err)
	require.Len(t, envs, 1)

	e := envs[0]
	assert.Equal(t, events.TypeKey, e.EventType)
	assert.Equal(t, "bob", e.PeerID)
	assert.Len(t, e.Secret, 32)
	assert.NotEmpty(t, e.EventPlaintext["prekey_id"])
}
