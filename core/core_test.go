package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quiet-mesh/quietcore/commands"
	"github.com/quiet-mesh/quietcore/config"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/queries"
	"github.com/quiet-mesh/quietcore/transport/loopback"
)

func newTestContext(t *testing.T) *CoreContext {
	t.Helper()
	net := loopback.NewNetwork()
	tr := net.NewTransport("10.0.0.1:7777")
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewInMemory(tr, clk, config.Default())
}

func TestCommandUnknownNameRejected(t *testing.T) {
	c := newTestContext(t)
	_, err := c.Command(context.Background(), "not_a_command", commands.Params{})
	assert.Error(t, err)
}

func TestCreateIdentityThenCreateNetworkEndToEnd(t *testing.T) {
	c := newTestContext(t)
	ctx := context.Background()

	identityResult, err := c.Command(ctx, "create_identity", commands.Params{"name": "Alice"})
	require.NoError(t, err)
	require.NotEmpty(t, identityResult.StoredIDs["identity"])

	rows, err := c.Query(ctx, "get_peer", queries.Params{"peer_id": identityResult.StoredIDs["identity"]})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["name"])

	networkResult, err := c.Command(ctx, "create_network", commands.Params{"name": "My Network"})
	require.NoError(t, err)
	require.NotEmpty(t, networkResult.StoredIDs["identity"])
	require.NotEmpty(t, networkResult.StoredIDs["network"])

	netRows, err := c.Query(ctx, "list_networks", queries.Params{})
	require.NoError(t, err)
	assert.Len(t, netRows, 1)
	assert.Equal(t, "My Network", netRows[0]["name"])
}

func TestQueryRejectsCommandNameAsWriteVerb(t *testing.T) {
	c := newTestContext(t)
	_, err := c.Query(context.Background(), "create_identity", queries.Params{})
	assert.ErrorIs(t, err, queries.ErrWriteVerb)
}

func TestTickWithNoConfiguredPeersIsANoop(t *testing.T) {
	c := newTestContext(t)
	n, err := c.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPostMessageProjectsIntoListMessages(t *testing.T) {
	c := newTestContext(t)
	ctx := context.Background()

	identity, err := c.Command(ctx, "create_identity", commands.Params{"name": "Alice"})
	require.NoError(t, err)
	peerID := identity.StoredIDs["identity"]

	network, err := c.Command(ctx, "create_network", commands.Params{"network_id": "net1", "name": "Net"})
	require.NoError(t, err)
	require.NotEmpty(t, network.StoredIDs["network"])

	_, err = c.Command(ctx, "join_network", commands.Params{"peer_id": peerID, "network_id": "net1"})
	require.NoError(t, err)

	group, err := c.Command(ctx, "create_group", commands.Params{"network_id": "net1", "peer_id": peerID, "name": "Friends"})
	require.NoError(t, err)
	groupID := group.StoredIDs["group"]
	require.NotEmpty(t, groupID)

	channel, err := c.Command(ctx, "create_channel", commands.Params{"group_id": groupID, "peer_id": peerID, "name": "general"})
	require.NoError(t, err)
	channelID := channel.StoredIDs["channel"]
	require.NotEmpty(t, channelID)

	_, err = c.Command(ctx, "post_message", commands.Params{"channel_id": channelID, "peer_id": peerID, "content": "hello world"})
	require.NoError(t, err)

	rows, err := c.Query(ctx, "list_messages", queries.Params{"channel_id": channelID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "hello world", rows[0]["content"])
}
