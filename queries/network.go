package queries

import (
	"context"

	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/store"
)

func init() {
	Register("list_networks", listNetworks)
	Register("get_peer", getPeer)
	Register("list_groups", listGroups)
	Register("list_channels", listChannels)
}

func listNetworks(ctx context.Context, view store.ProjectedView, params Params) ([]Row, error) {
	return view.Query(ctx, "networks", nil)
}

// getPeer resolves a single peer row by peer_id; the projected
// "peers" table is keyed by event-derived peer_id, the same id every
// other table's peer_id column references.
func getPeer(ctx context.Context, view store.ProjectedView, params Params) ([]Row, error) {
	peerID := params.str("peer_id")
	if peerID == "" {
		return nil, errkind.New(errkind.InputMalformed, "get_peer: peer_id is required")
	}
	return view.Query(ctx, "peers", map[string]any{"id": peerID})
}

func listGroups(ctx context.Context, view store.ProjectedView, params Params) ([]Row, error) {
	networkID := params.str("network_id")
	if networkID == "" {
		return nil, errkind.New(errkind.InputMalformed, "list_groups: network_id is required")
	}
	return view.Query(ctx, "groups", map[string]any{"network_id": networkID})
}

func listChannels(ctx context.Context, view store.ProjectedView, params Params) ([]Row, error) {
	groupID := params.str("group_id")
	if groupID == "" {
		return nil, errkind.New(errkind.InputMalformed, "list_channels: group_id is required")
	}
	return view.Query(ctx, "channels", map[string]any{"group_id": groupID})
}
