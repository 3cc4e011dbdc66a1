package queries

import (
	"context"

	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/store"
)

func init() {
	Register("list_invites", listInvites)
	Register("resolve_address", resolveAddress)
}

// listInvites lists invites by either group_id (direct invites) or
// network_id (link invites) — exactly one of the two must be given,
// matching the two distinct projectors that write into "invites"
// (events/invite.go and events/link_invite.go).
func listInvites(ctx context.Context, view store.ProjectedView, params Params) ([]Row, error) {
	if groupID := params.str("group_id"); groupID != "" {
		return view.Query(ctx, "invites", map[string]any{"group_id": groupID})
	}
	if networkID := params.str("network_id"); networkID != "" {
		return view.Query(ctx, "invites", map[string]any{"network_id": networkID})
	}
	return nil, errkind.New(errkind.InputMalformed, "list_invites: group_id or network_id is required")
}

// resolveAddress looks up a peer's advertised transport address and
// transit key within a network — the same row check_outgoing (§4.3.10)
// consults before sending.
func resolveAddress(ctx context.Context, view store.ProjectedView, params Params) ([]Row, error) {
	peerID := params.str("peer_id")
	networkID := params.str("network_id")
	if peerID == "" || networkID == "" {
		return nil, errkind.New(errkind.InputMalformed, "resolve_address: peer_id and network_id are required")
	}
	return view.Query(ctx, "peer_transit_keys", map[string]any{"peer_id": peerID, "network_id": networkID})
}
