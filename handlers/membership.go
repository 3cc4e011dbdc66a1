package handlers

import (
	"context"

	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/internal/logger"
)

// MembershipCheck implements §4.3's membership-check stage: a
// group-scoped event's author must either be the group's creator (who
// is implicitly a member from the moment the group is created) or
// already hold a group_members row.
func MembershipCheck(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"membership_check",
		func(e *envelope.Envelope) bool {
			return e.GroupID != "" && needsMembership(e.EventType) && e.SigChecked &&
				depsReady(e) && !e.IsGroupMember && !e.Validated
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			isMember, err := isGroupMember(ctx, deps, e.GroupID, e.PeerID)
			if err != nil {
				return nil, err
			}
			if !isMember {
				// A non-member's event is dropped the same way a failed
				// validator drops one (§4.3.7) — not propagated as a
				// handler error, which would let a later stage's filter
				// fire against this same, still-unmodified envelope.
				if e.EventID != "" {
					purgeEvent(ctx, deps, e, "not_member")
				} else {
					deps.logger().Warn("membership_check: dropping non-member event",
						logger.String("event_type", e.EventType),
						logger.String("group_id", e.GroupID),
						logger.String("peer_id", e.PeerID))
				}
				return nil, nil
			}

			out := e.Clone()
			out.IsGroupMember = true
			return []*envelope.Envelope{out}, nil
		},
	)
}

func isGroupMember(ctx context.Context, deps Deps, groupID, peerID string) (bool, error) {
	rows, err := deps.Store.Query(ctx, "groups", map[string]any{"id": groupID})
	if err != nil {
		return false, errkind.Wrap(errkind.Internal, "membership_check: query group", err)
	}
	if len(rows) > 0 {
		if creator, _ := rows[0]["creator_peer_id"].(string); creator == peerID {
			return true, nil
		}
	}

	members, err := deps.Store.Query(ctx, "group_members", map[string]any{"group_id": groupID, "peer_id": peerID})
	if err != nil {
		return false, errkind.Wrap(errkind.Internal, "membership_check: query group_members", err)
	}
	return len(members) > 0, nil
}
