package queries

import (
	"context"

	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/store"
)

func init() {
	Register("list_members", listMembers)
}

func listMembers(ctx context.Context, view store.ProjectedView, params Params) ([]Row, error) {
	groupID := params.str("group_id")
	if groupID == "" {
		return nil, errkind.New(errkind.InputMalformed, "list_members: group_id is required")
	}
	return view.Query(ctx, "group_members", map[string]any{"group_id": groupID})
}
