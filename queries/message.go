package queries

import (
	"context"
	"sort"

	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/store"
)

func init() {
	Register("list_messages", listMessages)
}

// listMessages returns a channel's posted messages ordered oldest
// first, optionally truncated to the caller's limit. The projected
// view itself has no ordering guarantee (§3 deltas don't carry one),
// so this query sorts on timestamp_ms after fetching the full set.
func listMessages(ctx context.Context, view store.ProjectedView, params Params) ([]Row, error) {
	channelID := params.str("channel_id")
	if channelID == "" {
		return nil, errkind.New(errkind.InputMalformed, "list_messages: channel_id is required")
	}
	rows, err := view.Query(ctx, "messages", map[string]any{"channel_id": channelID})
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool {
		return asInt64(rows[i]["timestamp_ms"]) < asInt64(rows[j]["timestamp_ms"])
	})
	if limit, ok := params["limit"].(int); ok && limit > 0 && limit < len(rows) {
		rows = rows[len(rows)-limit:]
	}
	return rows, nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
