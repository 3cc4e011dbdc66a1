package commands

import (
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/clock"
	"github.com/quiet-mesh/quietcore/internal/errkind"
)

// maxMessageContentChars bounds content length in bytes independently
// of the canonical 512-byte pad (§9). The bound is far above that pad,
// so content that passes this check can still be rejected later by the
// sign handler's canon.Canonicalize call with canon.ErrTooLarge.
const maxMessageContentChars = 10000

func init() {
	Register("post_message", postMessage)
}

func postMessage(clk clock.Clock, params Params) ([]*envelope.Envelope, error) {
	channelID := params.str("channel_id")
	peerID := params.str("peer_id")
	content := params.str("content")
	if channelID == "" || peerID == "" || content == "" {
		return nil, errkind.New(errkind.InputMalformed, "post_message: channel_id, peer_id and content are required")
	}
	if len(content) > maxMessageContentChars {
		return nil, errkind.New(errkind.InputMalformed, "post_message: content exceeds maximum length")
	}

	messageID := params.strOr("message_id", derivedID(channelID+peerID+content+clk.Now().String()))

	e := &envelope.Envelope{
		EventType:   events.TypeMessage,
		PeerID:      peerID,
		ChannelID:   channelID,
		SelfCreated: true,
		EventPlaintext: map[string]any{
			"message_id":   messageID,
			"content":      content,
			"timestamp_ms": clk.NowMillis(),
		},
	}
	seedDeps(e)
	return []*envelope.Envelope{e}, nil
}
