package handlers

import (
	"context"
	"encoding/hex"

	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/internal/logger"
)

// minRawDataBytes is the 32-byte transit_key_id prefix plus at least
// one byte of ciphertext (§4.3.1).
const minRawDataBytes = 33

// ReceiveFromNetwork splits a raw inbound datagram into its
// transit_key_id and transit_ciphertext (§4.3.1).
func ReceiveFromNetwork(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"receive_from_network",
		func(e *envelope.Envelope) bool {
			return len(e.RawData) > 0 && e.TransitKeyID == ""
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			if len(e.RawData) < minRawDataBytes {
				deps.logger().Warn("receive_from_network: dropping short datagram",
					logger.String("origin_ip", e.OriginIP),
					logger.Int("bytes", len(e.RawData)))
				return nil, nil
			}
			out := e.Clone()
			out.TransitKeyID = hex.EncodeToString(out.RawData[:32])
			out.TransitCiphertext = append([]byte(nil), out.RawData[32:]...)
			out.Deps = append(out.Deps, envelope.DepRef("transit_key", out.TransitKeyID))
			return []*envelope.Envelope{out}, nil
		},
	)
}
