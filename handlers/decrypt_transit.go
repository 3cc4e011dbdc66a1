package handlers

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/quiet-mesh/quietcore/crypto"
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/store"
)

// transitWireBody is the JSON structure carried inside the transit AEAD
// layer (§4.3.4).
type transitWireBody struct {
	EventKeyID      string `json:"event_key_id"`
	EventCiphertext string `json:"event_ciphertext_hex"`
}

// DecryptTransit implements §4.3.4: opens the per-network transit
// layer to recover the event-layer ciphertext and its key reference.
func DecryptTransit(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"decrypt_transit",
		func(e *envelope.Envelope) bool {
			return e.DepsIncludedAndValid && e.TransitKeyID != "" && len(e.TransitCiphertext) > 0 && len(e.EventCiphertext) == 0
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			secret, networkID, err := deps.Store.LoadTransitKey(ctx, e.TransitKeyID)
			if err == store.ErrNotFound {
				out := e.Clone()
				out.MissingDeps = true
				out.MissingDepList = append(out.MissingDepList, envelope.DepRef("transit_key", e.TransitKeyID))
				return []*envelope.Envelope{out}, nil
			}
			if err != nil {
				return nil, errkind.Wrap(errkind.Internal, "decrypt_transit: load transit key", err)
			}

			var plaintext []byte
			if deps.Mode == crypto.ModeDummy {
				plaintext, err = crypto.DummyOpen(crypto.DeriveKeyArray(secret), e.TransitCiphertext, nil)
			} else {
				plaintext, err = crypto.OpenSymmetric(crypto.DeriveKeyArray(secret), e.TransitCiphertext, 0)
			}
			if err != nil {
				return nil, errkind.Wrap(errkind.DecryptFailed, "decrypt_transit: open transit layer", err)
			}

			var body transitWireBody
			if err := json.Unmarshal(plaintext, &body); err != nil {
				return nil, errkind.Wrap(errkind.InputMalformed, "decrypt_transit: parse transit body", err)
			}
			eventCiphertext, err := hex.DecodeString(body.EventCiphertext)
			if err != nil {
				return nil, errkind.Wrap(errkind.InputMalformed, "decrypt_transit: decode event ciphertext hex", err)
			}

			// event_key_id carries its own kind prefix ("peer:<id>" for a
			// sealed-box key event, "key:<id>" for an AEAD group/channel
			// key reference), set by the sender when it chose the key
			// reference in event-crypto's encrypt sub-path (§4.3.5).
			kind, id, hasKind := strings.Cut(body.EventKeyID, ":")
			out := e.Clone()
			out.EventCiphertext = eventCiphertext
			out.EventID = crypto.EventID(eventCiphertext)
			out.NetworkID = networkID
			if hasKind {
				out.KeyRefKind, out.KeyRefID = kind, id
			} else {
				out.KeyRefKind, out.KeyRefID = "key", body.EventKeyID
			}
			return []*envelope.Envelope{out}, nil
		},
	)
}
