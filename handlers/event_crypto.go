package handlers

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"

	"github.com/quiet-mesh/quietcore/canon"
	"github.com/quiet-mesh/quietcore/crypto"
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/internal/logger"
	"github.com/quiet-mesh/quietcore/store"
)

// sealedKeyPayload is the plaintext inside a sealed-box key event
// (§4.3.5's unseal sub-path).
type sealedKeyPayload struct {
	GroupID   string `json:"group_id"`
	PrekeyID  string `json:"prekey_id"`
	TagID     string `json:"tag_id"`
	SecretHex string `json:"secret_hex"`
}

// seedTypeDeps declares the freshly recovered event type's own
// dependency refs on the envelope and forces a re-resolve: the deps
// known before decryption (the transit key) say nothing about what the
// event itself requires, and that isn't knowable until the plaintext
// reveals its type (§4.3.2, §4.3.5).
func seedTypeDeps(e *envelope.Envelope) {
	spec, ok := events.Lookup(e.EventType)
	if !ok {
		return
	}
	have := make(map[string]bool, len(e.Deps))
	for _, ref := range e.Deps {
		have[ref] = true
	}
	for _, ref := range spec.Deps(e) {
		if !have[ref] {
			e.Deps = append(e.Deps, ref)
		}
	}
	e.DepsIncludedAndValid = false
}

// UnsealKeyEvent implements §4.3.5's unseal sub-path: a key event
// sealed directly to our own identity (key_ref.kind == "peer" and we
// hold that peer's signing key) is opened with our identity private
// key rather than any group key, since no group key exists yet for a
// secret that hasn't been distributed.
func UnsealKeyEvent(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"event_crypto_unseal",
		func(e *envelope.Envelope) bool {
			return e.KeyRefKind == "peer" && len(e.EventCiphertext) > 0 && e.EventType == ""
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			priv, err := deps.Store.LoadSigningKey(ctx, e.KeyRefID)
			if err == store.ErrNotFound {
				// Sealed to someone else; this node has nothing to do.
				deps.logger().Debug("event_crypto: dropping key event sealed to another peer",
					logger.String("recipient", e.KeyRefID))
				return nil, nil
			}
			if err != nil {
				return nil, errkind.Wrap(errkind.Internal, "event_crypto: load signing key", err)
			}

			plaintext, err := crypto.OpenSealed(ed25519.PrivateKey(priv), e.EventCiphertext)
			if err != nil {
				return nil, errkind.Wrap(errkind.DecryptFailed, "event_crypto: open sealed key event", err)
			}
			var payload sealedKeyPayload
			if err := json.Unmarshal(plaintext, &payload); err != nil {
				return nil, errkind.Wrap(errkind.InputMalformed, "event_crypto: parse sealed key payload", err)
			}
			secret, err := hex.DecodeString(payload.SecretHex)
			if err != nil {
				return nil, errkind.Wrap(errkind.InputMalformed, "event_crypto: decode key secret", err)
			}

			out := e.Clone()
			out.EventType = events.TypeKey
			out.GroupID = payload.GroupID
			out.EventPlaintext = map[string]any{
				"prekey_id": payload.PrekeyID,
				"tag_id":    payload.TagID,
			}
			out.Secret = secret
			out.WriteToStore = true
			out.SigChecked = true
			seedTypeDeps(out)
			return []*envelope.Envelope{out}, nil
		},
	)
}

// DecryptEvent implements §4.3.5's decrypt sub-path: the event-layer
// AEAD is opened with a group/channel key resolved directly from the
// key store by key_ref.id, rather than through the generic
// resolved_deps map — the type-specific Deps() functions only declare
// entity-scoped dependencies, since the event's own type (and thus its
// declared deps) isn't known until after this handler runs.
func DecryptEvent(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"event_crypto_decrypt",
		func(e *envelope.Envelope) bool {
			return e.KeyRefKind == "key" && len(e.EventCiphertext) > 0 && e.EventType == ""
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			secret, _, err := deps.Store.LoadTransitKey(ctx, e.KeyRefID)
			if err == store.ErrNotFound {
				out := e.Clone()
				out.MissingDeps = true
				out.DepsIncludedAndValid = false
				out.Deps = appendRef(out.Deps, envelope.DepRef("key", e.KeyRefID))
				out.MissingDepList = appendRef(out.MissingDepList, envelope.DepRef("key", e.KeyRefID))
				return []*envelope.Envelope{out}, nil
			}
			if err != nil {
				return nil, errkind.Wrap(errkind.Internal, "event_crypto: load event key", err)
			}

			var padded []byte
			if deps.Mode == crypto.ModeDummy {
				padded, err = crypto.DummyOpen(crypto.DeriveKeyArray(secret), e.EventCiphertext, nil)
			} else {
				padded, err = crypto.OpenSymmetric(crypto.DeriveKeyArray(secret), e.EventCiphertext, 0)
			}
			if err != nil {
				return nil, errkind.Wrap(errkind.DecryptFailed, "event_crypto: open event layer", err)
			}

			var wire map[string]any
			if err := json.Unmarshal(canon.Unpad(padded), &wire); err != nil {
				return nil, errkind.Wrap(errkind.InputMalformed, "event_crypto: parse event plaintext", err)
			}

			out := e.Clone()
			applyWireFields(out, wire)
			out.WriteToStore = true
			return []*envelope.Envelope{out}, nil
		},
	)
}

// EncryptEvent implements §4.3.5's encrypt sub-path: a validated,
// self-created plaintext with no ciphertext yet is sealed into the
// event layer, choosing the key reference by event: a direct peer seal
// for a key event carrying a fresh group secret to one recipient, the
// group key for a group-scoped event once that group has a key, and
// otherwise the canonical plaintext unencrypted (key_ref kind "none").
func EncryptEvent(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"event_crypto_encrypt",
		func(e *envelope.Envelope) bool {
			return e.SelfCreated && e.Validated && len(e.EventCiphertext) == 0
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			out := e.Clone()

			switch {
			case e.EventType == events.TypeKey && len(e.Secret) > 0:
				// A key event seals directly to its recipient (e.PeerID)
				// rather than encrypting under a group key — there is no
				// group key to encrypt under until this event delivers
				// one. Sealed boxes authenticate implicitly, so this
				// bypasses canonicalization and signing entirely.
				recipientPub, err := lookupPeerPublicKey(ctx, deps, e.PeerID)
				if err != nil {
					return nil, err
				}
				payload, err := json.Marshal(sealedKeyPayload{
					GroupID:   e.GroupID,
					PrekeyID:  stringField(e.EventPlaintext, "prekey_id"),
					TagID:     stringField(e.EventPlaintext, "tag_id"),
					SecretHex: hex.EncodeToString(e.Secret),
				})
				if err != nil {
					return nil, errkind.Wrap(errkind.Internal, "event_crypto: marshal sealed key payload", err)
				}
				sealed, err := crypto.SealForPeer(recipientPub, payload)
				if err != nil {
					return nil, errkind.Wrap(errkind.Internal, "event_crypto: seal key event", err)
				}
				out.EventCiphertext = sealed
				out.KeyRefKind, out.KeyRefID = "peer", e.PeerID
				out.SigChecked = true

			case e.GroupID != "" && hasGroupKey(ctx, deps, e.GroupID):
				canonical, err := eventLayerPlaintext(e)
				if err != nil {
					return nil, errkind.Wrap(errkind.Internal, "event_crypto: canonicalize plaintext", err)
				}
				keyID := e.GroupID
				secret, _, err := deps.Store.LoadTransitKey(ctx, keyID)
				if err != nil {
					return nil, errkind.Wrap(errkind.KeyMissing, "event_crypto: no group key to encrypt under", err)
				}
				var sealed []byte
				if deps.Mode == crypto.ModeDummy {
					sealed = crypto.DummySeal(crypto.DeriveKeyArray(secret), canonical, nil)
				} else {
					sealed, err = crypto.SealSymmetric(crypto.DeriveKeyArray(secret), canonical, nil)
					if err != nil {
						return nil, errkind.Wrap(errkind.Internal, "event_crypto: seal event layer", err)
					}
				}
				out.EventCiphertext = sealed
				out.KeyRefKind, out.KeyRefID = "key", keyID

			default:
				// Identity, peer, network and link_invite events have no
				// group key to encrypt under yet (network itself is what
				// establishes the scope a group key would later be
				// distributed within) — the transit layer already limits
				// their audience to the network's members, so the event
				// layer carries the canonical plaintext unencrypted.
				canonical, err := eventLayerPlaintext(e)
				if err != nil {
					return nil, errkind.Wrap(errkind.Internal, "event_crypto: canonicalize plaintext", err)
				}
				out.EventCiphertext = canonical
				out.KeyRefKind, out.KeyRefID = "none", ""
			}

			out.EventID = crypto.EventID(out.EventCiphertext)
			out.WriteToStore = true
			return []*envelope.Envelope{out}, nil
		},
	)
}

// DecryptEventPlain implements the receiving half of EncryptEvent's
// default branch: a network-scoped event that was never encrypted at
// the event layer (key_ref.kind == "none") still needs its canonical
// plaintext unpadded and parsed into the same EventPlaintext/routing
// fields the encrypted sub-paths populate.
func DecryptEventPlain() envelope.Handler {
	return envelope.NewHandlerFunc(
		"event_crypto_plain",
		func(e *envelope.Envelope) bool {
			return e.KeyRefKind == "none" && len(e.EventCiphertext) > 0 && e.EventType == ""
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			var wire map[string]any
			if err := json.Unmarshal(canon.Unpad(e.EventCiphertext), &wire); err != nil {
				return nil, errkind.Wrap(errkind.InputMalformed, "event_crypto: parse plain event plaintext", err)
			}
			out := e.Clone()
			applyWireFields(out, wire)
			out.WriteToStore = true
			return []*envelope.Envelope{out}, nil
		},
	)
}

// hasGroupKey reports whether a distributed group secret exists for
// groupID. Until distribute_group_key has run, group-scoped events go
// out under the transit layer alone — the event layer carries the
// canonical plaintext the way network-scoped events do, since there is
// no group secret for either side to use yet.
func hasGroupKey(ctx context.Context, deps Deps, groupID string) bool {
	_, _, err := deps.Store.LoadTransitKey(ctx, groupID)
	return err == nil
}

// lookupPeerPublicKey reads a peer's Ed25519 public key from the
// projected peers row the identity event established.
func lookupPeerPublicKey(ctx context.Context, deps Deps, peerID string) (ed25519.PublicKey, error) {
	rows, err := deps.Store.Query(ctx, "peers", map[string]any{"id": peerID})
	if err != nil {
		return nil, errkind.Wrap(errkind.Internal, "event_crypto: query peer public key", err)
	}
	if len(rows) == 0 {
		return nil, errkind.New(errkind.KeyMissing, "event_crypto: no peer row for "+peerID)
	}
	encoded, _ := rows[0]["public_key"].(string)
	pub, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, errkind.Wrap(errkind.InputMalformed, "event_crypto: decode peer public key", err)
	}
	return ed25519.PublicKey(pub), nil
}

func applyWireFields(e *envelope.Envelope, wire map[string]any) {
	if v, ok := wire["event_type"].(string); ok {
		e.EventType = v
	}
	if v, ok := wire["peer_id"].(string); ok && e.PeerID == "" {
		e.PeerID = v
	}
	if v, ok := wire["network_id"].(string); ok && e.NetworkID == "" {
		e.NetworkID = v
	}
	if v, ok := wire["group_id"].(string); ok && e.GroupID == "" {
		e.GroupID = v
	}
	if v, ok := wire["channel_id"].(string); ok && e.ChannelID == "" {
		e.ChannelID = v
	}
	e.EventPlaintext = wire
	seedTypeDeps(e)
}
