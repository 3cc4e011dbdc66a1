package handlers

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"github.com/quiet-mesh/quietcore/canon"
	"github.com/quiet-mesh/quietcore/envelope"
	"github.com/quiet-mesh/quietcore/events"
	"github.com/quiet-mesh/quietcore/internal/errkind"
	"github.com/quiet-mesh/quietcore/internal/logger"
)

// skipsSignature reports the event types §4.3.6 excludes from signing: key
// events authenticate via the sealed box itself, and identity events
// are local-only until projected (nothing has verified them yet to
// check a signature against).
func skipsSignature(eventType string) bool {
	return eventType == events.TypeKey || eventType == events.TypeIdentity
}

// SignOutgoing implements §4.3.6's sign path: a self-created event
// ready to leave the pipeline gets its author's signature embedded
// into its own plaintext before encryption.
func SignOutgoing(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"sign_outgoing",
		func(e *envelope.Envelope) bool {
			return e.SelfCreated && depsReady(e) && !e.SigChecked && !skipsSignature(e.EventType)
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			priv, err := deps.Store.LoadSigningKey(ctx, e.PeerID)
			if err != nil {
				return nil, errkind.Wrap(errkind.KeyMissing, "sign: load signing key for "+e.PeerID, err)
			}

			canonical, err := canonicalPlaintext(e)
			if err != nil {
				kind := errkind.Internal
				if errors.Is(err, canon.ErrTooLarge) {
					kind = errkind.ValidationFailed
				}
				return nil, errkind.Wrap(kind, "sign: canonicalize plaintext", err)
			}
			sig := ed25519.Sign(ed25519.PrivateKey(priv), canonical)

			out := e.Clone()
			if out.EventPlaintext == nil {
				out.EventPlaintext = map[string]any{}
			}
			out.EventPlaintext["signature"] = base64.StdEncoding.EncodeToString(sig)
			out.Signature = sig
			out.SigChecked = true
			out.SelfSigned = true
			return []*envelope.Envelope{out}, nil
		},
	)
}

// VerifyIncoming implements §4.3.6's verify path: an incoming event
// carrying an embedded signature is checked against its author's
// public key, resolved from resolved_deps (or the event's own embedded
// public_key for identity/peer events establishing that key for the
// first time).
func VerifyIncoming(deps Deps) envelope.Handler {
	return envelope.NewHandlerFunc(
		"verify_incoming",
		func(e *envelope.Envelope) bool {
			return !e.SelfCreated && e.EventType != "" && e.EventPlaintext != nil &&
				!e.SigChecked && !e.SigFailed && depsReady(e) && !skipsSignature(e.EventType)
		},
		func(ctx context.Context, e *envelope.Envelope) ([]*envelope.Envelope, error) {
			sigB64, _ := e.EventPlaintext["signature"].(string)
			if sigB64 == "" {
				deps.logger().Warn("verify: event carries no signature",
					logger.String("event_id", e.EventID),
					logger.String("event_type", e.EventType))
				out := e.Clone()
				out.SigFailed = true
				return []*envelope.Envelope{out}, nil
			}
			sig, err := base64.StdEncoding.DecodeString(sigB64)
			if err != nil {
				deps.logger().Warn("verify: signature is not valid base64",
					logger.String("event_id", e.EventID),
					logger.String("event_type", e.EventType))
				out := e.Clone()
				out.SigFailed = true
				return []*envelope.Envelope{out}, nil
			}

			pub, err := resolveSignerPublicKey(ctx, deps, e)
			if kind, ok := errkind.KindOf(err); ok && kind == errkind.KeyMissing {
				// The author's introduction hasn't arrived yet; block on
				// it rather than rejecting the signature outright.
				out := e.Clone()
				out.MissingDeps = true
				out.DepsIncludedAndValid = false
				out.Deps = appendRef(out.Deps, envelope.DepRef("peer", e.PeerID))
				return []*envelope.Envelope{out}, nil
			}
			if err != nil {
				return nil, err
			}

			out := e.Clone()
			if !ed25519.Verify(pub, mustCanonical(out), sig) {
				deps.logger().Warn("verify: signature check failed",
					logger.String("event_id", e.EventID),
					logger.String("event_type", e.EventType),
					logger.String("peer_id", e.PeerID))
				out.SigFailed = true
				return []*envelope.Envelope{out}, nil
			}
			out.SigChecked = true
			return []*envelope.Envelope{out}, nil
		},
	)
}

func mustCanonical(e *envelope.Envelope) []byte {
	b, err := canonicalPlaintext(e)
	if err != nil {
		return nil
	}
	return b
}

// resolveSignerPublicKey finds the author's Ed25519 public key: a peer
// event carries its own public_key (it IS the author's introduction to
// this node, so there is no earlier row to consult), every other type
// resolves against the projected peers row that introduction
// established.
func resolveSignerPublicKey(ctx context.Context, deps Deps, e *envelope.Envelope) (ed25519.PublicKey, error) {
	if e.EventType == events.TypePeer {
		if embedded := stringField(e.EventPlaintext, "public_key"); embedded != "" {
			pub, err := hex.DecodeString(embedded)
			if err != nil {
				return nil, errkind.Wrap(errkind.InputMalformed, "verify: decode embedded public key", err)
			}
			return ed25519.PublicKey(pub), nil
		}
	}
	return lookupPeerPublicKey(ctx, deps, e.PeerID)
}

// appendRef adds ref to refs unless already present.
func appendRef(refs []string, ref string) []string {
	for _, r := range refs {
		if r == ref {
			return refs
		}
	}
	return append(refs, ref)
}
