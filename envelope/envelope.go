// Package envelope defines the Envelope record that flows through the
// handler pipeline (§3, §4.3) and the Handler/Runner that drives it to
// quiescence.
package envelope

import "time"

// Envelope carries one event and its processing state through the
// pipeline. Fields are sparsely populated — each handler asserts a
// precondition set on the fields it reads and adds a postcondition set
// on the fields it writes. Boolean state flags are monotone: once set
// true they are never cleared, except Unblocked, DepsIncludedAndValid
// and MissingDeps, which a retry or dependency resolution can reset.
type Envelope struct {
	// Identity / routing
	EventID   string
	EventType string
	PeerID    string
	NetworkID string
	GroupID   string
	ChannelID string

	// Payload
	EventPlaintext  map[string]any
	EventCiphertext []byte
	Signature       []byte

	// Transit
	TransitKeyID       string
	TransitCiphertext  []byte
	RawData            []byte

	// Network metadata
	OriginIP   string
	OriginPort int
	ReceivedAt time.Time
	DestIP     string
	DestPort   int
	DueMs      int64

	// Dependencies
	Deps           []string
	ResolvedDeps   map[string]any
	MissingDepList []string

	// Boolean state flags
	SelfCreated           bool
	SigChecked            bool
	SigFailed             bool
	SelfSigned            bool
	Validated             bool
	Projected             bool
	Stored                bool
	WriteToStore          bool
	Outgoing              bool
	OutgoingChecked       bool
	DepsIncludedAndValid  bool
	MissingDeps           bool
	Unblocked             bool
	UnblockChecked        bool
	ShouldRemove          bool
	RemoveChecked         bool
	IsGroupMember         bool

	// Local-only (never crosses the wire)
	Secret         []byte
	LocalMetadata  map[string]any

	// Key reference used by event-crypto (§4.3.5): {kind: "peer"|"key"|"none"|"sync", id: ...}
	KeyRefKind string
	KeyRefID   string

	// Diagnostics
	Error      string
	RetryCount int

	// Deltas produced by the project handler, attached for observability
	// and for tests asserting on exact projection output.
	Deltas []Delta
}

// Delta is one change the project handler applies to the projected
// view (§3, §4.3.8).
type Delta struct {
	Op    DeltaOp
	Table string
	Data  map[string]any
	Where map[string]any
}

// DeltaOp is the kind of change a Delta applies.
type DeltaOp string

const (
	OpInsert DeltaOp = "insert"
	OpUpdate DeltaOp = "update"
	OpDelete DeltaOp = "delete"
)

// Clone returns a shallow copy of e suitable for re-emission down the
// handler chain — the runner never lets two handlers share the same
// envelope pointer once one has branched into several outputs.
func (e *Envelope) Clone() *Envelope {
	if e == nil {
		return nil
	}
	clone := *e
	clone.EventPlaintext = copyMap(e.EventPlaintext)
	clone.ResolvedDeps = copyMap(e.ResolvedDeps)
	clone.LocalMetadata = copyMap(e.LocalMetadata)
	clone.Deps = append([]string(nil), e.Deps...)
	clone.MissingDepList = append([]string(nil), e.MissingDepList...)
	clone.Deltas = append([]Delta(nil), e.Deltas...)
	clone.EventCiphertext = append([]byte(nil), e.EventCiphertext...)
	clone.TransitCiphertext = append([]byte(nil), e.TransitCiphertext...)
	clone.RawData = append([]byte(nil), e.RawData...)
	clone.Signature = append([]byte(nil), e.Signature...)
	clone.Secret = append([]byte(nil), e.Secret...)
	return &clone
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// DepRef formats a dependency reference in the "kind:id" shape used
// throughout the pipeline (§4.3.2).
func DepRef(kind, id string) string {
	return kind + ":" + id
}
