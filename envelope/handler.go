package envelope

import "context"

// Handler is one stage of the pipeline (§4.3): Filter decides whether
// Process applies to this envelope, and Process returns the envelopes
// to continue processing — often just the same envelope mutated, but a
// handler may also fan out (e.g. Project emitting unblock envelopes
// alongside its input) or fan in to nothing (e.g. Remove dropping the
// envelope by returning an empty slice).
type Handler interface {
	Name() string
	Filter(e *Envelope) bool
	Process(ctx context.Context, e *Envelope) ([]*Envelope, error)
}

// HandlerFunc adapts a filter/process pair that needs no state of its
// own into a Handler.
type HandlerFunc struct {
	name    string
	filter  func(e *Envelope) bool
	process func(ctx context.Context, e *Envelope) ([]*Envelope, error)
}

// NewHandlerFunc builds a stateless Handler from its filter and
// process functions.
func NewHandlerFunc(name string, filter func(e *Envelope) bool, process func(ctx context.Context, e *Envelope) ([]*Envelope, error)) *HandlerFunc {
	return &HandlerFunc{name: name, filter: filter, process: process}
}

func (h *HandlerFunc) Name() string                 { return h.name }
func (h *HandlerFunc) Filter(e *Envelope) bool       { return h.filter(e) }
func (h *HandlerFunc) Process(ctx context.Context, e *Envelope) ([]*Envelope, error) {
	return h.process(ctx, e)
}
