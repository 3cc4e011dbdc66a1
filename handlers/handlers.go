package handlers

import "github.com/quiet-mesh/quietcore/envelope"

// Build assembles the ordered handler list the runner tries in turn
// for every dequeued envelope (§4.3). Order matters: the runner fires
// only the first handler in the list whose Filter matches, so a
// handler must come before anything whose Filter it might also satisfy
// once it has overlapping preconditions.
func Build(deps Deps) []envelope.Handler {
	return []envelope.Handler{
		ReceiveFromNetwork(deps),
		DecryptTransit(deps),
		Remove(deps),

		UnsealKeyEvent(deps),
		DecodeSyncEnvelope(),
		DecryptEventPlain(),
		DecryptEvent(deps),

		VerifyIncoming(deps),
		SignOutgoing(deps),

		MembershipCheck(deps),
		Validate(deps),
		Project(deps),

		IncomingSyncRequest(deps),
		IncomingSyncResponse(deps),

		ResolveDeps(deps),
		EventStore(deps),

		EncryptEvent(deps),
		CheckOutgoing(deps),
		TransitEncrypt(deps),
		SendToNetwork(deps),
	}
}

// NewRunner builds the handler list and wires it into a Runner with
// the standard Prometheus recorder (§7).
func NewRunner(deps Deps) *envelope.Runner {
	return envelope.NewRunner(Build(deps), MetricsRecorder{Log: deps.logger()})
}
