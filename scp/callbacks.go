package scp

import "github.com/DavidCanHelpMe/stellar-core/quorum"

// ValidationCode is the three-way result of host value validation
// (spec §6: "validateValue returns one of {VALID, INVALID, MAYBE_VALID}").
type ValidationCode int

const (
	ValidationInvalid ValidationCode = iota
	ValidationValid
	ValidationMaybeValid
)

// ValueArbiter is the host collaborator responsible for
// application-level value validation and candidate combination (spec
// §1's "out of scope" list, §6's callback contract). Modeled as an
// interface passed by reference, never global state, per spec §9's
// design note.
type ValueArbiter interface {
	// ValidateValue judges a candidate value in isolation.
	ValidateValue(slot SlotIndex, v Value) ValidationCode
	// ValidateBallot judges a ballot's value before it's allowed to
	// drive a federated-voting transition.
	ValidateBallot(slot SlotIndex, b Ballot) ValidationCode
	// CombineCandidates deterministically reduces a non-empty
	// candidate set to the composite value handed to the ballot
	// protocol. Must be deterministic given the same input set (spec
	// §6: "required for safety of the composite-value handshake").
	CombineCandidates(slot SlotIndex, candidates ValueSet) Value
}

// Signer signs and verifies the byte encoding of a statement (spec
// §1's "out of scope" Signer capability; spec §6's Ed25519-over-XDR
// contract). See package crypto for the default implementation.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
	Verify(nodeID NodeID, payload, signature []byte) bool
}

// Codec encodes and decodes the wire forms of spec §6. See package
// wire for the default XDR implementation.
type Codec interface {
	MarshalStatement(Statement) ([]byte, error)
	UnmarshalStatement([]byte) (Statement, error)
}

// Transport is the host's outbound envelope delivery hook (spec §6:
// "emitEnvelope(env) -- host broadcasts"). The engine never calls this
// re-entrantly into itself; hosts must not call back into the engine
// from within Emit (spec §5).
type Transport interface {
	Emit(env *Envelope)
}

// Timer lets the host schedule the nomination round-escalation and
// per-counter "heard from quorum" callbacks the engine itself does not
// own (spec §5). The engine never calls Timer; it is here purely so a
// host implementation has a name for the capability it must supply via
// the separate timer-driven re-entry into Nominate/BumpState.
type Timer interface {
	ScheduleNominationRound(slot SlotIndex, round uint32, after func())
	ScheduleBallotTimeout(slot SlotIndex, counter uint32, after func())
	Cancel(handle interface{})
}

// QSetResolver retrieves the quorum set referenced by a statement's
// qset hash (spec §4.4's getQSet). Returning ok=false signals
// UnknownQSet; the caller should park the statement rather than error.
type QSetResolver interface {
	GetQSet(hash quorum.Hash) (*quorum.QuorumSet, bool)
}

// Host bundles every capability the core needs from its embedder. A
// concrete host satisfies all five; the engine holds one Host per
// Engine instance and never mutates it.
type Host interface {
	ValueArbiter
	Signer
	Codec
	Transport
	QSetResolver
	// ValueExternalized notifies the host that slot has externalized
	// value (spec §6's valueExternalized output).
	ValueExternalized(slot SlotIndex, value Value)
	// BallotDidHearFromQuorum notifies the host that the ballot
	// protocol has heard from a quorum at the current counter, so it
	// may arm a per-counter bump timer (spec §4.3).
	BallotDidHearFromQuorum(slot SlotIndex, counter uint32)
}
