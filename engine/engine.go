package engine

import (
	"github.com/DavidCanHelpMe/stellar-core/quorum"
	"github.com/DavidCanHelpMe/stellar-core/scp"
	"github.com/pkg/errors"
)

// EnvelopeState is spec §4.4's receiveEnvelope result: VALID for a
// structurally sound, correctly signed, slot-matching envelope
// (regardless of whether it ends up triggering a federated-voting
// transition), INVALID otherwise.
type EnvelopeState int

const (
	EnvelopeInvalid EnvelopeState = iota
	EnvelopeValid
)

// Engine is spec §4.4's SCPEngine: owns one Slot per slot index and
// exposes the host-facing API. Grounded on the reference's Node.
type Engine struct {
	localID   scp.NodeID
	localQSet *quorum.QuorumSet
	host      scp.Host
	slots     map[scp.SlotIndex]*Slot
}

// New returns an Engine for the local node described by localID and
// localQSet, backed by host for every capability spec §6 calls for.
func New(localID scp.NodeID, localQSet *quorum.QuorumSet, host scp.Host) (*Engine, error) {
	if err := localQSet.Validate(); err != nil {
		return nil, errors.Wrap(err, "engine: local quorum set")
	}
	return &Engine{
		localID:   localID,
		localQSet: localQSet,
		host:      host,
		slots:     make(map[scp.SlotIndex]*Slot),
	}, nil
}

func (e *Engine) slotFor(index scp.SlotIndex) (*Slot, error) {
	if s, ok := e.slots[index]; ok {
		return s, nil
	}
	s, err := newSlot(e, index)
	if err != nil {
		return nil, err
	}
	e.slots[index] = s
	return s, nil
}

// Nominate implements spec §4.4's nominate(slot, value, forceReset).
// forceReset maps onto NominationProtocol's timedOut parameter (spec
// §4.2): the host calls this, forceReset=true, from its nomination
// round timer to escalate the round and recompute leaders, exactly as
// a bare timedOut=true call would.
func (e *Engine) Nominate(index scp.SlotIndex, value scp.Value, forceReset bool) (bool, error) {
	s, err := e.slotFor(index)
	if err != nil {
		return false, err
	}
	return s.Nomination.Nominate(value, forceReset)
}

// ReceiveEnvelope implements spec §4.4's receiveEnvelope: routes an
// inbound envelope to the addressed slot's nomination or ballot half
// by statement type, after verifying its signature and applying the
// cross-type monotone peer-statement rule of spec §3.
func (e *Engine) ReceiveEnvelope(env *scp.Envelope) (EnvelopeState, error) {
	stmt := env.Statement
	sender := stmt.Header().NodeID

	payload, err := e.host.MarshalStatement(stmt)
	if err != nil {
		return EnvelopeInvalid, nil
	}
	if !e.host.Verify(sender, payload, env.Signature) {
		return EnvelopeInvalid, nil
	}

	s, err := e.slotFor(stmt.Header().SlotIndex)
	if err != nil {
		return EnvelopeInvalid, err
	}
	if !s.admit(sender, stmt) {
		// Stale or replayed relative to this sender's own monotone
		// sequence: per spec §3, silently dropped, still a VALID
		// envelope as far as transport/signature go.
		return EnvelopeValid, nil
	}

	switch st := stmt.(type) {
	case *scp.NominateStatement:
		if err := s.Nomination.ProcessEnvelope(sender, st); err != nil {
			return EnvelopeValid, err
		}
	default:
		if err := s.Ballot.ProcessEnvelope(sender, stmt); err != nil {
			return EnvelopeValid, err
		}
	}
	return EnvelopeValid, nil
}

// BumpState is spec §4.4's test/ops backdoor: forces the ballot
// protocol of index to advance regardless of nomination's own
// composite-value handoff.
func (e *Engine) BumpState(index scp.SlotIndex, value scp.Value) (bool, error) {
	s, err := e.slotFor(index)
	if err != nil {
		return false, err
	}
	return s.Ballot.BumpState(value, true)
}

// GetLatestCompositeCandidate returns the most recent composite value
// nomination handed to the ballot protocol for index, or nil if none yet.
func (e *Engine) GetLatestCompositeCandidate(index scp.SlotIndex) scp.Value {
	s, ok := e.slots[index]
	if !ok {
		return nil
	}
	return s.Nomination.LatestComposite
}

// GetCurrentBallot returns index's current working ballot, or nil if
// the ballot protocol hasn't started (or the slot doesn't exist yet).
func (e *Engine) GetCurrentBallot(index scp.SlotIndex) *scp.Ballot {
	s, ok := e.slots[index]
	if !ok || !s.Ballot.Started() {
		return nil
	}
	b := s.Ballot.Current
	return &b
}

func (e *Engine) signAndEmit(stmt scp.Statement) {
	payload, err := e.host.MarshalStatement(stmt)
	if err != nil {
		return
	}
	sig, err := e.host.Sign(payload)
	if err != nil {
		return
	}
	e.host.Emit(&scp.Envelope{Statement: stmt, Signature: sig})
}
