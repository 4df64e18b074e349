// Package nomination implements spec §4.2's NominationProtocol: the
// leader-priority election, value federation, and round escalation
// that produce the composite value handed off to the ballot protocol.
//
// Grounded on the reference's slot.go PhNom branch of Slot.Handle
// (echoing votes into X, promoting X->Y->Z via updateYZ,
// maxPrioritySender) restated against explicit quorum predicates, and
// on original_source/LocalNode.h's round-leader recomputation
// semantics (see SPEC_FULL §13).
package nomination

import (
	"github.com/DavidCanHelpMe/stellar-core/internal/logctx"
	"github.com/DavidCanHelpMe/stellar-core/quorum"
	"github.com/DavidCanHelpMe/stellar-core/scp"
)

// BallotHandoff is the subset of ballot.Protocol's surface the
// nomination protocol needs: handing off the composite value once the
// candidate set stabilizes (spec §4.2's "call BallotProtocol.bumpState").
type BallotHandoff interface {
	BumpState(value scp.Value, force bool) (bool, error)
	Started() bool
}

// QSetSource resolves a peer's quorum set given its advertised hash
// (spec §4.4's getQSet, scoped down to what nomination needs).
type QSetSource interface {
	GetQSet(hash quorum.Hash) (*quorum.QuorumSet, bool)
}

// Protocol holds the per-slot nomination state of spec §4.2.
type Protocol struct {
	SlotIndex scp.SlotIndex
	LocalID   scp.NodeID
	LocalQSet *quorum.QuorumSet

	Arbiter scp.ValueArbiter
	QSets   QSetSource
	Ballot  BallotHandoff
	// Emit is called with a freshly built NOMINATE statement whenever
	// votes or accepted changes; the caller (package engine) is
	// responsible for signing and wrapping it into an Envelope.
	Emit func(*scp.NominateStatement)
	Log  logctx.Logger

	Round             uint32
	Votes             scp.ValueSet
	Accepted          scp.ValueSet
	Candidates        scp.ValueSet
	Latest            map[scp.NodeID]*scp.NominateStatement
	Leaders           quorum.NodeIDSet
	LatestComposite   scp.Value
	NominationStarted bool

	// LeaderFunc computes the round leader set; defaults to
	// quorum.Leaders's hash-based priority election. Exported so tests
	// can pin a round's leader without fighting the hash function (spec
	// §8's S5/S6 fixtures require a specific, not merely plausible,
	// leader).
	LeaderFunc func(slot uint64, round uint32, qset *quorum.QuorumSet, candidates quorum.NodeIDSet) (quorum.NodeIDSet, error)

	// localQSetHash is the hash of LocalQSet, carried on every emitted
	// NOMINATE per spec §3's qset_hash field -- mirrors
	// ballot.Protocol.localQSetHash (ballot/protocol.go), computed once
	// at construction time rather than on every emit.
	localQSetHash quorum.Hash
}

// New returns a zeroed Protocol ready for its first Nominate/
// ProcessEnvelope call.
func New(slot scp.SlotIndex, localID scp.NodeID, localQSet *quorum.QuorumSet, arbiter scp.ValueArbiter, qsets QSetSource, ballot BallotHandoff, emit func(*scp.NominateStatement), log logctx.Logger) (*Protocol, error) {
	if log == nil {
		log = logctx.Discard
	}
	hash, err := quorum.HashQuorumSet(localQSet)
	if err != nil {
		return nil, err
	}
	return &Protocol{
		SlotIndex:     slot,
		LocalID:       localID,
		LocalQSet:     localQSet,
		Arbiter:       arbiter,
		QSets:         qsets,
		Ballot:        ballot,
		Emit:          emit,
		Log:           log,
		Latest:        make(map[scp.NodeID]*scp.NominateStatement),
		LeaderFunc:    quorum.Leaders,
		localQSetHash: hash,
	}, nil
}

// Nominate implements spec §4.2's nominate(slot, value, timedOut).
// Returns true iff a NOMINATE envelope was emitted.
func (p *Protocol) Nominate(value scp.Value, timedOut bool) (bool, error) {
	if !p.NominationStarted {
		p.NominationStarted = true
		p.Round = 1
	} else if timedOut {
		p.Round++
	}

	candidates := quorum.AllNodes(p.LocalQSet).Add(p.LocalID)
	leaderFunc := p.LeaderFunc
	if leaderFunc == nil {
		leaderFunc = quorum.Leaders
	}
	leaders, err := leaderFunc(uint64(p.SlotIndex), p.Round, p.LocalQSet, candidates)
	if err != nil {
		return false, err
	}
	p.Leaders = leaders

	before := p.Votes
	if leaders.Contains(p.LocalID) {
		p.Votes = p.Votes.Add(value)
	} else {
		for _, leaderID := range leaders {
			if stmt, ok := p.Latest[leaderID]; ok {
				p.Votes = p.Votes.Union(stmt.Votes).Union(stmt.Accepted)
				break
			}
		}
	}

	changed := !valueSetEqual(before, p.Votes)
	if changed {
		p.emit()
	}
	return changed, nil
}

// StopNomination implements spec §4.2's stopNomination(): no further
// envelopes are emitted, but any composite value already handed to
// the ballot protocol stays handed off.
func (p *Protocol) StopNomination() {
	p.NominationStarted = false
}

// ProcessEnvelope implements spec §4.2's processEnvelope for an
// inbound NOMINATE statement. sender is the envelope's originating
// node (already authenticated by the caller).
func (p *Protocol) ProcessEnvelope(sender scp.NodeID, stmt *scp.NominateStatement) error {
	if prev, ok := p.Latest[sender]; ok {
		if !stmt.Votes.IsSubsetRefinementOf(prev.Votes) || !stmt.Accepted.IsSubsetRefinementOf(prev.Accepted) {
			p.Log.Logf("ignoring regressive nomination from %s", sender)
			return nil
		}
	}
	p.Latest[sender] = stmt

	changedAccepted := false
	for _, v := range p.knownValues(stmt) {
		if p.Accepted.Contains(v) {
			continue
		}
		if p.federatedAcceptNominated(v) {
			p.Accepted = p.Accepted.Add(v)
			p.Votes = p.Votes.Add(v)
			changedAccepted = true
		}
	}

	for _, v := range p.Accepted {
		if p.Candidates.Contains(v) {
			continue
		}
		if p.federatedConfirmNominated(v) {
			p.Candidates = p.Candidates.Add(v)
		}
	}

	if len(p.Candidates) > 0 {
		composite := p.Arbiter.CombineCandidates(p.SlotIndex, p.Candidates)
		if !scp.ValueEqual(composite, p.LatestComposite) {
			p.LatestComposite = composite
			if !p.Ballot.Started() {
				if _, err := p.Ballot.BumpState(composite, false); err != nil {
					return err
				}
			}
		}
	}

	if changedAccepted {
		p.emit()
	}
	return nil
}

// federatedAcceptNominated implements spec §4.2's federated-accept
// rule: v is accepted if the peers that vote-or-accept it form a
// quorum, or the peers that accept it form a v-blocking set.
func (p *Protocol) federatedAcceptNominated(v scp.Value) bool {
	votesOrAccepts := p.peersSatisfying(func(s scp.Statement) bool {
		return scp.VotesOrAcceptsNominated(s, v)
	})
	if _, ok := quorum.IsQuorum(p.LocalQSet, p.LocalID, votesOrAccepts, p.qsetOf); ok {
		return true
	}
	accepts := p.peersSatisfying(func(s scp.Statement) bool {
		return scp.AcceptsNominated(s, v)
	})
	return quorum.IsVBlocking(p.LocalQSet, accepts)
}

// federatedConfirmNominated implements spec §4.2's federated-confirm
// rule: v becomes a candidate once the peers that accept it form a quorum.
func (p *Protocol) federatedConfirmNominated(v scp.Value) bool {
	accepts := p.peersSatisfying(func(s scp.Statement) bool {
		return scp.AcceptsNominated(s, v)
	})
	_, ok := quorum.IsQuorum(p.LocalQSet, p.LocalID, accepts, p.qsetOf)
	return ok
}

func (p *Protocol) peersSatisfying(pred func(scp.Statement) bool) quorum.NodeIDSet {
	var out quorum.NodeIDSet
	for id, stmt := range p.Latest {
		if pred(stmt) {
			out = out.Add(id)
		}
	}
	return out
}

func (p *Protocol) qsetOf(id scp.NodeID) (*quorum.QuorumSet, bool) {
	stmt, ok := p.Latest[id]
	if !ok {
		return nil, false
	}
	return p.QSets.GetQSet(stmt.Head.QSetHash)
}

// knownValues returns every value worth federated-accept testing:
// everything in the freshly processed statement plus everything seen
// so far across all peers (re-testing already-accepted values is a
// cheap no-op via the caller's p.Accepted.Contains guard).
func (p *Protocol) knownValues(fresh *scp.NominateStatement) scp.ValueSet {
	out := fresh.Votes.Union(fresh.Accepted)
	for _, stmt := range p.Latest {
		out = out.Union(stmt.Votes).Union(stmt.Accepted)
	}
	return out
}

func (p *Protocol) emit() {
	if p.Emit == nil || !p.NominationStarted {
		return
	}
	p.Emit(&scp.NominateStatement{
		Head: scp.Header{
			NodeID:    p.LocalID,
			SlotIndex: p.SlotIndex,
			QSetHash:  p.localQSetHash,
		},
		Votes:    p.Votes,
		Accepted: p.Accepted,
	})
}

func valueSetEqual(a, b scp.ValueSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !scp.ValueEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
