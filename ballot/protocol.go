// Package ballot implements spec §4.3's BallotProtocol: the federated
// voting state machine over ballots (counter, value) that carries a
// slot from PREPARE through CONFIRM to EXTERNALIZE.
//
// Grounded on the reference's slot.go (the PhPrep/PhCommit cases of
// Slot.Handle, and setBX/updateAP/updateB) and on
// original_source/src/scp/BallotProtocol.cpp's advanceSlot work-list
// loop (attemptAcceptPrepared/attemptConfirmPrepared/
// attemptAcceptCommit/attemptConfirmCommit), restated against the
// explicit quorum/v-blocking predicates of package quorum rather than
// the reference's inline map-walking, per SPEC_FULL §13.
package ballot

import (
	"sort"

	"github.com/DavidCanHelpMe/stellar-core/internal/logctx"
	"github.com/DavidCanHelpMe/stellar-core/quorum"
	"github.com/DavidCanHelpMe/stellar-core/scp"
)

// Phase is one of spec §4.3's three ballot-protocol phases.
type Phase int

const (
	PreparePhase Phase = iota
	ConfirmPhase
	ExternalizePhase
)

func (ph Phase) String() string {
	switch ph {
	case PreparePhase:
		return "PREPARE"
	case ConfirmPhase:
		return "CONFIRM"
	case ExternalizePhase:
		return "EXTERNALIZE"
	default:
		return "UNKNOWN"
	}
}

const maxCounter = ^uint32(0)

// QSetSource resolves a peer's advertised quorum set (spec §4.4's getQSet).
type QSetSource interface {
	GetQSet(hash quorum.Hash) (*quorum.QuorumSet, bool)
}

// Protocol holds the per-slot ballot-protocol state of spec §4.3.
type Protocol struct {
	SlotIndex scp.SlotIndex
	LocalID   scp.NodeID
	LocalQSet *quorum.QuorumSet

	Arbiter scp.ValueArbiter
	QSets   QSetSource
	// Emit is called with a freshly built PREPARE/CONFIRM/EXTERNALIZE
	// statement whenever the advance loop or BumpState produces one;
	// the caller (package engine) signs and wraps it into an Envelope.
	Emit func(scp.Statement)
	// Externalized notifies the host once per slot, the first time
	// EXTERNALIZE is reached (spec §6's valueExternalized).
	Externalized func(scp.SlotIndex, scp.Value)
	// HeardFromQuorum fires at most once per distinct counter, per
	// spec §4.3's "heard from quorum" host hook.
	HeardFromQuorum func(scp.SlotIndex, uint32)
	Log             logctx.Logger

	Phase         Phase
	Current       scp.Ballot
	Prepared      scp.Ballot
	PreparedPrime scp.Ballot
	Commit        scp.Ballot
	HighBallot    scp.Ballot
	NC            uint32
	NP            uint32
	Latest        map[scp.NodeID]scp.Statement

	started      bool
	heardCounter uint32
	localQSetHash quorum.Hash
}

// New returns a zeroed Protocol ready for its first BumpState/
// ProcessEnvelope call.
func New(slot scp.SlotIndex, localID scp.NodeID, localQSet *quorum.QuorumSet, arbiter scp.ValueArbiter, qsets QSetSource, emit func(scp.Statement), externalized func(scp.SlotIndex, scp.Value), heardFromQuorum func(scp.SlotIndex, uint32), log logctx.Logger) (*Protocol, error) {
	if log == nil {
		log = logctx.Discard
	}
	hash, err := quorum.HashQuorumSet(localQSet)
	if err != nil {
		return nil, err
	}
	return &Protocol{
		SlotIndex:       slot,
		LocalID:         localID,
		LocalQSet:       localQSet,
		Arbiter:         arbiter,
		QSets:           qsets,
		Emit:            emit,
		Externalized:    externalized,
		HeardFromQuorum: heardFromQuorum,
		Log:             log,
		Latest:          make(map[scp.NodeID]scp.Statement),
		localQSetHash:   hash,
	}, nil
}

// Started reports whether BumpState has ever advanced this slot's
// working ballot off the null ballot; nomination consults this before
// handing off a fresh composite value (spec §4.2).
func (p *Protocol) Started() bool { return p.started }

// Frozen reports whether this slot has externalized; spec §3's
// invariant that once EXTERNALIZE(b) is emitted, b is frozen forever.
func (p *Protocol) Frozen() bool { return p.Phase == ExternalizePhase }

// BumpState implements spec §4.3's bumpState(value, force).
func (p *Protocol) BumpState(value scp.Value, force bool) (bool, error) {
	switch p.Phase {
	case ExternalizePhase:
		return false, nil

	case ConfirmPhase:
		if !force || p.HighBallot.IsNull() {
			return false, nil
		}
		next := scp.Ballot{Counter: p.Current.Counter + 1, Value: p.HighBallot.Value}
		if !p.Current.Less(next) {
			return false, nil
		}
		p.Current = next
		p.emitConfirm()
		return true, p.runAdvance()

	default: // PreparePhase
		chosen := value
		if !p.HighBallot.IsNull() {
			chosen = p.HighBallot.Value
		}
		next := scp.Ballot{Counter: p.Current.Counter + 1, Value: chosen}
		if !force && !p.Current.Less(next) {
			return false, nil
		}
		p.Current = next
		p.started = true
		p.emitPrepare()
		return true, p.runAdvance()
	}
}

// ProcessEnvelope implements spec §4.3's processEnvelope: statement
// validation, monotone-regression rejection, and the advance loop.
// stmt must be *scp.PrepareStatement, *scp.ConfirmStatement, or
// *scp.ExternalizeStatement; sender is the already-authenticated
// originating node.
func (p *Protocol) ProcessEnvelope(sender scp.NodeID, stmt scp.Statement) error {
	if code := p.Arbiter.ValidateBallot(p.SlotIndex, statementBallot(stmt)); code == scp.ValidationInvalid {
		p.Log.Logf("dropping ballot statement from %s: invalid", sender)
		return nil
	}
	if prev, ok := p.Latest[sender]; ok && !prev.Less(stmt) {
		p.Log.Logf("ignoring non-advancing ballot statement from %s", sender)
		return nil
	}
	p.Latest[sender] = stmt

	// Per SPEC_FULL §14's pinned open-question decision: once frozen,
	// keep the bookkeeping update above (so queries reflect the peer's
	// latest claim) but never re-enter the advance loop or emit again.
	if p.Phase == ExternalizePhase {
		return nil
	}
	return p.runAdvance()
}

// runAdvance repeatedly applies the five federated transitions until
// none makes progress, per original_source's advanceSlot work-list
// loop (SPEC_FULL §13): confirming PREPARED can unlock a fresh COMMIT
// acceptance within the same processEnvelope call.
func (p *Protocol) runAdvance() error {
	for {
		progress := false

		if ok, err := p.attemptAcceptPrepared(); err != nil {
			return err
		} else if ok {
			progress = true
		}
		if ok, err := p.attemptConfirmPrepared(); err != nil {
			return err
		} else if ok {
			progress = true
		}
		if p.Phase == PreparePhase {
			if ok, err := p.attemptAcceptCommit(); err != nil {
				return err
			} else if ok {
				progress = true
			}
			if ok, err := p.attemptConfirmCommit(); err != nil {
				return err
			} else if ok {
				progress = true
			}
		}
		if p.Phase == ConfirmPhase {
			if ok, err := p.attemptConfirmExternalize(); err != nil {
				return err
			} else if ok {
				progress = true
			}
		}
		if err := p.checkHeardFromQuorum(); err != nil {
			return err
		}
		if !progress {
			return nil
		}
	}
}

// candidateBallots collects every distinct ballot mentioned by a
// latest peer statement (its working ballot, prepared, and
// preparedPrime) plus the local working ballot, descending.
func (p *Protocol) candidateBallots() []scp.Ballot {
	type key struct {
		n uint32
		v string
	}
	seen := make(map[key]scp.Ballot)
	add := func(b scp.Ballot) {
		if b.IsNull() {
			return
		}
		k := key{n: b.Counter}
		if b.Value != nil {
			k.v = string(b.Value.Bytes())
		}
		seen[k] = b
	}
	for _, stmt := range p.Latest {
		switch st := stmt.(type) {
		case *scp.PrepareStatement:
			add(st.Ballot)
			add(st.Prepared)
			add(st.PreparedPrime)
		case *scp.ConfirmStatement:
			add(st.Ballot)
		case *scp.ExternalizeStatement:
			add(st.Commit)
		}
	}
	add(p.Current)

	out := make([]scp.Ballot, 0, len(seen))
	for _, b := range seen {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Less(out[i]) })
	return out
}

// attemptAcceptPrepared implements advance-loop step 1 of spec §4.3.
func (p *Protocol) attemptAcceptPrepared() (bool, error) {
	var best scp.Ballot
	for _, b := range p.candidateBallots() {
		if !p.Prepared.IsNull() && !p.Prepared.Less(b) {
			continue
		}
		peers := p.peersSatisfying(func(s scp.Statement) bool {
			return scp.VotesOrAcceptsPrepared(s, b)
		})
		if quorum.IsVBlocking(p.LocalQSet, peers) {
			best = b
			break
		}
		if _, ok := quorum.IsQuorum(p.LocalQSet, p.LocalID, peers, p.qsetOf); ok {
			best = b
			break
		}
	}
	if best.IsNull() {
		return false, nil
	}

	old := p.Prepared
	p.Prepared = best
	if !old.IsNull() && !scp.ValueEqual(old.Value, best.Value) {
		p.PreparedPrime = old
	}
	if !p.Commit.IsNull() {
		if (p.Prepared.Less(p.Commit) || p.Commit.Equal(p.Prepared)) && !scp.ValueEqual(p.Prepared.Value, p.Commit.Value) {
			p.Commit = scp.NullBallot
		} else if (p.PreparedPrime.Less(p.Commit) || p.Commit.Equal(p.PreparedPrime)) && !p.PreparedPrime.IsNull() && !scp.ValueEqual(p.PreparedPrime.Value, p.Commit.Value) {
			p.Commit = scp.NullBallot
		}
	}
	p.emitPrepare()
	return true, nil
}

// attemptConfirmPrepared implements advance-loop step 2 of spec §4.3.
func (p *Protocol) attemptConfirmPrepared() (bool, error) {
	if p.Prepared.IsNull() {
		return false, nil
	}
	var best scp.Ballot
	for _, b := range p.candidateBallots() {
		if !p.HighBallot.IsNull() && !p.HighBallot.Less(b) {
			continue
		}
		peers := p.peersSatisfying(func(s scp.Statement) bool {
			return scp.AcceptsPrepared(s, b)
		})
		if _, ok := quorum.IsQuorum(p.LocalQSet, p.LocalID, peers, p.qsetOf); ok {
			best = b
			break
		}
	}
	if best.IsNull() {
		return false, nil
	}

	p.HighBallot = best
	if !p.Commit.IsNull() && !scp.ValueEqual(p.HighBallot.Value, p.Commit.Value) {
		p.Commit = scp.NullBallot
	}
	if p.Commit.IsNull() && !p.Current.IsNull() && !p.Prepared.Aborts(p.HighBallot) && !p.PreparedPrime.Aborts(p.HighBallot) {
		p.Commit = p.Current
	}
	p.emitPrepare()
	return true, nil
}

// commitBounds narrows [lo, hi] to the intersection of every peer
// statement's overlapping commit/accept range for value, returning the
// set of peers that contributed and the narrowed bounds. Grounded on
// the reference's minMaxPred (slot.go), restated as explicit
// interval intersection.
func (p *Protocol) commitBounds(value scp.Value, predicate func(scp.Statement, scp.Value, uint32, uint32) (bool, uint32, uint32), lo, hi uint32) (quorum.NodeIDSet, uint32, uint32) {
	if lo > hi {
		return nil, 0, 0
	}
	var peers quorum.NodeIDSet
	curLo, curHi := lo, hi
	for id, stmt := range p.Latest {
		ok, slo, shi := predicate(stmt, value, curLo, curHi)
		if !ok {
			continue
		}
		if slo > curLo {
			curLo = slo
		}
		if shi < curHi {
			curHi = shi
		}
		peers = peers.Add(id)
	}
	if curLo > curHi {
		return nil, 0, 0
	}
	return peers, curLo, curHi
}

// attemptAcceptCommit implements advance-loop step 3 of spec §4.3.
func (p *Protocol) attemptAcceptCommit() (bool, error) {
	if p.Current.IsNull() {
		return false, nil
	}
	lo := uint32(1)
	if !p.Commit.IsNull() {
		lo = p.Commit.Counter
	}
	hi := p.Current.Counter
	peers, newLo, newHi := p.commitBounds(p.Current.Value, scp.VotesOrAcceptsCommit, lo, hi)
	if peers == nil {
		return false, nil
	}
	if !quorum.IsVBlocking(p.LocalQSet, peers) {
		if _, ok := quorum.IsQuorum(p.LocalQSet, p.LocalID, peers, p.qsetOf); !ok {
			return false, nil
		}
	}

	changed := false
	if p.Commit.IsNull() || p.Commit.Counter != newLo {
		p.Commit = scp.Ballot{Counter: newLo, Value: p.Current.Value}
		changed = true
	}
	if p.HighBallot.IsNull() || p.HighBallot.Counter < newHi {
		p.HighBallot = scp.Ballot{Counter: newHi, Value: p.Current.Value}
		changed = true
	}
	p.NC, p.NP = newLo, newHi
	if !changed {
		return false, nil
	}
	p.emitPrepare()
	return true, nil
}

// attemptConfirmCommit implements advance-loop step 4 of spec §4.3:
// transition PREPARE -> CONFIRM. Gated the same way as
// attemptAcceptCommit -- a v-blocking set or quorum of peers that vote
// for or accept commit(B) -- matching the reference's PhPrep->PhCommit
// transition (_examples/bobg-scp/slot.go's PhPrep case, which drives
// the move into PhCommit off votesOrAcceptsCommit's blocking-set-or-
// quorum check, not off a quorum of peers already in PhCommit/PhExt).
// A quorum of AcceptsCommit alone never forms here: AcceptsCommit only
// matches CONFIRM/EXTERNALIZE statements, so no node could ever be
// first to confirm commit and the protocol would deadlock in PREPARE.
// A peer's own PREPARE with nC>0 already records that it has accepted
// commit(B) is live for counters [nC,nP]; that's what VotesOrAcceptsCommit
// captures and attemptAcceptCommit has already narrowed locally.
func (p *Protocol) attemptConfirmCommit() (bool, error) {
	if p.Commit.IsNull() || p.HighBallot.IsNull() {
		return false, nil
	}
	peers, newLo, newHi := p.commitBounds(p.Commit.Value, scp.VotesOrAcceptsCommit, p.Commit.Counter, p.HighBallot.Counter)
	if peers == nil {
		return false, nil
	}
	if !quorum.IsVBlocking(p.LocalQSet, peers) {
		if _, ok := quorum.IsQuorum(p.LocalQSet, p.LocalID, peers, p.qsetOf); !ok {
			return false, nil
		}
	}

	p.Phase = ConfirmPhase
	p.Commit = scp.Ballot{Counter: newLo, Value: p.Commit.Value}
	p.HighBallot = scp.Ballot{Counter: newHi, Value: p.Commit.Value}
	p.NC, p.NP = newLo, newHi
	p.emitConfirm()
	return true, nil
}

// attemptConfirmExternalize implements advance-loop step 5 of spec
// §4.3: transition CONFIRM -> EXTERNALIZE.
func (p *Protocol) attemptConfirmExternalize() (bool, error) {
	peers, _, _ := p.commitBounds(p.Commit.Value, scp.AcceptsCommit, p.Commit.Counter, maxCounter)
	if peers == nil {
		return false, nil
	}
	if _, ok := quorum.IsQuorum(p.LocalQSet, p.LocalID, peers, p.qsetOf); !ok {
		return false, nil
	}

	p.Phase = ExternalizePhase
	p.emitExternalize()
	if p.Externalized != nil {
		p.Externalized(p.SlotIndex, p.Commit.Value)
	}
	return true, nil
}

// checkHeardFromQuorum implements spec §4.3's "heard from quorum"
// notification: fires at most once per distinct working-ballot counter.
func (p *Protocol) checkHeardFromQuorum() error {
	if p.Current.IsNull() || p.heardCounter >= p.Current.Counter {
		return nil
	}
	peers := p.peersSatisfying(func(s scp.Statement) bool {
		return counterAtLeast(s, p.Current.Counter)
	})
	if _, ok := quorum.IsQuorum(p.LocalQSet, p.LocalID, peers, p.qsetOf); !ok {
		return nil
	}
	p.heardCounter = p.Current.Counter
	if p.HeardFromQuorum != nil {
		p.HeardFromQuorum(p.SlotIndex, p.Current.Counter)
	}
	return nil
}

func counterAtLeast(s scp.Statement, n uint32) bool {
	switch st := s.(type) {
	case *scp.PrepareStatement:
		return st.Ballot.Counter >= n
	case *scp.ConfirmStatement:
		return st.Ballot.Counter >= n
	case *scp.ExternalizeStatement:
		return true
	}
	return false
}

func statementBallot(s scp.Statement) scp.Ballot {
	switch st := s.(type) {
	case *scp.PrepareStatement:
		return st.Ballot
	case *scp.ConfirmStatement:
		return st.Ballot
	case *scp.ExternalizeStatement:
		return st.Commit
	}
	return scp.NullBallot
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
	return p.QSets.GetQSet(stmt.Header().QSetHash)
}

func (p *Protocol) header() scp.Header {
	return scp.Header{NodeID: p.LocalID, SlotIndex: p.SlotIndex, QSetHash: p.localQSetHash}
}

func (p *Protocol) emitPrepare() {
	if p.Emit == nil {
		return
	}
	p.Emit(&scp.PrepareStatement{
		Head:          p.header(),
		Ballot:        p.Current,
		Prepared:      p.Prepared,
		PreparedPrime: p.PreparedPrime,
		NC:            p.NC,
		NP:            p.NP,
	})
}

func (p *Protocol) emitConfirm() {
	if p.Emit == nil {
		return
	}
	p.Emit(&scp.ConfirmStatement{
		Head:           p.header(),
		Ballot:         p.Current,
		NPrepared:      p.HighBallot.Counter,
		NP:             p.NP,
		CommitQSetHash: p.localQSetHash,
	})
}

func (p *Protocol) emitExternalize() {
	if p.Emit == nil {
		return
	}
	hash, err := quorum.HashQuorumSet(quorum.Singleton(p.LocalID))
	if err != nil {
		hash = p.localQSetHash
	}
	p.Emit(&scp.ExternalizeStatement{
		Head:           p.header(),
		CommitQSetHash: hash,
		Commit:         p.Commit,
		NP:             p.HighBallot.Counter,
	})
}
