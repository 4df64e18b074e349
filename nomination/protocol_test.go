package nomination

import (
	"fmt"
	"testing"

	"github.com/DavidCanHelpMe/stellar-core/quorum"
	"github.com/DavidCanHelpMe/stellar-core/scp"
)

// intValue is a minimal scp.Value for tests: ordered by the wrapped int.
type intValue int

func (v intValue) Less(other scp.Value) bool { return v < other.(intValue) }
func (v intValue) Bytes() []byte             { return []byte{byte(v)} }
func (v intValue) String() string            { return fmt.Sprintf("v%d", int(v)) }

// firstOfArbiter combines candidates by picking the lowest-sorted one,
// matching scp.ValueSet's sort order.
type firstOfArbiter struct{}

func (firstOfArbiter) ValidateValue(scp.SlotIndex, scp.Value) scp.ValidationCode  { return scp.ValidationValid }
func (firstOfArbiter) ValidateBallot(scp.SlotIndex, scp.Ballot) scp.ValidationCode { return scp.ValidationValid }
func (firstOfArbiter) CombineCandidates(_ scp.SlotIndex, candidates scp.ValueSet) scp.Value {
	return candidates[0]
}

type stubBallot struct {
	started   bool
	bumpedTo  scp.Value
	bumpCalls int
}

func (s *stubBallot) BumpState(value scp.Value, force bool) (bool, error) {
	s.started = true
	s.bumpedTo = value
	s.bumpCalls++
	return true, nil
}

func (s *stubBallot) Started() bool { return s.started }

type stubQSets struct {
	m map[quorum.Hash]*quorum.QuorumSet
}

func (q *stubQSets) GetQSet(h quorum.Hash) (*quorum.QuorumSet, bool) {
	qs, ok := q.m[h]
	return qs, ok
}

func testIDs(n int) []scp.NodeID {
	out := make([]scp.NodeID, n)
	for i := range out {
		out[i] = quorum.NodeIDFromBytes([]byte{byte(i + 1)})
	}
	return out
}

func newTestProtocol(t *testing.T, local scp.NodeID, q *quorum.QuorumSet, ballot BallotHandoff) (*Protocol, *stubQSets) {
	t.Helper()
	qsets := &stubQSets{m: make(map[quorum.Hash]*quorum.QuorumSet)}
	p, err := New(1, local, q, firstOfArbiter{}, qsets, ballot, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, qsets
}

func registerPeer(t *testing.T, p *Protocol, qsets *stubQSets, id scp.NodeID, q *quorum.QuorumSet, votes, accepted scp.ValueSet) {
	t.Helper()
	hash, err := quorum.HashQuorumSet(q)
	if err != nil {
		t.Fatalf("hashing peer qset: %v", err)
	}
	qsets.m[hash] = q
	stmt := &scp.NominateStatement{
		Head:     scp.Header{NodeID: id, SlotIndex: p.SlotIndex, QSetHash: hash},
		Votes:    votes,
		Accepted: accepted,
	}
	if err := p.ProcessEnvelope(id, stmt); err != nil {
		t.Fatalf("ProcessEnvelope(%s): %v", id, err)
	}
}

func TestNominateFirstCallArmsRoundOne(t *testing.T) {
	ids := testIDs(1)
	q := &quorum.QuorumSet{Threshold: 1, Validators: []scp.NodeID{ids[0]}}
	p, _ := newTestProtocol(t, ids[0], q, &stubBallot{})

	if p.NominationStarted {
		t.Fatal("NominationStarted should be false before first Nominate")
	}
	if _, err := p.Nominate(intValue(1), false); err != nil {
		t.Fatal(err)
	}
	if !p.NominationStarted || p.Round != 1 {
		t.Fatalf("got started=%v round=%d, want started=true round=1", p.NominationStarted, p.Round)
	}
}

func TestNominateTimeoutAdvancesRound(t *testing.T) {
	ids := testIDs(1)
	q := &quorum.QuorumSet{Threshold: 1, Validators: []scp.NodeID{ids[0]}}
	p, _ := newTestProtocol(t, ids[0], q, &stubBallot{})

	if _, err := p.Nominate(intValue(1), false); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Nominate(intValue(1), true); err != nil {
		t.Fatal(err)
	}
	if p.Round != 2 {
		t.Fatalf("round = %d, want 2 after timeout", p.Round)
	}
}

func TestFederatedAcceptByQuorum(t *testing.T) {
	ids := testIDs(4)
	local, a, b, c := ids[0], ids[1], ids[2], ids[3]

	// local's quorum set names only its peers, per convention (a node's
	// own ID is never listed among its own children); a,b,c each trust
	// themselves only, so the fixed-point closure over {a,b,c} survives
	// and must satisfy local's threshold directly.
	localQ := &quorum.QuorumSet{Threshold: 3, Validators: []scp.NodeID{a, b, c}}
	selfQ := func(id scp.NodeID) *quorum.QuorumSet {
		return &quorum.QuorumSet{Threshold: 1, Validators: []scp.NodeID{id}}
	}

	ballot := &stubBallot{}
	p, qsets := newTestProtocol(t, local, localQ, ballot)

	v := intValue(7)
	registerPeer(t, p, qsets, a, selfQ(a), scp.ValueSet{v}, nil)
	registerPeer(t, p, qsets, b, selfQ(b), scp.ValueSet{v}, nil)
	if p.Accepted.Contains(v) {
		t.Fatal("v accepted too early: only two of three peers voted")
	}
	registerPeer(t, p, qsets, c, selfQ(c), scp.ValueSet{v}, nil)
	if !p.Accepted.Contains(v) {
		t.Fatal("v should be accepted once a,b,c all vote and form a quorum with local")
	}
}

func TestFederatedConfirmHandsOffToBallot(t *testing.T) {
	ids := testIDs(4)
	local, a, b, c := ids[0], ids[1], ids[2], ids[3]
	localQ := &quorum.QuorumSet{Threshold: 3, Validators: []scp.NodeID{a, b, c}}
	selfQ := func(id scp.NodeID) *quorum.QuorumSet {
		return &quorum.QuorumSet{Threshold: 1, Validators: []scp.NodeID{id}}
	}

	ballot := &stubBallot{}
	p, qsets := newTestProtocol(t, local, localQ, ballot)
	if _, err := p.Nominate(intValue(9), false); err != nil {
		t.Fatal(err)
	}

	v := intValue(9)
	registerPeer(t, p, qsets, a, selfQ(a), nil, scp.ValueSet{v})
	registerPeer(t, p, qsets, b, selfQ(b), nil, scp.ValueSet{v})
	registerPeer(t, p, qsets, c, selfQ(c), nil, scp.ValueSet{v})

	if !p.Candidates.Contains(v) {
		t.Fatal("v should be a candidate once a,b,c accept it")
	}
	if !ballot.started || ballot.bumpCalls != 1 {
		t.Fatalf("ballot handoff not triggered: started=%v calls=%d", ballot.started, ballot.bumpCalls)
	}
	if ballot.bumpedTo != v {
		t.Fatalf("bumped to %v, want %v", ballot.bumpedTo, v)
	}
}

func TestProcessEnvelopeRejectsRegression(t *testing.T) {
	ids := testIDs(2)
	local, a := ids[0], ids[1]
	localQ := &quorum.QuorumSet{Threshold: 1, Validators: []scp.NodeID{a}}
	p, qsets := newTestProtocol(t, local, localQ, &stubBallot{})

	aQ := &quorum.QuorumSet{Threshold: 1, Validators: []scp.NodeID{a}}
	registerPeer(t, p, qsets, a, aQ, scp.ValueSet{intValue(1), intValue(2)}, nil)
	if len(p.Latest[a].Votes) != 2 {
		t.Fatalf("expected 2 votes recorded, got %d", len(p.Latest[a].Votes))
	}

	hash, _ := quorum.HashQuorumSet(aQ)
	regressed := &scp.NominateStatement{
		Head:  scp.Header{NodeID: a, SlotIndex: p.SlotIndex, QSetHash: hash},
		Votes: scp.ValueSet{intValue(1)},
	}
	if err := p.ProcessEnvelope(a, regressed); err != nil {
		t.Fatal(err)
	}
	if len(p.Latest[a].Votes) != 2 {
		t.Fatal("regressive nomination should have been ignored")
	}
}
