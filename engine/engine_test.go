package engine

import (
	"fmt"
	"testing"

	"github.com/DavidCanHelpMe/stellar-core/quorum"
	"github.com/DavidCanHelpMe/stellar-core/scp"
	"github.com/stretchr/testify/require"
)

// strValue is a minimal scp.Value for tests, ordered lexicographically.
type strValue string

func (v strValue) Less(other scp.Value) bool { return v < other.(strValue) }
func (v strValue) Bytes() []byte             { return []byte(v) }
func (v strValue) String() string            { return string(v) }

const (
	xV = strValue("xV")
	yV = strValue("yV")
	zV = strValue("zV")
)

// fakeHost is a minimal scp.Host: it trusts every signature and
// statement, encodes statements as their String form instead of real
// XDR (and never decodes them), and records everything emitted or
// externalized for assertions.
type fakeHost struct {
	qsets       map[quorum.Hash]*quorum.QuorumSet
	emitted     []*scp.Envelope
	externalized map[scp.SlotIndex]scp.Value
	heard       []uint32
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		qsets:        make(map[quorum.Hash]*quorum.QuorumSet),
		externalized: make(map[scp.SlotIndex]scp.Value),
	}
}

func (h *fakeHost) ValidateValue(scp.SlotIndex, scp.Value) scp.ValidationCode { return scp.ValidationValid }
func (h *fakeHost) ValidateBallot(scp.SlotIndex, scp.Ballot) scp.ValidationCode {
	return scp.ValidationValid
}
func (h *fakeHost) CombineCandidates(_ scp.SlotIndex, candidates scp.ValueSet) scp.Value {
	return candidates[0]
}
func (h *fakeHost) Sign(payload []byte) ([]byte, error) { return payload, nil }
func (h *fakeHost) Verify(scp.NodeID, []byte, []byte) bool { return true }
func (h *fakeHost) MarshalStatement(s scp.Statement) ([]byte, error) {
	return []byte(s.String()), nil
}
func (h *fakeHost) UnmarshalStatement([]byte) (scp.Statement, error) {
	return nil, nil
}
func (h *fakeHost) Emit(env *scp.Envelope)                    { h.emitted = append(h.emitted, env) }
func (h *fakeHost) GetQSet(hash quorum.Hash) (*quorum.QuorumSet, bool) {
	q, ok := h.qsets[hash]
	return q, ok
}
func (h *fakeHost) ValueExternalized(slot scp.SlotIndex, v scp.Value) { h.externalized[slot] = v }
func (h *fakeHost) BallotDidHearFromQuorum(_ scp.SlotIndex, counter uint32) {
	h.heard = append(h.heard, counter)
}

func fiveValidators(t *testing.T, h *fakeHost) (ids [5]quorum.NodeID, root *quorum.QuorumSet) {
	t.Helper()
	for i := range ids {
		ids[i] = quorum.NodeIDFromBytes([]byte(fmt.Sprintf("validator-%d", i)))
	}
	root = &quorum.QuorumSet{Threshold: 4, Validators: ids[:]}
	hash, err := quorum.HashQuorumSet(root)
	require.NoError(t, err)
	h.qsets[hash] = root
	return ids, root
}

func nominateFrom(sender quorum.NodeID, qsetHash quorum.Hash, votes, accepted scp.ValueSet) *scp.NominateStatement {
	return &scp.NominateStatement{
		Head:     scp.Header{NodeID: sender, SlotIndex: 0, QSetHash: qsetHash},
		Votes:    votes,
		Accepted: accepted,
	}
}

func envelopeFor(stmt scp.Statement) *scp.Envelope {
	return &scp.Envelope{Statement: stmt, Signature: []byte("sig")}
}

// TestNominateToExternalize drives a full slot end to end: once a
// quorum of peers votes and accepts the same value, the composite
// candidate is handed to the ballot protocol and (after the usual
// PREPARE/CONFIRM rounds) the slot externalizes it.
func TestNominateToExternalize(t *testing.T) {
	h := newFakeHost()
	ids, root := fiveValidators(t, h)
	rootHash, err := quorum.HashQuorumSet(root)
	require.NoError(t, err)
	v0 := ids[0]

	e, err := New(v0, root, h)
	require.NoError(t, err)
	s0, err := e.slotFor(0)
	require.NoError(t, err)
	// Pin v0 as its own round-1 leader so the test doesn't depend on
	// the hash-based priority test's outcome for this fixture.
	s0.Nomination.LeaderFunc = func(uint64, uint32, *quorum.QuorumSet, quorum.NodeIDSet) (quorum.NodeIDSet, error) {
		return quorum.NodeIDSet{v0}, nil
	}

	ok, err := e.Nominate(0, xV, false)
	require.NoError(t, err)
	require.True(t, ok)

	for _, peer := range ids[1:4] {
		state, err := e.ReceiveEnvelope(envelopeFor(nominateFrom(peer, rootHash, scp.ValueSet{xV}, scp.ValueSet{xV})))
		require.NoError(t, err)
		require.Equal(t, EnvelopeValid, state)
	}
	require.Equal(t, xV, e.GetLatestCompositeCandidate(0))
	require.NotNil(t, e.GetCurrentBallot(0))
	require.Equal(t, scp.Ballot{Counter: 1, Value: xV}, *e.GetCurrentBallot(0))

	for _, peer := range ids[1:4] {
		state, err := e.ReceiveEnvelope(envelopeFor(&scp.PrepareStatement{
			Head:   scp.Header{NodeID: peer, SlotIndex: 0, QSetHash: rootHash},
			Ballot: scp.Ballot{Counter: 1, Value: xV},
		}))
		require.NoError(t, err)
		require.Equal(t, EnvelopeValid, state)
	}
	for _, peer := range ids[1:4] {
		state, err := e.ReceiveEnvelope(envelopeFor(&scp.PrepareStatement{
			Head:     scp.Header{NodeID: peer, SlotIndex: 0, QSetHash: rootHash},
			Ballot:   scp.Ballot{Counter: 1, Value: xV},
			Prepared: scp.Ballot{Counter: 1, Value: xV},
		}))
		require.NoError(t, err)
		require.Equal(t, EnvelopeValid, state)
	}
	for _, peer := range ids[1:4] {
		state, err := e.ReceiveEnvelope(envelopeFor(&scp.ConfirmStatement{
			Head:      scp.Header{NodeID: peer, SlotIndex: 0, QSetHash: rootHash},
			Ballot:    scp.Ballot{Counter: 1, Value: xV},
			NPrepared: 1,
			NP:        1,
		}))
		require.NoError(t, err)
		require.Equal(t, EnvelopeValid, state)
	}

	require.Equal(t, xV, h.externalized[0])
}

// TestAdmitEnforcesCrossTypeMonotonicity covers spec §3's rule that a
// sender's statements form a monotone EXTERNALIZE > CONFIRM > PREPARE
// > NOMINATE sequence: a replayed NOMINATE after the same sender has
// already moved into the ballot protocol is dropped, even though
// nomination's own same-type check would have accepted it.
func TestAdmitEnforcesCrossTypeMonotonicity(t *testing.T) {
	h := newFakeHost()
	ids, root := fiveValidators(t, h)
	rootHash, err := quorum.HashQuorumSet(root)
	require.NoError(t, err)
	v0 := ids[0]

	e, err := New(v0, root, h)
	require.NoError(t, err)
	s, err := e.slotFor(0)
	require.NoError(t, err)

	peer := ids[1]
	nomStmt := nominateFrom(peer, rootHash, scp.ValueSet{xV}, nil)
	require.True(t, s.admit(peer, nomStmt))

	prepStmt := &scp.PrepareStatement{
		Head:   scp.Header{NodeID: peer, SlotIndex: 0, QSetHash: rootHash},
		Ballot: scp.Ballot{Counter: 1, Value: xV},
	}
	require.True(t, s.admit(peer, prepStmt))

	// A NOMINATE delivered after PREPARE must be rejected outright,
	// regardless of its votes/accepted content.
	staleNom := nominateFrom(peer, rootHash, scp.ValueSet{xV, yV}, scp.ValueSet{xV})
	require.False(t, s.admit(peer, staleNom))
}

// TestNominationLeaderWait reproduces spec §8's scenario S5: with no
// messages at all, nominate(0, xV) from a non-leader node emits
// nothing; once the rigged leader's NOMINATE has arrived, the next
// nominate call copies its votes and emits.
func TestNominationLeaderWait(t *testing.T) {
	h := newFakeHost()
	ids, root := fiveValidators(t, h)
	rootHash, err := quorum.HashQuorumSet(root)
	require.NoError(t, err)
	v0, leader := ids[0], ids[1]

	e, err := New(v0, root, h)
	require.NoError(t, err)
	s, err := e.slotFor(0)
	require.NoError(t, err)
	s.Nomination.LeaderFunc = func(uint64, uint32, *quorum.QuorumSet, quorum.NodeIDSet) (quorum.NodeIDSet, error) {
		return quorum.NodeIDSet{leader}, nil
	}

	ok, err := e.Nominate(0, xV, false)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, h.emitted)

	state, err := e.ReceiveEnvelope(envelopeFor(nominateFrom(leader, rootHash, scp.ValueSet{yV}, nil)))
	require.NoError(t, err)
	require.Equal(t, EnvelopeValid, state)
	require.Empty(t, h.emitted) // receiving the leader's vote alone doesn't re-copy it

	// The host re-calls nominate (e.g. on its own periodic recheck);
	// finding the still-current leader's statement now on file, v0
	// copies its votes and emits.
	ok, err = e.Nominate(0, xV, false)
	require.NoError(t, err)
	require.True(t, ok)

	require.NotEmpty(t, h.emitted)
	nom, ok2 := h.emitted[len(h.emitted)-1].Statement.(*scp.NominateStatement)
	require.True(t, ok2)
	require.True(t, nom.Votes.Contains(yV))
}

// TestNominationTimeoutEscalatesRound reproduces spec §8's scenario
// S6: the initial leader is silent; a timedOut nominate() escalates
// the round and recomputes leaders from scratch, and the new leader's
// previously-seen statement is copied immediately.
func TestNominationTimeoutEscalatesRound(t *testing.T) {
	h := newFakeHost()
	ids, root := fiveValidators(t, h)
	rootHash, err := quorum.HashQuorumSet(root)
	require.NoError(t, err)
	v0, firstLeader, secondLeader := ids[0], ids[1], ids[2]

	e, err := New(v0, root, h)
	require.NoError(t, err)
	s, err := e.slotFor(0)
	require.NoError(t, err)

	round := uint32(0)
	s.Nomination.LeaderFunc = func(_ uint64, r uint32, _ *quorum.QuorumSet, _ quorum.NodeIDSet) (quorum.NodeIDSet, error) {
		round = r
		if r <= 1 {
			return quorum.NodeIDSet{firstLeader}, nil
		}
		return quorum.NodeIDSet{secondLeader}, nil
	}

	ok, err := e.Nominate(0, xV, false)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, uint32(1), round)

	state, err := e.ReceiveEnvelope(envelopeFor(nominateFrom(secondLeader, rootHash, scp.ValueSet{zV}, nil)))
	require.NoError(t, err)
	require.Equal(t, EnvelopeValid, state)
	require.Empty(t, h.emitted) // still round 1, secondLeader isn't leader yet

	ok, err = e.Nominate(0, xV, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(2), round)
	require.Equal(t, uint32(2), s.Nomination.Round)

	nom, ok := h.emitted[len(h.emitted)-1].Statement.(*scp.NominateStatement)
	require.True(t, ok)
	require.True(t, nom.Votes.Contains(zV))
}

// TestReceiveEnvelopeRejectsBadSignature covers spec §4.4's
// receiveEnvelope INVALID path: a host that refuses to verify a
// signature causes the envelope to be dropped before it reaches
// either sub-protocol.
func TestReceiveEnvelopeRejectsBadSignature(t *testing.T) {
	h := newFakeHost()
	ids, root := fiveValidators(t, h)
	rootHash, err := quorum.HashQuorumSet(root)
	require.NoError(t, err)
	v0 := ids[0]

	env := envelopeFor(nominateFrom(ids[1], rootHash, scp.ValueSet{xV}, nil))
	env.Signature = nil
	// Swap in a host whose Verify always fails, via a thin wrapper.
	rejecting := &rejectingHost{fakeHost: h}
	e, err := New(v0, root, rejecting)
	require.NoError(t, err)

	state, err := e.ReceiveEnvelope(env)
	require.NoError(t, err)
	require.Equal(t, EnvelopeInvalid, state)
	require.Empty(t, rejecting.fakeHost.emitted)
}

type rejectingHost struct {
	*fakeHost
}

func (r *rejectingHost) Verify(scp.NodeID, []byte, []byte) bool { return false }
