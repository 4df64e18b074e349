package quorum

import "testing"

func ids(n int) []NodeID {
	out := make([]NodeID, n)
	for i := range out {
		out[i] = NodeIDFromBytes([]byte{byte(i)})
	}
	return out
}

// TestRootQuorumSet reproduces the literal scenario from spec §8's
// "Quorum predicates" section: a root qset {threshold=3, validators=v0..v3}.
func TestRootQuorumSet(t *testing.T) {
	v := ids(4)
	q := &QuorumSet{Threshold: 3, Validators: v}

	cases := []struct {
		name        string
		set         NodeIDSet
		wantSlice   bool
		wantBlocked bool
	}{
		{"{v0}", NodeIDSet{v[0]}, false, false},
		{"{v0,v2}", NodeIDSet{v[0], v[2]}, false, true},
		{"{v0,v2,v3}", NodeIDSet{v[0], v[2], v[3]}, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsQuorumSlice(q, tc.set); got != tc.wantSlice {
				t.Errorf("IsQuorumSlice(%v) = %v, want %v", tc.set, got, tc.wantSlice)
			}
			if got := IsVBlocking(q, tc.set); got != tc.wantBlocked {
				t.Errorf("IsVBlocking(%v) = %v, want %v", tc.set, got, tc.wantBlocked)
			}
		})
	}
}

func TestIsQuorumSliceNested(t *testing.T) {
	v := ids(5)
	inner1 := &QuorumSet{Threshold: 2, Validators: []NodeID{v[0], v[1], v[2]}}
	inner2 := &QuorumSet{Threshold: 2, Validators: []NodeID{v[2], v[3], v[4]}}
	root := &QuorumSet{Threshold: 2, InnerSets: []*QuorumSet{inner1, inner2}}

	if IsQuorumSlice(root, NodeIDSet{v[0], v[1]}) {
		t.Error("one satisfied inner set should not satisfy the root alone")
	}
	if !IsQuorumSlice(root, NodeIDSet{v[0], v[1], v[3], v[4]}) {
		t.Error("two satisfied inner sets should satisfy the root")
	}
}

func TestIsQuorumTransitive(t *testing.T) {
	// x trusts {a,b,c} with threshold 2; each of a,b,c trusts the other
	// two, threshold 2; this is a single all-encompassing quorum.
	x, a, b, c := ids(4)[0], ids(4)[1], ids(4)[2], ids(4)[3]
	qx := &QuorumSet{Threshold: 2, Validators: []NodeID{a, b, c}}
	qa := &QuorumSet{Threshold: 2, Validators: []NodeID{b, c}}
	qb := &QuorumSet{Threshold: 2, Validators: []NodeID{a, c}}
	qc := &QuorumSet{Threshold: 2, Validators: []NodeID{a, b}}

	qsetOf := func(id NodeID) (*QuorumSet, bool) {
		switch id {
		case a:
			return qa, true
		case b:
			return qb, true
		case c:
			return qc, true
		}
		return nil, false
	}

	known := NodeIDSet{a, b, c}
	members, ok := IsQuorum(qx, x, known, qsetOf)
	if !ok {
		t.Fatal("expected a quorum")
	}
	if !members.Contains(a) || !members.Contains(b) || !members.Contains(c) {
		t.Errorf("expected quorum to contain a, b, c; got %v", members)
	}
}

func TestIsQuorumShrinksOnMissingQSet(t *testing.T) {
	x, a, b := ids(3)[0], ids(3)[1], ids(3)[2]
	qx := &QuorumSet{Threshold: 1, Validators: []NodeID{a}}
	qa := &QuorumSet{Threshold: 1, Validators: []NodeID{b}}

	qsetOf := func(id NodeID) (*QuorumSet, bool) {
		if id == a {
			return qa, true
		}
		return nil, false // b's qset unknown
	}

	_, ok := IsQuorum(qx, x, NodeIDSet{a, b}, qsetOf)
	if ok {
		t.Error("quorum should not form when a dependency's qset is unresolvable")
	}
}
