package quorum

import "testing"

func TestWeightSimple(t *testing.T) {
	v := ids(2)
	q := &QuorumSet{Threshold: 1, Validators: v}
	w := Weight(v[0], q)
	if w == 0 {
		t.Fatal("expected nonzero weight for a validator with threshold 1 of 2")
	}
	// threshold/children = 1/2, so weight should be roughly half of MaxUint64.
	half := uint64(1) << 63
	if w < half/2 || w > half+half/2 {
		t.Errorf("weight %d not in the expected ballpark of %d", w, half)
	}
}

func TestWeightUnknownNode(t *testing.T) {
	v := ids(2)
	q := &QuorumSet{Threshold: 1, Validators: v[:1]}
	if w := Weight(v[1], q); w != 0 {
		t.Errorf("expected zero weight for a node absent from the qset, got %d", w)
	}
}

func TestWeightNested(t *testing.T) {
	v := ids(3)
	inner := &QuorumSet{Threshold: 1, Validators: []NodeID{v[1], v[2]}}
	root := &QuorumSet{Threshold: 1, Validators: []NodeID{v[0]}, InnerSets: []*QuorumSet{inner}}
	// v[1] is behind two 1-of-N levels: 1/2 (root) * 1/2 (inner) = 1/4.
	w := Weight(v[1], root)
	quarter := uint64(1) << 62
	if w < quarter/2 || w > quarter+quarter/2 {
		t.Errorf("nested weight %d not in the ballpark of %d", w, quarter)
	}
}
