package scp

import "fmt"

// Ballot is (counter, value) with lexicographic order, per spec §3.
// Grounded verbatim on the reference's ballot.go.
type Ballot struct {
	Counter uint32
	Value   Value
}

// NullBallot is the sentinel "no ballot": counter 0, empty value.
var NullBallot Ballot

// IsNull reports whether b is the null ballot.
func (b Ballot) IsNull() bool {
	return b.Counter == 0 && b.Value == nil
}

// Less implements the (counter, value) lexicographic order.
func (b Ballot) Less(other Ballot) bool {
	if b.Counter != other.Counter {
		return b.Counter < other.Counter
	}
	if b.Value == nil {
		return other.Value != nil
	}
	if other.Value == nil {
		return false
	}
	return b.Value.Less(other.Value)
}

// Equal reports counter and value equality.
func (b Ballot) Equal(other Ballot) bool {
	return b.Counter == other.Counter && ValueEqual(b.Value, other.Value)
}

// Compatible reports whether a and b could both be prepared at once:
// same value, or one of them null.
func (b Ballot) Compatible(other Ballot) bool {
	if b.Value == nil || other.Value == nil {
		return true
	}
	return ValueEqual(b.Value, other.Value)
}

// Aborts reports whether voting to prepare b aborts other: other has
// a lower counter and an incompatible value.
func (b Ballot) Aborts(other Ballot) bool {
	return other.Counter < b.Counter && !b.Compatible(other)
}

func (b Ballot) String() string {
	if b.IsNull() {
		return "<null>"
	}
	return fmt.Sprintf("(%d,%s)", b.Counter, ValueString(b.Value))
}

// BallotSet is a sorted set of ballots, mirroring ValueSet.
type BallotSet []Ballot

func (bs BallotSet) Contains(b Ballot) bool {
	for _, other := range bs {
		if other.Equal(b) {
			return true
		}
	}
	return false
}

func (bs BallotSet) Add(b Ballot) BallotSet {
	if bs.Contains(b) {
		return bs
	}
	out := make(BallotSet, 0, len(bs)+1)
	inserted := false
	for _, other := range bs {
		if !inserted && b.Less(other) {
			out = append(out, b)
			inserted = true
		}
		out = append(out, other)
	}
	if !inserted {
		out = append(out, b)
	}
	return out
}

func (bs BallotSet) Remove(b Ballot) BallotSet {
	out := make(BallotSet, 0, len(bs))
	for _, other := range bs {
		if !other.Equal(b) {
			out = append(out, other)
		}
	}
	return out
}

// Max returns the greatest ballot in bs, or the null ballot if bs is empty.
func (bs BallotSet) Max() Ballot {
	if len(bs) == 0 {
		return NullBallot
	}
	return bs[len(bs)-1]
}
