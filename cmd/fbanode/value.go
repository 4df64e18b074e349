package main

import "github.com/DavidCanHelpMe/stellar-core/scp"

// foodValue is the demo host's toy Value type, a direct rename of
// cmd/lunch/main.go's valType -- a plain string with lexicographic
// order, no real application semantics, only enough to drive the
// engine end to end.
type foodValue string

func (v foodValue) Less(other scp.Value) bool { return v < other.(foodValue) }
func (v foodValue) Bytes() []byte             { return []byte(v) }
func (v foodValue) String() string            { return string(v) }

func decodeFoodValue(b []byte) (scp.Value, error) {
	return foodValue(b), nil
}

// foods mirrors cmd/lunch/main.go's foods list, the toy candidate
// values the demo host nominates from.
var foods = []foodValue{
	"burgers", "burritos", "gyros", "indian", "pasta",
	"pizza", "salads", "sandwiches", "soup", "sushi",
}

// toyArbiter is the demo host's scp.ValueArbiter: every value is
// valid, and CombineCandidates keeps the lexicographically greatest
// one on even slots and the least on odd slots, the same
// slot-parity-dependent rule cmd/lunch/main.go's valType.Combine uses
// (there to make the demo visibly nondeterministic across slots).
type toyArbiter struct{}

func (toyArbiter) ValidateValue(scp.SlotIndex, scp.Value) scp.ValidationCode {
	return scp.ValidationValid
}

func (toyArbiter) ValidateBallot(scp.SlotIndex, scp.Ballot) scp.ValidationCode {
	return scp.ValidationValid
}

func (toyArbiter) CombineCandidates(slot scp.SlotIndex, candidates scp.ValueSet) scp.Value {
	best := candidates[0]
	for _, v := range candidates[1:] {
		if slot%2 == 0 {
			if best.Less(v) {
				best = v
			}
		} else if v.Less(best) {
			best = v
		}
	}
	return best
}
