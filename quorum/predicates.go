package quorum

// This file implements the three core predicates of spec §4.1,
// restated directly from the spec's recursive definitions. The
// reference implementation (quorum.go's findBlockingSetHelper /
// findSliceQuorum / findNodeQuorum) computes the same thing by
// searching a live map of received statements; these functions are
// the pure, statement-free predicates that search is built on top of
// -- the shape stellar-core itself exposes directly as
// LocalNode::isQuorumSliceInternal / isVBlockingInternal
// (original_source/LocalNode.h).

// IsQuorumSlice reports whether s contains a slice satisfying q: a
// quorum slice is satisfied when at least q.Threshold of q's children
// are covered, where a NodeID child counts if it's in s, and a nested
// QuorumSet child counts if IsQuorumSlice holds for it recursively.
func IsQuorumSlice(q *QuorumSet, s NodeIDSet) bool {
	if q == nil {
		return false
	}
	var n int
	for _, id := range q.Validators {
		if s.Contains(id) {
			n++
		}
	}
	for _, inner := range q.InnerSets {
		if IsQuorumSlice(inner, s) {
			n++
		}
	}
	return n >= int(q.Threshold)
}

// IsVBlocking reports whether s is v-blocking for q: removing s from
// consideration leaves fewer than q.Threshold children satisfiable, so
// no quorum slice of q can be formed without at least one member of s.
//
// Symmetric to IsQuorumSlice: a NodeID child blocks if it's in s, a
// nested QuorumSet child blocks if IsVBlocking holds for it
// recursively; v-blocking holds when blocking_count exceeds
// len(children) - threshold, i.e. fewer than threshold children can
// still be satisfied without s.
func IsVBlocking(q *QuorumSet, s NodeIDSet) bool {
	if q == nil {
		return false
	}
	numChildren := len(q.Validators) + len(q.InnerSets)
	if q.Threshold == 0 {
		return false
	}
	var blocking int
	for _, id := range q.Validators {
		if s.Contains(id) {
			blocking++
		}
	}
	for _, inner := range q.InnerSets {
		if IsVBlocking(inner, s) {
			blocking++
		}
	}
	return numChildren-int(q.Threshold) < blocking
}

// QSetOf resolves the QuorumSet a given node advertises, as recorded
// in the node's latest known statement. The host supplies this lazily
// (spec §3: "inner Q's describe the slices of referenced nodes
// (retrieved lazily from the host)").
type QSetOf func(NodeID) (*QuorumSet, bool)

// IsQuorum computes the transitive closure described in spec §4.1:
// starting from the nodes present in known (the set of peers we have
// a statement from) together with the local node itself -- the local
// node always implicitly backs its own vote, the same way stellar-core
// treats its own pending statement as already present -- repeatedly
// remove any node whose own quorum set is not satisfied by what
// remains, until a fixed point is reached. If the surviving set
// satisfies q0 (the local node's quorum set), that surviving set is
// returned; otherwise IsQuorum returns nil and ok=false.
//
// This restates the reference's findQuorum/findNodeQuorum/
// findSliceQuorum backtracking search as the explicit fixed-point
// iteration spec §4.1 describes; same transitive-closure idea, no
// backtracking required because membership only shrinks monotonically.
func IsQuorum(q0 *QuorumSet, localID NodeID, known NodeIDSet, qsetOf QSetOf) (NodeIDSet, bool) {
	resolve := func(id NodeID) (*QuorumSet, bool) {
		if id == localID {
			return q0, true
		}
		return qsetOf(id)
	}

	members := known.Add(localID)
	for {
		var shrunk bool
		var next NodeIDSet
		for _, id := range members {
			q, ok := resolve(id)
			if !ok || !IsQuorumSlice(q, members) {
				shrunk = true
				continue
			}
			next = next.Add(id)
		}
		members = next
		if !shrunk {
			break
		}
	}
	if len(members) == 0 {
		return nil, false
	}
	if !IsQuorumSlice(q0, members) {
		return nil, false
	}
	return members, true
}

// BlockingOrQuorum finds a v-blocking set for q0 among known first,
// falling back to a full quorum via IsQuorum. This mirrors the
// reference's findBlockingSetOrQuorum -- v-blocking is cheaper to
// establish and is tried first. Package ballot's advance loop makes
// the same two checks inline (IsVBlocking, then IsQuorum) rather than
// calling this function.
func BlockingOrQuorum(q0 *QuorumSet, localID NodeID, candidates NodeIDSet, qsetOf QSetOf) (NodeIDSet, bool) {
	if IsVBlocking(q0, candidates) {
		return candidates, true
	}
	return IsQuorum(q0, localID, candidates, qsetOf)
}
