// Package scp defines the wire-level data model of spec §3 -- Value,
// Ballot, SCPStatement, SCPEnvelope -- and the host capability
// interfaces of §6. Packages nomination and ballot build on it, and
// package engine ties them together into the per-slot agreement engine.
package scp

import (
	"sort"
)

// Value is an opaque, totally-ordered variable-length payload voted on
// by the network (spec §3). Unlike the reference implementation's
// scp.Value, this interface has no Combine method: combining candidate
// values into a composite is the host's ValueArbiter's job (spec §6),
// not the value type's -- see callbacks.go.
type Value interface {
	Less(Value) bool
	Bytes() []byte
	String() string
}

// ValueEqual reports whether a and b compare equal under Less.
func ValueEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return !a.Less(b) && !b.Less(a)
}

// ValueString renders v, or "<nil>" if v is nil.
func ValueString(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

// ValueSet is a set of Values kept as a sorted slice, per spec §3's
// "sorted set<Value>", so that wire encoding is canonical. Grounded on
// the reference's ValueSet (value.go).
type ValueSet []Value

// Contains uses binary search to test membership.
func (vs ValueSet) Contains(v Value) bool {
	i := sort.Search(len(vs), func(i int) bool { return !vs[i].Less(v) })
	return i < len(vs) && ValueEqual(vs[i], v)
}

// Add returns a new ValueSet with v inserted in sorted position. vs is
// not mutated.
func (vs ValueSet) Add(v Value) ValueSet {
	if vs.Contains(v) {
		return vs
	}
	out := make(ValueSet, len(vs)+1)
	i := sort.Search(len(vs), func(i int) bool { return v.Less(vs[i]) })
	copy(out, vs[:i])
	out[i] = v
	copy(out[i+1:], vs[i:])
	return out
}

// Remove returns a new ValueSet with v removed, if present.
func (vs ValueSet) Remove(v Value) ValueSet {
	i := sort.Search(len(vs), func(i int) bool { return !vs[i].Less(v) })
	if i >= len(vs) || !ValueEqual(vs[i], v) {
		return vs
	}
	out := make(ValueSet, 0, len(vs)-1)
	out = append(out, vs[:i]...)
	out = append(out, vs[i+1:]...)
	return out
}

// Union returns a new ValueSet containing the members of vs and other.
func (vs ValueSet) Union(other ValueSet) ValueSet {
	out := vs
	for _, v := range other {
		out = out.Add(v)
	}
	return out
}

// IsSubsetRefinementOf reports whether vs "grows" other in the
// votes-accepted-monotone sense spec §4.2 requires of successive
// NOMINATE statements from the same peer: every member of other is
// still present in vs (nothing disappears).
func (vs ValueSet) IsSubsetRefinementOf(other ValueSet) bool {
	for _, v := range other {
		if !vs.Contains(v) {
			return false
		}
	}
	return true
}

func (vs ValueSet) String() string {
	var b []byte
	b = append(b, '[')
	for i, v := range vs {
		if i > 0 {
			b = append(b, ' ')
		}
		b = append(b, ValueString(v)...)
	}
	b = append(b, ']')
	return string(b)
}
