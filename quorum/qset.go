package quorum

import (
	"crypto/sha256"

	xdr "github.com/davecgh/go-xdr/xdr"
	"github.com/pkg/errors"
)

// QuorumSet is the recursive quorum-slice descriptor described in
// spec §3: a threshold and a list of children, each either a NodeID
// ("validators") or another QuorumSet ("innerSets").
//
// Unlike the reference implementation's flat [][]NodeID slices, this
// is the full nested tree the spec calls for; Validators and
// InnerSets together are "the children" referred to throughout §4.1.
type QuorumSet struct {
	Threshold  uint32
	Validators []NodeID
	InnerSets  []*QuorumSet
}

// ConfigError reports a structurally invalid QuorumSet, detected at
// load time per spec §7.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid quorum set: " + e.Reason
}

// Validate checks the threshold-range invariant (1 <= threshold <=
// len(children)) at every level of the tree, and guards against a
// cyclic tree (structurally impossible if QuorumSets are always
// constructed as owned, non-shared children, but not something the
// Go type system rules out, so this still checks it defensively,
// per spec §9's design note).
func (q *QuorumSet) Validate() error {
	return q.validate(make(map[*QuorumSet]bool))
}

func (q *QuorumSet) validate(seen map[*QuorumSet]bool) error {
	if q == nil {
		return &ConfigError{Reason: "nil quorum set"}
	}
	if seen[q] {
		return &ConfigError{Reason: "cycle detected in nested quorum sets"}
	}
	seen[q] = true
	defer delete(seen, q)

	numChildren := len(q.Validators) + len(q.InnerSets)
	if q.Threshold < 1 || int(q.Threshold) > numChildren {
		return &ConfigError{Reason: errors.Errorf("threshold %d out of range [1,%d]", q.Threshold, numChildren).Error()}
	}
	for _, inner := range q.InnerSets {
		if err := inner.validate(seen); err != nil {
			return err
		}
	}
	return nil
}

// Hash is a SHA-256 digest of a QuorumSet's XDR encoding (spec §6).
type Hash [32]byte

// HashQuorumSet computes the canonical hash of q, as referenced from
// a statement's qset_hash field.
func HashQuorumSet(q *QuorumSet) (Hash, error) {
	wire, err := toWireQSet(q)
	if err != nil {
		return Hash{}, err
	}
	b, err := xdr.Marshal(wire)
	if err != nil {
		return Hash{}, errors.Wrap(err, "marshaling quorum set for hashing")
	}
	return sha256.Sum256(b), nil
}

// wireQSet mirrors SCPQuorumSet from spec §6 in a shape go-xdr's
// reflective encoder can walk directly (no pointers, no variable-width
// union discriminants beyond plain slices).
type wireQSet struct {
	Threshold  uint32
	Validators [][32]byte
	InnerSets  []wireQSet
}

func toWireQSet(q *QuorumSet) (wireQSet, error) {
	if q == nil {
		return wireQSet{}, errors.New("cannot hash a nil quorum set")
	}
	w := wireQSet{Threshold: q.Threshold}
	for _, v := range q.Validators {
		w.Validators = append(w.Validators, v)
	}
	for _, inner := range q.InnerSets {
		iw, err := toWireQSet(inner)
		if err != nil {
			return wireQSet{}, err
		}
		w.InnerSets = append(w.InnerSets, iw)
	}
	return w, nil
}

// Singleton returns the implicit quorum set {{id}} stellar-core
// substitutes when verifying an EXTERNALIZE statement's commit
// quorum set hash, since by that point the statement no longer needs
// to carry a re-verifiable slice (see original_source/LocalNode.h,
// getSingletonQSet, and SPEC_FULL §13).
func Singleton(id NodeID) *QuorumSet {
	return &QuorumSet{Threshold: 1, Validators: []NodeID{id}}
}

// AllNodes returns every NodeID reachable in q's tree, deduplicated,
// not including any implicit local-node membership (spec: "the root Q
// belongs to the local node" is not itself listed as a child).
// Grounded on original_source/LocalNode.h's forAllNodes.
func AllNodes(q *QuorumSet) NodeIDSet {
	var out NodeIDSet
	var walk func(*QuorumSet)
	walk = func(q *QuorumSet) {
		if q == nil {
			return
		}
		for _, id := range q.Validators {
			out = out.Add(id)
		}
		for _, inner := range q.InnerSets {
			walk(inner)
		}
	}
	walk(q)
	return out
}
