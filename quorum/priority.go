package quorum

import (
	"crypto/sha256"
	"math/big"

	xdr "github.com/davecgh/go-xdr/xdr"
	"github.com/pkg/errors"
)

// hashTuple is the XDR-encoded (slotIndex, round, nodeID, tag) input
// to the truncated-SHA-256 digest H referenced throughout spec §4.1 and
// §4.2. Grounded on the reference's node.go G/Neighbors/Priority,
// which XDR-encode a round number and a tag byte before hashing; here
// generalized to cover the full tuple the spec names explicitly.
type hashTuple struct {
	SlotIndex uint64
	Round     uint32
	NodeID    [32]byte
	Tag       byte
}

func hash(slotIndex uint64, round uint32, n NodeID, tag byte) ([32]byte, error) {
	b, err := xdr.Marshal(hashTuple{SlotIndex: slotIndex, Round: round, NodeID: n, Tag: tag})
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "encoding priority hash input")
	}
	return sha256.Sum256(b), nil
}

const (
	tagPriority byte = 'P'
	tagNeighbor byte = 'N'
)

// Priority implements spec §4.1's threshold test:
//
//	priority(n, round, slot) = H(slot, round, n, "P") < weight(n, Q) * H(slot, round, n, "N")
//
// where each H is the SHA-256 digest truncated to its first 64 bits
// (big-endian), and weight(n, Q) is read as the fraction
// Weight(n, q)/2^64. Priority holds more often for nodes with greater
// weight in the local quorum set, and its randomness source (the hash)
// makes the round's leader selection unpredictable ahead of time.
func Priority(slotIndex uint64, round uint32, n NodeID, q *QuorumSet) (bool, error) {
	hp, err := hash(slotIndex, round, n, tagPriority)
	if err != nil {
		return false, err
	}
	hn, err := hash(slotIndex, round, n, tagNeighbor)
	if err != nil {
		return false, err
	}
	w := Weight(n, q)

	// Compare hp * 2^64 < w * hn, i.e. hp < (w/2^64) * hn.
	lhs := new(big.Int).Lsh(new(big.Int).SetBytes(hp[:8]), 64)
	rhs := new(big.Int).Mul(new(big.Int).SetUint64(w), new(big.Int).SetBytes(hn[:8]))
	return lhs.Cmp(rhs) < 0, nil
}

// Leaders returns the subset of candidates for which Priority holds,
// for the given (slotIndex, round) over q. Spec §4.2 models the
// result as a set (`leaders: set<NodeID>`), not a single winner: ties
// in the priority test are expected and all survivors are leaders for
// the round.
func Leaders(slotIndex uint64, round uint32, q *QuorumSet, candidates NodeIDSet) (NodeIDSet, error) {
	var out NodeIDSet
	for _, id := range candidates {
		ok, err := Priority(slotIndex, round, id, q)
		if err != nil {
			return nil, err
		}
		if ok {
			out = out.Add(id)
		}
	}
	return out, nil
}
