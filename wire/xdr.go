// Package wire implements the XDR encoding of spec §6's SCPStatement
// and SCPQuorumSet wire structures. Grounded on quorum.HashQuorumSet's
// wireQSet (github.com/davecgh/go-xdr/xdr), generalized from a
// hash-only encoding to the full round-trippable statement codec a
// host needs for signing and transport.
package wire

import (
	"github.com/DavidCanHelpMe/stellar-core/quorum"
	"github.com/DavidCanHelpMe/stellar-core/scp"
	xdr "github.com/davecgh/go-xdr/xdr"
	"github.com/pkg/errors"
)

// wireBallot is scp.Ballot flattened to XDR-safe fields; an empty
// Value encodes the null ballot (scp.NullBallot).
type wireBallot struct {
	Counter uint32
	Value   []byte
}

// wireStatement mirrors spec §6's SCPStatement union as a single flat
// struct discriminated by Type, the shape go-xdr's reflective encoder
// needs (no pointers, no Go interfaces). Unused fields for a given
// Type are left zero.
type wireStatement struct {
	Type      uint32
	NodeID    [32]byte
	SlotIndex uint64
	QSetHash  [32]byte

	Votes    [][]byte
	Accepted [][]byte

	Ballot         wireBallot
	Prepared       wireBallot
	PreparedPrime  wireBallot
	NC             uint32
	NP             uint32
	NPrepared      uint32
	CommitQSetHash [32]byte
}

// ValueCodec decodes the opaque payload inside a wire value into the
// host's concrete scp.Value type. Values are application-defined (spec
// §3: "opaque, totally-ordered"), so -- like the reference's msg.go
// hardcoding valtype -- the byte<->Value mapping has to come from the
// host, here as an injected function instead of a hardcoded type.
type ValueCodec func([]byte) (scp.Value, error)

// Codec implements scp.Codec with the XDR encoding above.
type Codec struct {
	DecodeValue ValueCodec
}

func (c Codec) MarshalStatement(stmt scp.Statement) ([]byte, error) {
	w, err := toWireStatement(stmt)
	if err != nil {
		return nil, err
	}
	b, err := xdr.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling statement")
	}
	return b, nil
}

func (c Codec) UnmarshalStatement(b []byte) (scp.Statement, error) {
	var w wireStatement
	if _, err := xdr.Unmarshal(b, &w); err != nil {
		return nil, errors.Wrap(err, "unmarshaling statement")
	}
	return c.fromWireStatement(w)
}

func toWireBallot(b scp.Ballot) wireBallot {
	if b.IsNull() {
		return wireBallot{}
	}
	return wireBallot{Counter: b.Counter, Value: b.Value.Bytes()}
}

func (c Codec) fromWireBallot(w wireBallot) (scp.Ballot, error) {
	if w.Counter == 0 && len(w.Value) == 0 {
		return scp.NullBallot, nil
	}
	v, err := c.DecodeValue(w.Value)
	if err != nil {
		return scp.Ballot{}, err
	}
	return scp.Ballot{Counter: w.Counter, Value: v}, nil
}

func toWireStatement(stmt scp.Statement) (wireStatement, error) {
	head := stmt.Header()
	w := wireStatement{
		NodeID:    head.NodeID,
		SlotIndex: uint64(head.SlotIndex),
		QSetHash:  head.QSetHash,
	}
	switch st := stmt.(type) {
	case *scp.NominateStatement:
		w.Type = uint32(scp.NominateType)
		for _, v := range st.Votes {
			w.Votes = append(w.Votes, v.Bytes())
		}
		for _, v := range st.Accepted {
			w.Accepted = append(w.Accepted, v.Bytes())
		}

	case *scp.PrepareStatement:
		w.Type = uint32(scp.PrepareType)
		w.Ballot = toWireBallot(st.Ballot)
		w.Prepared = toWireBallot(st.Prepared)
		w.PreparedPrime = toWireBallot(st.PreparedPrime)
		w.NC = st.NC
		w.NP = st.NP

	case *scp.ConfirmStatement:
		w.Type = uint32(scp.ConfirmType)
		w.Ballot = toWireBallot(st.Ballot)
		w.NPrepared = st.NPrepared
		w.NP = st.NP
		w.CommitQSetHash = st.CommitQSetHash

	case *scp.ExternalizeStatement:
		w.Type = uint32(scp.ExternalizeType)
		w.Ballot = toWireBallot(st.Commit)
		w.NP = st.NP
		w.CommitQSetHash = st.CommitQSetHash

	default:
		return wireStatement{}, errors.Errorf("wire: unknown statement type %T", stmt)
	}
	return w, nil
}

func (c Codec) fromWireStatement(w wireStatement) (scp.Statement, error) {
	head := scp.Header{
		NodeID:    w.NodeID,
		SlotIndex: scp.SlotIndex(w.SlotIndex),
		QSetHash:  w.QSetHash,
	}
	switch scp.StatementType(w.Type) {
	case scp.NominateType:
		votes, err := c.decodeValueSet(w.Votes)
		if err != nil {
			return nil, err
		}
		accepted, err := c.decodeValueSet(w.Accepted)
		if err != nil {
			return nil, err
		}
		return &scp.NominateStatement{Head: head, Votes: votes, Accepted: accepted}, nil

	case scp.PrepareType:
		ballot, err := c.fromWireBallot(w.Ballot)
		if err != nil {
			return nil, err
		}
		prepared, err := c.fromWireBallot(w.Prepared)
		if err != nil {
			return nil, err
		}
		preparedPrime, err := c.fromWireBallot(w.PreparedPrime)
		if err != nil {
			return nil, err
		}
		return &scp.PrepareStatement{
			Head: head, Ballot: ballot, Prepared: prepared, PreparedPrime: preparedPrime,
			NC: w.NC, NP: w.NP,
		}, nil

	case scp.ConfirmType:
		ballot, err := c.fromWireBallot(w.Ballot)
		if err != nil {
			return nil, err
		}
		return &scp.ConfirmStatement{
			Head: head, Ballot: ballot, NPrepared: w.NPrepared, NP: w.NP,
			CommitQSetHash: w.CommitQSetHash,
		}, nil

	case scp.ExternalizeType:
		commit, err := c.fromWireBallot(w.Ballot)
		if err != nil {
			return nil, err
		}
		return &scp.ExternalizeStatement{
			Head: head, Commit: commit, NP: w.NP, CommitQSetHash: w.CommitQSetHash,
		}, nil

	default:
		return nil, errors.Errorf("wire: unknown statement type %d", w.Type)
	}
}

func (c Codec) decodeValueSet(raw [][]byte) (scp.ValueSet, error) {
	var out scp.ValueSet
	for _, b := range raw {
		v, err := c.DecodeValue(b)
		if err != nil {
			return nil, err
		}
		out = out.Add(v)
	}
	return out, nil
}

// MarshalQuorumSet and UnmarshalQuorumSet round-trip a *quorum.QuorumSet
// for the cases outside a statement where the wire form is needed
// directly -- config loading and peer qset exchange (spec §6).
func MarshalQuorumSet(q *quorum.QuorumSet) ([]byte, error) {
	w, err := toWireQSetExported(q)
	if err != nil {
		return nil, err
	}
	b, err := xdr.Marshal(w)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling quorum set")
	}
	return b, nil
}

func UnmarshalQuorumSet(b []byte) (*quorum.QuorumSet, error) {
	var w wireQSet
	if _, err := xdr.Unmarshal(b, &w); err != nil {
		return nil, errors.Wrap(err, "unmarshaling quorum set")
	}
	return w.toQuorumSet(), nil
}

// wireQSet duplicates quorum/qset.go's unexported wireQSet shape; kept
// separate because that one is private to quorum's own hash
// computation and this package has no need to reach into it.
type wireQSet struct {
	Threshold  uint32
	Validators [][32]byte
	InnerSets  []wireQSet
}

func toWireQSetExported(q *quorum.QuorumSet) (wireQSet, error) {
	if q == nil {
		return wireQSet{}, errors.New("cannot marshal a nil quorum set")
	}
	w := wireQSet{Threshold: q.Threshold}
	for _, v := range q.Validators {
		w.Validators = append(w.Validators, v)
	}
	for _, inner := range q.InnerSets {
		iw, err := toWireQSetExported(inner)
		if err != nil {
			return wireQSet{}, err
		}
		w.InnerSets = append(w.InnerSets, iw)
	}
	return w, nil
}

func (w wireQSet) toQuorumSet() *quorum.QuorumSet {
	q := &quorum.QuorumSet{Threshold: w.Threshold}
	for _, v := range w.Validators {
		q.Validators = append(q.Validators, quorum.NodeID(v))
	}
	for _, inner := range w.InnerSets {
		q.InnerSets = append(q.InnerSets, inner.toQuorumSet())
	}
	return q
}
