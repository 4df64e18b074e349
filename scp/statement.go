package scp

import (
	"fmt"

	"github.com/DavidCanHelpMe/stellar-core/quorum"
)

// NodeID re-exports quorum.NodeID so callers of package scp don't need
// to import quorum for the common case.
type NodeID = quorum.NodeID

// SlotIndex identifies a decision slot.
type SlotIndex uint64

// StatementType discriminates the SCPStatement union of spec §3.
type StatementType int

const (
	NominateType StatementType = iota
	PrepareType
	ConfirmType
	ExternalizeType
)

func (t StatementType) String() string {
	switch t {
	case NominateType:
		return "NOMINATE"
	case PrepareType:
		return "PREPARE"
	case ConfirmType:
		return "CONFIRM"
	case ExternalizeType:
		return "EXTERNALIZE"
	default:
		return "UNKNOWN"
	}
}

// Rank orders statement types for the monotone peer-statement map of
// spec §3: "EXTERNALIZE > CONFIRM > PREPARE" (NOMINATE, not itself a
// ballot-protocol statement, sorts lowest). Exported so package engine
// can enforce the cross-type monotonicity rule at the Slot level, on
// top of each sub-protocol's own same-type monotonicity check.
func (t StatementType) Rank() int { return t.rank() }

func (t StatementType) rank() int {
	switch t {
	case NominateType:
		return 0
	case PrepareType:
		return 1
	case ConfirmType:
		return 2
	case ExternalizeType:
		return 3
	default:
		return -1
	}
}

// Statement is the tagged union of spec §3's SCPStatement, modeled as
// an interface with exhaustive type-switch matching per spec §9's
// design note ("do not use dynamic dispatch"). Concrete
// implementations embed Header for the fields common to all variants.
type Statement interface {
	Header() Header
	Type() StatementType
	// BallotCounter returns the ballot.counter carried by PREPARE and
	// CONFIRM statements, and 0 for NOMINATE and EXTERNALIZE (which
	// carry no live counter of their own).
	BallotCounter() uint32
	// Less defines the monotone order a single peer's successive
	// statements must respect (spec §3's invariants); statements of
	// different types compare by type rank first.
	Less(Statement) bool
	String() string
}

// Header carries the fields spec §3 says are "embedded" in every
// SCPStatement: the sender, the slot, and the sender's quorum set hash.
type Header struct {
	NodeID    NodeID
	SlotIndex SlotIndex
	QSetHash  quorum.Hash
}

func lessByRank(a, b Statement) (decided, less bool) {
	ra, rb := a.Type().rank(), b.Type().rank()
	if ra != rb {
		return true, ra < rb
	}
	return false, false
}

// NominateStatement is spec §3's NOMINATE: (qset_hash, votes, accepted).
type NominateStatement struct {
	Head     Header
	Votes    ValueSet
	Accepted ValueSet
}

func (s *NominateStatement) Header() Header       { return s.Head }
func (s *NominateStatement) Type() StatementType  { return NominateType }
func (s *NominateStatement) BallotCounter() uint32 { return 0 }

func (s *NominateStatement) Less(other Statement) bool {
	if decided, less := lessByRank(s, other); decided {
		return less
	}
	o := other.(*NominateStatement)
	// A later NOMINATE statement always has at-least-as-much
	// votes+accepted as an earlier one (spec §4.2's monotone
	// votes-accepted refinement); use the combined cardinality as the
	// natural order.
	return len(s.Votes)+len(s.Accepted) < len(o.Votes)+len(o.Accepted)
}

func (s *NominateStatement) String() string {
	return fmt.Sprintf("NOMINATE votes=%s accepted=%s", s.Votes, s.Accepted)
}

// PrepareStatement is spec §3's PREPARE:
// (qset_hash, ballot b, prepared p?, preparedPrime p'?, nC, nP).
type PrepareStatement struct {
	Head          Header
	Ballot        Ballot
	Prepared      Ballot // null if absent
	PreparedPrime Ballot // null if absent
	NC            uint32
	NP            uint32
}

func (s *PrepareStatement) Header() Header        { return s.Head }
func (s *PrepareStatement) Type() StatementType   { return PrepareType }
func (s *PrepareStatement) BallotCounter() uint32 { return s.Ballot.Counter }

func (s *PrepareStatement) Less(other Statement) bool {
	if decided, less := lessByRank(s, other); decided {
		return less
	}
	o := other.(*PrepareStatement)
	if !s.Ballot.Equal(o.Ballot) {
		return s.Ballot.Less(o.Ballot)
	}
	if !s.Prepared.Equal(o.Prepared) {
		return s.Prepared.Less(o.Prepared)
	}
	if !s.PreparedPrime.Equal(o.PreparedPrime) {
		return s.PreparedPrime.Less(o.PreparedPrime)
	}
	return s.NP < o.NP
}

func (s *PrepareStatement) String() string {
	return fmt.Sprintf("PREPARE b=%s p=%s p'=%s nC=%d nP=%d", s.Ballot, s.Prepared, s.PreparedPrime, s.NC, s.NP)
}

// ConfirmStatement is spec §3's CONFIRM:
// (qset_hash, ballot b, nPrepared, nP, commitQSetHash).
type ConfirmStatement struct {
	Head           Header
	Ballot         Ballot
	NPrepared      uint32
	NP             uint32
	CommitQSetHash quorum.Hash
}

func (s *ConfirmStatement) Header() Header        { return s.Head }
func (s *ConfirmStatement) Type() StatementType   { return ConfirmType }
func (s *ConfirmStatement) BallotCounter() uint32 { return s.Ballot.Counter }

func (s *ConfirmStatement) Less(other Statement) bool {
	if decided, less := lessByRank(s, other); decided {
		return less
	}
	o := other.(*ConfirmStatement)
	if !s.Ballot.Equal(o.Ballot) {
		return s.Ballot.Less(o.Ballot)
	}
	if s.NPrepared != o.NPrepared {
		return s.NPrepared < o.NPrepared
	}
	return s.NP < o.NP
}

func (s *ConfirmStatement) String() string {
	return fmt.Sprintf("CONFIRM b=%s nPrepared=%d nP=%d", s.Ballot, s.NPrepared, s.NP)
}

// ExternalizeStatement is spec §3's EXTERNALIZE: (commitQSetHash, commit, nP).
type ExternalizeStatement struct {
	Head           Header
	CommitQSetHash quorum.Hash
	Commit         Ballot
	NP             uint32
}

func (s *ExternalizeStatement) Header() Header        { return s.Head }
func (s *ExternalizeStatement) Type() StatementType   { return ExternalizeType }
func (s *ExternalizeStatement) BallotCounter() uint32 { return 0 }

func (s *ExternalizeStatement) Less(other Statement) bool {
	if decided, less := lessByRank(s, other); decided {
		return less
	}
	o := other.(*ExternalizeStatement)
	return s.NP < o.NP
}

func (s *ExternalizeStatement) String() string {
	return fmt.Sprintf("EXTERNALIZE commit=%s nP=%d", s.Commit, s.NP)
}
