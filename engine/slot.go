// Package engine implements spec §4.4's Slot/SCPEngine: the outward
// host-facing API that owns one (slot_index -> {Nomination, Ballot})
// pair per decision slot, dispatches inbound envelopes by message
// type, and mediates the host callbacks of spec §6.
//
// Grounded on the reference's node.go Node (Pending map[SlotID]*Slot,
// Handle) for the multi-slot dispatch shape, and on slot.go's Slot for
// the per-slot state it used to hold in one place -- here split across
// package nomination and package ballot per spec §2's component
// breakdown, with this package providing the glue spec §4.4 calls for.
// This package, not package scp, owns that glue: nomination and ballot
// both import package scp for its data-model types (Value, Statement,
// Envelope, Host), so the composition root has to sit above all three
// to avoid an import cycle -- see DESIGN.md.
package engine

import (
	"github.com/DavidCanHelpMe/stellar-core/ballot"
	"github.com/DavidCanHelpMe/stellar-core/internal/logctx"
	"github.com/DavidCanHelpMe/stellar-core/nomination"
	"github.com/DavidCanHelpMe/stellar-core/scp"
)

// Slot is spec §3's per-slot state: a nomination half, a ballot half,
// and the monotone map of each peer's single highest statement.
type Slot struct {
	Index      scp.SlotIndex
	Nomination *nomination.Protocol
	Ballot     *ballot.Protocol
	Latest     map[scp.NodeID]scp.Statement
}

func newSlot(e *Engine, index scp.SlotIndex) (*Slot, error) {
	s := &Slot{Index: index, Latest: make(map[scp.NodeID]scp.Statement)}

	ballotProto, err := ballot.New(index, e.localID, e.localQSet, e.host, e.host,
		func(stmt scp.Statement) { e.signAndEmit(stmt) },
		func(slot scp.SlotIndex, v scp.Value) { e.host.ValueExternalized(slot, v) },
		func(slot scp.SlotIndex, counter uint32) { e.host.BallotDidHearFromQuorum(slot, counter) },
		logctx.New(nil, "ballot"))
	if err != nil {
		return nil, err
	}
	s.Ballot = ballotProto

	nomProto, err := nomination.New(index, e.localID, e.localQSet, e.host, e.host, ballotProto,
		func(stmt *scp.NominateStatement) { e.signAndEmit(stmt) },
		logctx.New(nil, "nomination"))
	if err != nil {
		return nil, err
	}
	s.Nomination = nomProto

	return s, nil
}

// admit applies spec §3's cross-type monotone peer-statement rule:
// statements from a single node form a monotone sequence ordered
// EXTERNALIZE > CONFIRM > PREPARE > NOMINATE, and (within NOMINATE) by
// the combined votes+accepted count. A statement that doesn't strictly
// dominate the sender's stored one is dropped. This is enforced here,
// above both sub-protocols' own same-type monotonicity checks, because
// a stale NOMINATE replayed after the sender has moved into the
// ballot protocol would otherwise pass nomination's own (NOMINATE-only)
// regression check.
func (s *Slot) admit(sender scp.NodeID, stmt scp.Statement) bool {
	if prev, ok := s.Latest[sender]; ok && !prev.Less(stmt) {
		return false
	}
	s.Latest[sender] = stmt
	return true
}
