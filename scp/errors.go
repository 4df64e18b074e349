package scp

import (
	"github.com/DavidCanHelpMe/stellar-core/quorum"
	"github.com/pkg/errors"
)

// ConfigError re-exports quorum.ConfigError: a malformed quorum set,
// fatal at load time (spec §7).
type ConfigError = quorum.ConfigError

// ValidationFailure reports that a peer statement failed a structural
// check or the host's ValueArbiter. Per spec §7, the envelope carrying
// it is dropped silently; ValidationFailure exists for the (non-fatal)
// trace log, not to propagate to the host.
type ValidationFailure struct {
	Reason string
}

func (e *ValidationFailure) Error() string {
	return "validation failure: " + e.Reason
}

// UnknownQSet reports that a statement referenced a qset hash the host
// could not resolve. Per spec §7 the statement is parked, not
// dropped, so the engine can retry once the host supplies the qset.
type UnknownQSet struct {
	Hash quorum.Hash
}

func (e *UnknownQSet) Error() string {
	return "unknown quorum set referenced"
}

// InvariantViolation is an internal error that should never occur in
// a correctly-implemented engine; per spec §7 it is fatal and the
// slot becomes unusable once raised.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Reason
}

func newInvariantViolation(format string, args ...interface{}) error {
	return errors.Wrap(&InvariantViolation{Reason: errors.Errorf(format, args...).Error()}, "scp engine")
}
