package ledger

import "errors"

var (
	// ErrInvalidContribution rejects non-positive amounts, unverified
	// proofs and missing identifiers at the boundary.
	ErrInvalidContribution = errors.New("invalid contribution")

	// ErrDuplicateProof means the proof reference was already consumed by
	// an identical contribution. Callers get the original contribution ID
	// back alongside this error, so a replay is a no-op for them.
	ErrDuplicateProof = errors.New("duplicate proof reference")

	// ErrProofConflict means the proof reference was already consumed by a
	// contribution with different fields. Never overwritten; flagged for
	// manual review.
	ErrProofConflict = errors.New("proof reference conflict")
)
