// Package chain implements the proof-of-work ledger that notarizes patent
// records.
//
// A Ledger is an append-only sequence of Blocks. Block 0 is a genesis block
// synthesized and mined when the ledger is created; every later block records
// the hash of its predecessor and is mined until its SHA-256 hash starts with
// the ledger's difficulty in '0' hex digits. Tampering with any field of a
// stored block, or reordering blocks, is detected by Verify.
//
// The ledger is an in-process structure with a single writer. Persistence,
// presentation and transport live in the packages layered on top of it.
package chain

import "errors"

var (
	// ErrMalformedPayload is returned when a payload has no canonical encoding.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrTamperedBlock reports a block whose stored hash no longer matches its fields.
	ErrTamperedBlock = errors.New("block hash does not match contents")

	// ErrBrokenLinkage reports a block whose previous hash is not its predecessor's hash.
	ErrBrokenLinkage = errors.New("block is not linked to its predecessor")

	// ErrIndexMismatch is returned by AppendBlock for a candidate whose index is
	// not the next position in the chain.
	ErrIndexMismatch = errors.New("block index does not match chain length")

	// ErrMiningCanceled is returned when a bounded mining run is canceled.
	ErrMiningCanceled = errors.New("mining canceled")

	// ErrAttemptsExhausted is returned when a bounded mining run hits its attempt cap.
	ErrAttemptsExhausted = errors.New("mining attempts exhausted")

	// ErrInvalidSnapshot is returned by Restore for a block sequence that cannot
	// form a ledger.
	ErrInvalidSnapshot = errors.New("invalid ledger snapshot")
)
