// Package models holds the wire-level types that cross the boundary
// between a host process and the gbt core: the transactions it is
// asked to schedule, the fee accelerations applied to them, and the
// result of a single projection run.
package models

// InputTx is a single mempool transaction as supplied by the caller.
// Everything here is treated as trusted input — the core does not
// validate well-formedness, recompute sigops, or otherwise second
// guess these numbers (see spec Non-goals).
type InputTx struct {
	// UID is the caller-assigned 32-bit identity for this transaction.
	UID uint32 `json:"uid"`

	// Order is a deterministic tiebreaker: a stable partial hash of the
	// real txid. See internal/txid for one way to derive it.
	Order uint32 `json:"order"`

	// Fee is the transaction's total fee in satoshis.
	Fee uint64 `json:"fee"`

	// Weight is the transaction's consensus weight units.
	Weight uint32 `json:"weight"`

	// Sigops is the declared signature-operation count.
	Sigops uint32 `json:"sigops"`

	// EffectiveFeePerVsize is the fee rate the caller currently
	// believes this transaction pays, before this projection run.
	EffectiveFeePerVsize float64 `json:"effectiveFeePerVsize"`

	// Inputs holds the UIDs of this transaction's direct parents that
	// are present in this mempool snapshot.
	Inputs []uint32 `json:"inputs"`
}

// Acceleration bumps a single transaction's effective fee for one
// projection run only. The delta is never added to the stored Fee, but
// the effective rate it produces is written back to
// EffectiveFeePerVsize like any other reported rate.
type Acceleration struct {
	UID   uint32  `json:"uid"`
	Delta float64 `json:"delta"`
}

// RateUpdate reports a transaction whose effective fee rate changed
// (sigop adjustment, CPFP bump or package dilution) or that received a
// positive acceleration.
type RateUpdate struct {
	UID  uint32  `json:"uid"`
	Rate float64 `json:"rate"`
}

// GbtResult is the output of one gbt run: the projected blocks, the
// dependency clusters used to build them, every rate change the
// caller must apply back to its mempool, and whatever didn't fit.
type GbtResult struct {
	// Blocks lists, in order, the UIDs committed to each projected
	// block. Length is bounded by the handle's MaxBlocks; each inner
	// slice is in inclusion order (every ancestor precedes its
	// descendants).
	Blocks [][]uint32 `json:"blocks"`

	// BlockWeights holds the total weight of each entry in Blocks.
	BlockWeights []uint32 `json:"blockWeights"`

	// Clusters lists every dependency package (more than one
	// transaction) that was committed as an atomic unit.
	Clusters [][]uint32 `json:"clusters"`

	// Rates lists the new effective fee rate for every transaction
	// whose rate changed during this run, and for every transaction
	// with a positive acceleration even if its rate did not move.
	Rates []RateUpdate `json:"rates"`

	// Overflow holds UIDs that did not fit in any bounded block and
	// were deferred past the final projected block.
	Overflow []uint32 `json:"overflow"`

	// TotalFee is the sum, in satoshis, of every transaction committed
	// to any bounded or unbounded block (excludes Overflow).
	TotalFee uint64 `json:"totalFee"`
}
