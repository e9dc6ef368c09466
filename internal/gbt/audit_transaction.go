package gbt

import (
	"math"

	"github.com/rawblock/gbt-engine/pkg/models"
)

// auditTransaction is the internal, mutable working record for one
// mempool transaction during a single projection run. Only the
// effective fee rate and the dirty flag ever escape this package (via
// Run's write-back into the caller's mempool map).
type auditTransaction struct {
	uid    uint32
	order  uint32
	fee    uint64
	weight uint32
	sigops uint32

	// sigopAdjustedWeight = max(weight, sigops*20).
	sigopAdjustedWeight uint32
	// sigopAdjustedVsize = max(ceil(weight/4), sigops*5).
	sigopAdjustedVsize uint32

	adjustedFeePerVsize  float64
	effectiveFeePerVsize float64

	// dependencyRate is the minimum cluster rate of any ancestor
	// package already committed; starts at +Inf and only ever falls.
	dependencyRate float64

	inputs []uint32

	relativesSet bool
	ancestors    map[uint32]struct{}
	children     map[uint32]struct{}

	ancestorFee                 uint64
	ancestorSigopAdjustedWeight uint32
	ancestorSigopAdjustedVsize  uint32
	ancestorSigops              uint32

	// score is private by construction: it must never become NaN, and
	// nothing outside calcNewScore may assign it.
	score float64

	used     bool
	modified bool
	dirty    bool
}

// calcFeeRate divides fee by vsize, substituting 1.0 for a zero
// denominator so the result is never +Inf or NaN.
func calcFeeRate(fee uint64, vsize float64) float64 {
	if vsize == 0 {
		vsize = 1.0
	}
	return float64(fee) / vsize
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// newAuditTransaction builds the working record for tx, applying an
// optional fee acceleration. Matches AuditTransaction::from_thread_transaction:
// a negative or zero delta contributes nothing (the original casts a
// negative f64 delta to u64, which saturates to 0 — reproduced here
// explicitly instead of relying on an overflow).
func newAuditTransaction(tx *models.InputTx, delta float64) *auditTransaction {
	if delta < 0 {
		delta = 0
	}
	fee := tx.Fee + uint64(delta)

	isAdjusted := tx.Weight < tx.Sigops*20
	sigopAdjustedVsize := maxU32((tx.Weight+3)/4, tx.Sigops*5)
	sigopAdjustedWeight := maxU32(tx.Weight, tx.Sigops*20)

	effectiveFeePerVsize := tx.EffectiveFeePerVsize
	if isAdjusted || delta > 0 {
		effectiveFeePerVsize = calcFeeRate(fee, float64(sigopAdjustedWeight)/4.0)
	}

	at := &auditTransaction{
		uid:                         tx.UID,
		order:                       tx.Order,
		fee:                         fee,
		weight:                      tx.Weight,
		sigops:                      tx.Sigops,
		sigopAdjustedWeight:         sigopAdjustedWeight,
		sigopAdjustedVsize:          sigopAdjustedVsize,
		adjustedFeePerVsize:         calcFeeRate(fee, float64(sigopAdjustedVsize)),
		effectiveFeePerVsize:        effectiveFeePerVsize,
		dependencyRate:              math.Inf(1),
		inputs:                      tx.Inputs,
		ancestors:                   make(map[uint32]struct{}),
		children:                    make(map[uint32]struct{}),
		ancestorFee:                 fee,
		ancestorSigopAdjustedWeight: sigopAdjustedWeight,
		ancestorSigopAdjustedVsize:  sigopAdjustedVsize,
		ancestorSigops:              tx.Sigops,
		dirty:                       effectiveFeePerVsize != tx.EffectiveFeePerVsize || delta > 0,
	}
	return at
}

// clusterRate is the effective in-block rate this transaction's whole
// package "paid for inclusion": the floor imposed by any ancestor
// package already committed, or this package's own ancestor rate if
// that's lower.
func (a *auditTransaction) clusterRate() float64 {
	return math.Min(a.dependencyRate, calcFeeRate(a.ancestorFee, float64(a.ancestorSigopAdjustedWeight)/4.0))
}

func (a *auditTransaction) setDirtyIfDifferent(clusterRate float64) {
	if a.effectiveFeePerVsize != clusterRate {
		a.effectiveFeePerVsize = clusterRate
		a.dirty = true
	}
}

// calcNewScore recomputes score from the current ancestor aggregates.
// Must never assign NaN: calcFeeRate's zero-denominator guard and the
// absence of NaN inputs from the caller both hold by construction.
func (a *auditTransaction) calcNewScore() {
	a.score = math.Min(a.adjustedFeePerVsize, calcFeeRate(a.ancestorFee, float64(a.ancestorSigopAdjustedVsize)))
}

// setAncestors installs the transitive ancestor set computed by the
// relatives builder and derives the initial score from it.
func (a *auditTransaction) setAncestors(ancestors map[uint32]struct{}, totalFee uint64, totalSigopAdjustedWeight, totalSigopAdjustedVsize, totalSigops uint32) {
	a.ancestors = ancestors
	a.ancestorFee = a.fee + totalFee
	a.ancestorSigopAdjustedWeight = a.sigopAdjustedWeight + totalSigopAdjustedWeight
	a.ancestorSigopAdjustedVsize = a.sigopAdjustedVsize + totalSigopAdjustedVsize
	a.ancestorSigops = a.sigops + totalSigops
	a.calcNewScore()
	a.relativesSet = true
}

// removeRoot drops root from this transaction's ancestor set (once its
// package has been committed) and returns the score this transaction
// had before the update. dependencyRate is lowered unconditionally;
// the aggregates and score are only touched if root was actually a
// tracked ancestor (spec's Open Question (a)).
func (a *auditTransaction) removeRoot(rootUID uint32, rootFee uint64, rootSigopAdjustedWeight, rootSigopAdjustedVsize, rootSigops uint32, clusterRate float64) float64 {
	oldScore := a.score
	a.dependencyRate = math.Min(a.dependencyRate, clusterRate)
	if _, ok := a.ancestors[rootUID]; ok {
		delete(a.ancestors, rootUID)
		a.ancestorFee -= rootFee
		a.ancestorSigopAdjustedWeight -= rootSigopAdjustedWeight
		a.ancestorSigopAdjustedVsize -= rootSigopAdjustedVsize
		a.ancestorSigops -= rootSigops
		a.calcNewScore()
	}
	return oldScore
}
