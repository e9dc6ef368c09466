// Package gbt implements the greedy package-selection engine that
// turns a mempool snapshot and its dependency graph into a sequence of
// projected blocks: the dual-queue scheduler, the ancestor/descendant
// score bookkeeping, and the package-rate monotonicity rule described
// in the Bitcoin Core block assembler and ported from mempool.space's
// tx-selection-worker.
package gbt

import (
	"sort"

	"github.com/rawblock/gbt-engine/pkg/models"
)

const (
	blockSigops         = 80_000
	blockReservedWeight = 4_000
	blockReservedSigops = 400
	coinbaseHeadroom    = 4_000
	overflowRetryCap    = 1_000
)

// Run computes one block-template projection over mempool, applying
// accelerations for this call only. mempool is mutated in exactly one
// field per entry: EffectiveFeePerVsize is updated for every
// transaction reported dirty in the result. maxUID must be at least
// the largest UID present in mempool or named by an acceleration.
func Run(mempool map[uint32]*models.InputTx, accelerations []models.Acceleration, maxUID uint32, maxBlockWeight, maxBlocks uint32) models.GbtResult {
	pool := newAuditPool(mempool, accelerations, maxUID)

	stackIDs := make([]uint32, 0, len(mempool))
	for uid := range mempool {
		stackIDs = append(stackIDs, uid)
	}

	for _, uid := range stackIDs {
		setRelatives(uid, pool)
	}

	stack := newTxStack(pool, stackIDs)
	modified := newModifiedQueue(pool, len(mempool))

	var blocks [][]uint32
	var blockWeights []uint32
	var clusters [][]uint32
	var overflow []uint32

	initialCap := 4096
	if len(mempool) < initialCap {
		initialCap = len(mempool)
	}
	transactions := make([]uint32, 0, initialCap)
	blockWeight := uint32(blockReservedWeight)
	blockSigopsUsed := uint32(blockReservedSigops)
	failures := 0
	var totalFee uint64

	for !stack.empty() || !modified.empty() {
		fromStackTx := stack.peek()
		fromQueueTx := modified.peek()

		var next *auditTransaction
		var fromStack bool
		switch {
		case fromStackTx != nil && fromQueueTx != nil:
			if lessPriority(fromQueueTx, fromStackTx) {
				next, fromStack = fromStackTx, true
			} else {
				next, fromStack = fromQueueTx, false
			}
		case fromStackTx != nil:
			next, fromStack = fromStackTx, true
		case fromQueueTx != nil:
			next, fromStack = fromQueueTx, false
		default:
			next = nil
		}

		if next != nil {
			if fromStack {
				stack.pop()
			} else {
				modified.pop()
			}

			doesNotFit := blockWeight+4*next.ancestorSigopAdjustedVsize >= maxBlockWeight-coinbaseHeadroom ||
				blockSigopsUsed+next.ancestorSigops > blockSigops

			if len(blocks) < int(maxBlocks-1) && doesNotFit {
				overflow = append(overflow, next.uid)
				failures++
			} else {
				type pkgEntry struct {
					uid          uint32
					order        uint32
					ancestorSize int
				}
				pkg := make([]pkgEntry, 0, len(next.ancestors)+1)
				for ancestorID := range next.ancestors {
					if ancestor := pool.get(ancestorID); ancestor != nil {
						pkg = append(pkg, pkgEntry{ancestorID, ancestor.order, len(ancestor.ancestors)})
					}
				}
				sort.Slice(pkg, func(i, j int) bool {
					if pkg[i].ancestorSize != pkg[j].ancestorSize {
						return pkg[i].ancestorSize < pkg[j].ancestorSize
					}
					if pkg[i].order != pkg[j].order {
						return pkg[i].order < pkg[j].order
					}
					return pkg[i].uid < pkg[j].uid
				})
				isCluster := len(next.ancestors) > 0
				pkg = append(pkg, pkgEntry{next.uid, next.order, len(next.ancestors)})

				clusterRate := next.clusterRate()

				cluster := make([]uint32, 0, len(pkg))
				for _, entry := range pkg {
					cluster = append(cluster, entry.uid)
					if tx := pool.get(entry.uid); tx != nil {
						tx.used = true
						tx.setDirtyIfDifferent(clusterRate)
						transactions = append(transactions, tx.uid)
						blockWeight += tx.weight
						blockSigopsUsed += tx.sigops
						totalFee += tx.fee
					}
					updateDescendants(entry.uid, pool, modified, clusterRate)
				}

				if isCluster {
					clusters = append(clusters, cluster)
				}
				failures = 0
			}
		}

		exceededPackageTries := failures > overflowRetryCap && blockWeight > maxBlockWeight-coinbaseHeadroom-blockReservedWeight
		queueIsEmpty := stack.empty() && modified.empty()
		if (exceededPackageTries || queueIsEmpty) && len(blocks) < int(maxBlocks-1) {
			if len(transactions) == 0 {
				break
			}

			blocks = append(blocks, transactions)
			blockWeights = append(blockWeights, blockWeight)

			transactions = make([]uint32, 0, initialCap)
			blockWeight = blockReservedWeight
			blockSigopsUsed = blockReservedSigops
			failures = 0

			for i := len(overflow) - 1; i >= 0; i-- {
				uid := overflow[i]
				tx := pool.get(uid)
				if tx == nil {
					continue
				}
				if tx.modified {
					modified.push(uid)
				} else {
					stack.push(uid)
				}
			}
			overflow = nil
		}
	}

	if len(transactions) > 0 {
		blocks = append(blocks, transactions)
		blockWeights = append(blockWeights, blockWeight)
	}

	// Walk the pool (ascending UID order, since slots are dense-indexed
	// by UID) rather than the mempool map: map iteration order is
	// randomized per run in Go, which would make rates non-deterministic
	// across otherwise-identical calls.
	var rates []models.RateUpdate
	for _, at := range pool.all() {
		if at.dirty {
			rates = append(rates, models.RateUpdate{UID: at.uid, Rate: at.effectiveFeePerVsize})
			if tx, ok := mempool[at.uid]; ok {
				tx.EffectiveFeePerVsize = at.effectiveFeePerVsize
			}
		}
		pool.remove(at.uid)
	}

	return models.GbtResult{
		Blocks:       blocks,
		BlockWeights: blockWeights,
		Clusters:     clusters,
		Rates:        rates,
		Overflow:     overflow,
		TotalFee:     totalFee,
	}
}
