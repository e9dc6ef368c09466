package gbt

import "github.com/rawblock/gbt-engine/pkg/models"

// auditPool is the dense, UID-indexed working set for a single Run.
// It stands in for the Rust side's Vec<Option<ManuallyDrop<AuditTransaction>>>:
// a slot per UID that ever appears in the input. Committed transactions
// keep their slot (flagged used) for the rest of the run; every slot is
// cleared during Run's final rates walk.
type auditPool struct {
	slots []*auditTransaction
}

// newAuditPool allocates a pool sized to maxUID+1, as dictated by the
// caller (the Handle knows the largest UID across the whole snapshot,
// not just the transactions touched by this call).
func newAuditPool(txs map[uint32]*models.InputTx, accelerations []models.Acceleration, maxUID uint32) *auditPool {
	deltas := make(map[uint32]float64, len(accelerations))
	for _, a := range accelerations {
		deltas[a.UID] = a.Delta
	}

	p := &auditPool{slots: make([]*auditTransaction, maxUID+1)}
	for uid, tx := range txs {
		p.slots[uid] = newAuditTransaction(tx, deltas[uid])
	}
	return p
}

// get returns the live record for uid, or nil if the slot is empty
// (never seen, or already released by remove).
func (p *auditPool) get(uid uint32) *auditTransaction {
	if uid >= uint32(len(p.slots)) {
		return nil
	}
	return p.slots[uid]
}

// remove clears a slot; Run calls it for every live transaction at the
// end of the call, matching the original's ManuallyDrop
// take-and-forget pattern without needing an unsafe escape hatch.
func (p *auditPool) remove(uid uint32) {
	if uid < uint32(len(p.slots)) {
		p.slots[uid] = nil
	}
}

// all iterates every live slot in ascending UID order, which keeps the
// rates Run reports in the same order across runs.
func (p *auditPool) all() []*auditTransaction {
	out := make([]*auditTransaction, 0, len(p.slots))
	for _, at := range p.slots {
		if at != nil {
			out = append(out, at)
		}
	}
	return out
}
