package gbt

// setRelatives computes the full transitive ancestor set for txid and
// installs it (via setAncestors), recursing into every direct parent
// first so a parent's own ancestor set is always complete before a
// child unions it in. Ported from set_relatives in the original;
// relativesSet makes it idempotent across the stack's repeated walk.
func setRelatives(txid uint32, pool *auditPool) {
	tx := pool.get(txid)
	if tx == nil {
		return
	}
	if tx.relativesSet {
		return
	}

	parents := make(map[uint32]struct{}, len(tx.inputs))
	for _, in := range tx.inputs {
		parents[in] = struct{}{}
	}

	ancestors := make(map[uint32]struct{})
	for parentID := range parents {
		setRelatives(parentID, pool)

		parent := pool.get(parentID)
		if parent == nil {
			continue
		}
		ancestors[parentID] = struct{}{}
		parent.children[txid] = struct{}{}
		for a := range parent.ancestors {
			ancestors[a] = struct{}{}
		}
	}

	var totalFee uint64
	var totalSigopAdjustedWeight, totalSigopAdjustedVsize, totalSigops uint32
	for ancestorID := range ancestors {
		ancestor := pool.get(ancestorID)
		if ancestor == nil {
			continue
		}
		totalFee += ancestor.fee
		totalSigopAdjustedWeight += ancestor.sigopAdjustedWeight
		totalSigopAdjustedVsize += ancestor.sigopAdjustedVsize
		totalSigops += ancestor.sigops
	}

	tx = pool.get(txid)
	if tx != nil {
		tx.setAncestors(ancestors, totalFee, totalSigopAdjustedWeight, totalSigopAdjustedVsize, totalSigops)
	}
}
