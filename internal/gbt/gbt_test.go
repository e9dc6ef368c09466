package gbt

import (
	"reflect"
	"testing"

	"github.com/rawblock/gbt-engine/pkg/models"
)

func cloneMempool(m map[uint32]*models.InputTx) map[uint32]*models.InputTx {
	out := make(map[uint32]*models.InputTx, len(m))
	for uid, tx := range m {
		cp := *tx
		cp.Inputs = append([]uint32(nil), tx.Inputs...)
		out[uid] = &cp
	}
	return out
}

func TestRunEmptyMempool(t *testing.T) {
	result := Run(map[uint32]*models.InputTx{}, nil, 0, 4_000_000, 8)
	if len(result.Blocks) != 0 || len(result.Clusters) != 0 || len(result.Rates) != 0 || len(result.Overflow) != 0 {
		t.Fatalf("expected an empty result, got %+v", result)
	}
}

func TestRunSingleTransactionFits(t *testing.T) {
	mempool := map[uint32]*models.InputTx{
		1: {UID: 1, Order: 1, Fee: 1000, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 10.0, Inputs: nil},
	}
	result := Run(mempool, nil, 1, 4_000_000, 8)

	wantBlocks := [][]uint32{{1}}
	if !reflect.DeepEqual(result.Blocks, wantBlocks) {
		t.Fatalf("blocks = %v, want %v", result.Blocks, wantBlocks)
	}
	if len(result.Clusters) != 0 {
		t.Fatalf("expected no clusters, got %v", result.Clusters)
	}
	if len(result.Rates) != 0 {
		t.Fatalf("expected no rate changes, got %v", result.Rates)
	}
	if len(result.Overflow) != 0 {
		t.Fatalf("expected no overflow, got %v", result.Overflow)
	}
}

func TestRunCPFPBump(t *testing.T) {
	mempool := map[uint32]*models.InputTx{
		1: {UID: 1, Order: 1, Fee: 0, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 0.0, Inputs: nil},
		2: {UID: 2, Order: 2, Fee: 4000, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 40.0, Inputs: []uint32{1}},
	}
	result := Run(mempool, nil, 2, 4_000_000, 8)

	wantBlocks := [][]uint32{{1, 2}}
	if !reflect.DeepEqual(result.Blocks, wantBlocks) {
		t.Fatalf("blocks = %v, want %v", result.Blocks, wantBlocks)
	}
	wantClusters := [][]uint32{{1, 2}}
	if !reflect.DeepEqual(result.Clusters, wantClusters) {
		t.Fatalf("clusters = %v, want %v", result.Clusters, wantClusters)
	}

	rateByUID := map[uint32]float64{}
	for _, r := range result.Rates {
		rateByUID[r.UID] = r.Rate
	}
	if rateByUID[1] != 20.0 || rateByUID[2] != 20.0 {
		t.Fatalf("rates = %v, want both uid 1 and 2 at 20.0", result.Rates)
	}
	if mempool[1].EffectiveFeePerVsize != 20.0 || mempool[2].EffectiveFeePerVsize != 20.0 {
		t.Fatalf("mempool was not written back correctly: %+v / %+v", mempool[1], mempool[2])
	}
	if result.TotalFee != 4000 {
		t.Fatalf("TotalFee = %d, want 4000 (0 + 4000 across the committed package)", result.TotalFee)
	}
}

func TestRunSigopCappedBlock(t *testing.T) {
	mempool := map[uint32]*models.InputTx{}
	var maxUID uint32
	for uid := uint32(1); uid <= 100; uid++ {
		mempool[uid] = &models.InputTx{
			UID: uid, Order: uid, Fee: 100_000, Weight: 4000, Sigops: 800,
			EffectiveFeePerVsize: 25.0,
		}
		maxUID = uid
	}

	result := Run(mempool, nil, maxUID, 4_000_000, 8)

	if len(result.Blocks) != 2 {
		t.Fatalf("expected 2 blocks (sigop cap spills the 100th tx), got %d: %v", len(result.Blocks), result.Blocks)
	}
	if len(result.Blocks[0]) != 99 {
		t.Fatalf("expected 99 transactions in the first block, got %d", len(result.Blocks[0]))
	}
	if len(result.Blocks[1]) != 1 {
		t.Fatalf("expected 1 transaction spilled into the second block, got %d", len(result.Blocks[1]))
	}
	if len(result.Overflow) != 0 {
		t.Fatalf("expected no residual overflow once the tail block absorbs it, got %v", result.Overflow)
	}
}

func TestRunOverflowReordering(t *testing.T) {
	build := func() map[uint32]*models.InputTx {
		return map[uint32]*models.InputTx{
			1: {UID: 1, Order: 1, Fee: 4_875_000, Weight: 3_900_000, Sigops: 0, EffectiveFeePerVsize: 5.0},
			2: {UID: 2, Order: 2, Fee: 2_925_000, Weight: 3_900_000, Sigops: 0, EffectiveFeePerVsize: 3.0},
		}
	}

	result := Run(build(), nil, 2, 4_000_000, 8)
	wantBlocks := [][]uint32{{1}, {2}}
	if !reflect.DeepEqual(result.Blocks, wantBlocks) {
		t.Fatalf("blocks = %v, want %v (A before B, highest score first)", result.Blocks, wantBlocks)
	}

	// Same packages, opposite insertion/order assignment: the outcome must
	// not depend on map iteration or insertion order, only on score.
	swapped := map[uint32]*models.InputTx{
		2: {UID: 2, Order: 2, Fee: 4_875_000, Weight: 3_900_000, Sigops: 0, EffectiveFeePerVsize: 5.0},
		1: {UID: 1, Order: 1, Fee: 2_925_000, Weight: 3_900_000, Sigops: 0, EffectiveFeePerVsize: 3.0},
	}
	swappedResult := Run(swapped, nil, 2, 4_000_000, 8)
	wantSwappedBlocks := [][]uint32{{2}, {1}}
	if !reflect.DeepEqual(swappedResult.Blocks, wantSwappedBlocks) {
		t.Fatalf("blocks = %v, want %v (score still decides winner, not uid)", swappedResult.Blocks, wantSwappedBlocks)
	}
}

func TestRunMaxBlocksCap(t *testing.T) {
	mempool := map[uint32]*models.InputTx{}
	var maxUID uint32
	for uid := uint32(1); uid <= 40; uid++ {
		mempool[uid] = &models.InputTx{
			UID: uid, Order: uid, Fee: 500_000, Weight: 500_000, Sigops: 0,
			EffectiveFeePerVsize: 4.0,
		}
		maxUID = uid
	}

	result := Run(mempool, nil, maxUID, 4_000_000, 2)

	if len(result.Blocks) != 2 {
		t.Fatalf("max_blocks=2 must yield exactly 2 blocks (one bounded, one unbounded tail), got %d", len(result.Blocks))
	}
	if len(result.Overflow) != 0 {
		t.Fatalf("the unbounded tail block absorbs everything that didn't fit, overflow must be empty, got %v", result.Overflow)
	}

	seen := map[uint32]bool{}
	for _, block := range result.Blocks {
		for _, uid := range block {
			if seen[uid] {
				t.Fatalf("uid %d appears in more than one block", uid)
			}
			seen[uid] = true
		}
	}
	if len(seen) != 40 {
		t.Fatalf("expected all 40 input transactions to be committed, saw %d", len(seen))
	}
}

// TestRunDeterminism spot-checks P6: running the core twice on
// identical input (a fresh copy each time, since Run mutates its
// mempool argument in place) must yield identical output.
func TestRunDeterminism(t *testing.T) {
	base := map[uint32]*models.InputTx{
		1: {UID: 1, Order: 7, Fee: 1000, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 10.0},
		2: {UID: 2, Order: 3, Fee: 4000, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 40.0, Inputs: []uint32{1}},
		3: {UID: 3, Order: 1, Fee: 2000, Weight: 600, Sigops: 0, EffectiveFeePerVsize: 13.3},
	}

	first := Run(cloneMempool(base), nil, 3, 4_000_000, 8)
	second := Run(cloneMempool(base), nil, 3, 4_000_000, 8)

	if !reflect.DeepEqual(first.Blocks, second.Blocks) {
		t.Fatalf("non-deterministic blocks: %v vs %v", first.Blocks, second.Blocks)
	}
	if !reflect.DeepEqual(first.Clusters, second.Clusters) {
		t.Fatalf("non-deterministic clusters: %v vs %v", first.Clusters, second.Clusters)
	}
	if !reflect.DeepEqual(first.Rates, second.Rates) {
		t.Fatalf("non-deterministic rates: %v vs %v", first.Rates, second.Rates)
	}
	if !reflect.DeepEqual(first.Overflow, second.Overflow) {
		t.Fatalf("non-deterministic overflow: %v vs %v", first.Overflow, second.Overflow)
	}
}

// TestRunAncestorsPrecedeDescendants spot-checks P1 over a small
// multi-generation chain.
func TestRunAncestorsPrecedeDescendants(t *testing.T) {
	mempool := map[uint32]*models.InputTx{
		1: {UID: 1, Order: 1, Fee: 100, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 1.0},
		2: {UID: 2, Order: 2, Fee: 100, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 1.0, Inputs: []uint32{1}},
		3: {UID: 3, Order: 3, Fee: 10_000, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 100.0, Inputs: []uint32{2}},
	}
	result := Run(mempool, nil, 3, 4_000_000, 8)

	if len(result.Blocks) != 1 {
		t.Fatalf("expected everything to fit in one block, got %v", result.Blocks)
	}
	position := map[uint32]int{}
	for i, uid := range result.Blocks[0] {
		position[uid] = i
	}
	if position[1] >= position[2] || position[2] >= position[3] {
		t.Fatalf("ancestor order violated: positions = %v", position)
	}
}

func TestRunAcceleration(t *testing.T) {
	mempool := map[uint32]*models.InputTx{
		1: {UID: 1, Order: 1, Fee: 1000, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 10.0},
	}
	accel := []models.Acceleration{{UID: 1, Delta: 1000}}
	result := Run(mempool, accel, 1, 4_000_000, 8)

	if len(result.Rates) != 1 || result.Rates[0].UID != 1 {
		t.Fatalf("expected an accelerated transaction to always be reported dirty, got %v", result.Rates)
	}
}

func TestRunNegativeAccelerationContributesNothing(t *testing.T) {
	withoutAccel := Run(map[uint32]*models.InputTx{
		1: {UID: 1, Order: 1, Fee: 1000, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 10.0},
	}, nil, 1, 4_000_000, 8)

	withNegativeAccel := Run(map[uint32]*models.InputTx{
		1: {UID: 1, Order: 1, Fee: 1000, Weight: 400, Sigops: 0, EffectiveFeePerVsize: 10.0},
	}, []models.Acceleration{{UID: 1, Delta: -500}}, 1, 4_000_000, 8)

	if len(withoutAccel.Rates) != len(withNegativeAccel.Rates) {
		t.Fatalf("a negative acceleration delta must behave identically to no acceleration at all")
	}
}
