// Package mempool owns the long-lived mempool map between block-template
// calls. It is the host-side collaborator the core explicitly treats as
// out of scope (spec §1/§5): the Handle holds the map, serialises access
// to it, and hands the core exclusive access for the duration of one run.
package mempool

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/rawblock/gbt-engine/internal/gbt"
	"github.com/rawblock/gbt-engine/pkg/models"
)

// startingCapacity mirrors the reference generator's initial HashMap
// sizing — a handle is expected to carry the whole mempool, not grow
// one insertion at a time.
const startingCapacity = 1_048_576

// ErrPoisoned is returned once a prior Make/Update run panicked: the
// handle's internal state can no longer be trusted and every
// subsequent call fails the same way, mirroring a poisoned mutex.
var ErrPoisoned = errors.New("mempool: handle poisoned by a prior panic")

// ErrPanicked wraps the recovered panic value from a single run.
var ErrPanicked = errors.New("mempool: worker panicked")

// Handle serialises access to a mempool snapshot across Make/Update
// calls and runs the core on a dedicated goroutine per call, standing
// in for the reference implementation's spawn_blocking + Mutex pair.
type Handle struct {
	mu             sync.Mutex
	poisoned       bool
	transactions   map[uint32]*models.InputTx
	maxBlockWeight uint32
	maxBlocks      uint32
}

// New creates an empty handle with room for a full mempool snapshot.
func New(maxBlockWeight, maxBlocks uint32) *Handle {
	log.Printf("mempool: new handle (maxBlockWeight=%d maxBlocks=%d)", maxBlockWeight, maxBlocks)
	return &Handle{
		transactions:   make(map[uint32]*models.InputTx, startingCapacity),
		maxBlockWeight: maxBlockWeight,
		maxBlocks:      maxBlocks,
	}
}

// Make replaces the handle's mempool snapshot wholesale and runs the
// core against it.
func (h *Handle) Make(mempool []*models.InputTx, accelerations []models.Acceleration, maxUID uint32) (models.GbtResult, error) {
	runID := uuid.New().String()
	return h.runTask(runID, accelerations, maxUID, func(m map[uint32]*models.InputTx) {
		for uid := range m {
			delete(m, uid)
		}
		for _, tx := range mempool {
			m[tx.UID] = tx
		}
	})
}

// Update applies an incremental diff — insertions then removals — to
// the handle's existing mempool snapshot and runs the core against it.
func (h *Handle) Update(newTxs []*models.InputTx, removeTxs []uint32, accelerations []models.Acceleration, maxUID uint32) (models.GbtResult, error) {
	runID := uuid.New().String()
	return h.runTask(runID, accelerations, maxUID, func(m map[uint32]*models.InputTx) {
		for _, tx := range newTxs {
			m[tx.UID] = tx
		}
		for _, uid := range removeTxs {
			delete(m, uid)
		}
	})
}

// runTask holds the handle's lock for the whole call, applies mutate
// under that lock on a dedicated goroutine, then runs the core. A
// panic in that goroutine poisons the handle permanently; the caller
// gets ErrPanicked for this call and ErrPoisoned for every call after.
func (h *Handle) runTask(runID string, accelerations []models.Acceleration, maxUID uint32, mutate func(map[uint32]*models.InputTx)) (models.GbtResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.poisoned {
		return models.GbtResult{}, fmt.Errorf("run %s: %w", runID, ErrPoisoned)
	}

	type outcome struct {
		result   models.GbtResult
		panicVal any
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{panicVal: r}
			}
		}()

		mutate(h.transactions)

		log.Printf("mempool: run %s starting gbt for %d transactions", runID, len(h.transactions))
		result := gbt.Run(h.transactions, accelerations, maxUID, h.maxBlockWeight, h.maxBlocks)
		log.Printf("mempool: run %s finished: %d blocks, %d overflow", runID, len(result.Blocks), len(result.Overflow))
		done <- outcome{result: result}
	}()

	out := <-done
	if out.panicVal != nil {
		h.poisoned = true
		log.Printf("mempool: run %s panicked: %v", runID, out.panicVal)
		return models.GbtResult{}, fmt.Errorf("run %s: %w: %v", runID, ErrPanicked, out.panicVal)
	}
	return out.result, nil
}
