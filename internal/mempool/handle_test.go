package mempool

import (
	"errors"
	"testing"

	"github.com/rawblock/gbt-engine/pkg/models"
)

func TestHandleMakeAndUpdate(t *testing.T) {
	h := New(4_000_000, 8)

	result, err := h.Make([]*models.InputTx{
		{UID: 1, Order: 1, Fee: 1000, Weight: 400, EffectiveFeePerVsize: 10.0},
	}, nil, 1)
	if err != nil {
		t.Fatalf("Make returned an error: %v", err)
	}
	if len(result.Blocks) != 1 || len(result.Blocks[0]) != 1 {
		t.Fatalf("unexpected blocks: %v", result.Blocks)
	}

	result, err = h.Update([]*models.InputTx{
		{UID: 2, Order: 2, Fee: 4000, Weight: 400, EffectiveFeePerVsize: 40.0, Inputs: []uint32{1}},
	}, nil, nil, 2)
	if err != nil {
		t.Fatalf("Update returned an error: %v", err)
	}
	if len(result.Blocks) != 1 || len(result.Blocks[0]) != 2 {
		t.Fatalf("expected the incremental tx to join the prior one in a single package, got %v", result.Blocks)
	}

	result, err = h.Update(nil, []uint32{1}, nil, 2)
	if err != nil {
		t.Fatalf("Update returned an error: %v", err)
	}
	if len(result.Blocks) != 1 || len(result.Blocks[0]) != 1 || result.Blocks[0][0] != 2 {
		t.Fatalf("expected only uid 2 to remain after removing uid 1, got %v", result.Blocks)
	}
}

func TestHandlePoisonsAfterPanic(t *testing.T) {
	h := New(4_000_000, 8)

	// A nil InputTx panics on the first field access inside the mutate
	// callback, standing in for an unrecoverable worker crash.
	_, err := h.Update([]*models.InputTx{nil}, nil, nil, 0)
	if err == nil || !errors.Is(err, ErrPanicked) {
		t.Fatalf("expected ErrPanicked, got %v", err)
	}

	_, err = h.Make(nil, nil, 0)
	if err == nil || !errors.Is(err, ErrPoisoned) {
		t.Fatalf("expected ErrPoisoned on the call after a panic, got %v", err)
	}
}
