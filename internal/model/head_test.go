package model

import (
	"strings"
	"testing"

	"github.com/23skdu/dashcam-scribe/internal/device"
)

func TestPredictionHeadTying(t *testing.T) {
	emb := device.FromSlice([]float32{1, 0, 0, 1, 1, 1}, 3, 2)
	bias := device.NewTensor(1, 3)

	head, err := NewPredictionHead(identity(2), plainNorm(2), emb, 2, true, nil, bias)
	if err != nil {
		t.Fatalf("NewPredictionHead() error: %v", err)
	}
	if head.Projection != emb {
		t.Error("tied projection must be the embedding tensor itself, not a copy")
	}
	if &head.Projection.Data[0] != &emb.Data[0] {
		t.Error("tied projection does not share the embedding storage")
	}
}

func TestPredictionHeadTyingMismatch(t *testing.T) {
	emb := device.NewTensor(3, 4)
	bias := device.NewTensor(1, 3)

	_, err := NewPredictionHead(identity(2), plainNorm(2), emb, 2, true, nil, bias)
	if err == nil {
		t.Fatal("expected error for word vector size != hidden size")
	}
	if !strings.Contains(err.Error(), "weight tying") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPredictionHeadForward(t *testing.T) {
	ctx := device.NewContext()

	// identity projection rows, so logits are the normalized features
	proj := device.FromSlice([]float32{1, 0, 0, 1}, 2, 2)
	bias := device.FromSlice([]float32{10, 20}, 1, 2)
	head, err := NewPredictionHead(identity(2), plainNorm(2), nil, 2, false, proj, bias)
	if err != nil {
		t.Fatalf("NewPredictionHead() error: %v", err)
	}

	x := device.FromSlice([]float32{1, 0}, 1, 2)
	logits := head.Forward(ctx, x)
	if logits.Rows != 1 || logits.Cols != 2 {
		t.Fatalf("expected (1, 2) logits, got (%d, %d)", logits.Rows, logits.Cols)
	}

	// gelu([1,0]) = [0.8413447, 0] normalizes to [1,-1], plus bias
	expected := []float32{11, 19}
	for i := range expected {
		if !almostEqual(logits.Data[i], expected[i], 1e-5) {
			t.Errorf("logits[%d] = %v, expected %v", i, logits.Data[i], expected[i])
		}
	}
	ctx.Put(logits)
}
