package model

import (
	"testing"

	"github.com/23skdu/dashcam-scribe/internal/device"
)

// testRSA builds a 2-mode, 2-wide block with identity projections so
// each kernel path can be isolated by zeroing the others.
func testRSA(p, h, g []float32) RelationalSelfAttention {
	return RelationalSelfAttention{
		Modes: 2,
		Size:  2,
		Query: identity(2),
		Key:   identity(2),
		Value: identity(2),
		P:     device.FromSlice(p, 2, 2),
		H:     device.FromSlice(h, 4, 2),
		G:     device.FromSlice(g, 2, 2),
	}
}

func TestRelationalSelfAttention(t *testing.T) {
	target := device.FromSlice([]float32{1, 2}, 1, 2)
	cont := device.FromSlice([]float32{1, 0, 0, 1}, 2, 2)

	tests := []struct {
		name     string
		p        []float32
		h        []float32
		g        []float32
		expected []float32
	}{
		{
			// kernel = <P_i, query>, context = value
			name:     "basic kernel only",
			p:        []float32{1, 0, 0, 1},
			h:        make([]float32, 8),
			g:        make([]float32, 4),
			expected: []float32{1, 2},
		},
		{
			// context = value @ (value^T @ G) + value = [[2,1],[1,2]]
			name:     "relational context",
			p:        []float32{1, 0, 0, 1},
			h:        make([]float32, 8),
			g:        []float32{1, 1, 1, 1},
			expected: []float32{4, 5},
		},
		{
			// x_q = [1, 0, 0, 2], kernel_r = [1, 2], kernel = [2, 4]
			name:     "relational kernel",
			p:        []float32{1, 0, 0, 1},
			h:        []float32{1, 0, 0, 0, 0, 0, 0, 1},
			g:        make([]float32, 4),
			expected: []float32{2, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := device.NewContext()
			rsa := testRSA(tt.p, tt.h, tt.g)

			out := rsa.Forward(ctx, target, cont)
			if out.Rows != 1 || out.Cols != 2 {
				t.Fatalf("expected (1, 2) output, got (%d, %d)", out.Rows, out.Cols)
			}
			for i := range tt.expected {
				if !almostEqual(out.Data[i], tt.expected[i], 1e-5) {
					t.Errorf("out[%d] = %v, expected %v", i, out.Data[i], tt.expected[i])
				}
			}
			ctx.Put(out)
		})
	}
}

func TestRelationalSelfAttentionDoesNotMutateInputs(t *testing.T) {
	ctx := device.NewContext()
	rsa := testRSA([]float32{1, 0, 0, 1}, make([]float32, 8), []float32{1, 1, 1, 1})

	target := device.FromSlice([]float32{1, 2}, 1, 2)
	cont := device.FromSlice([]float32{1, 0, 0, 1}, 2, 2)
	out := rsa.Forward(ctx, target, cont)
	ctx.Put(out)

	if target.Data[0] != 1 || target.Data[1] != 2 {
		t.Error("target was modified")
	}
	expected := []float32{1, 0, 0, 1}
	for i := range expected {
		if cont.Data[i] != expected[i] {
			t.Error("context window was modified")
			break
		}
	}
}
