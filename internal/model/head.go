package model

import (
	"fmt"

	"github.com/23skdu/dashcam-scribe/internal/device"
)

// PredictionHead projects decoder features to vocabulary logits. When
// weight tying is on, Projection is the word embedding table itself:
// the same backing storage, not a copy.
type PredictionHead struct {
	Dense      Linear
	Norm       LayerNorm
	Projection *device.Tensor // (vocab, hidden) rows
	Bias       *device.Tensor // (1, vocab)
}

// NewPredictionHead ties the projection to embedding when tie is set.
// Tying requires the word vector size to equal the hidden size.
func NewPredictionHead(dense Linear, norm LayerNorm, embedding *device.Tensor, hidden int, tie bool, untied *device.Tensor, bias *device.Tensor) (*PredictionHead, error) {
	head := &PredictionHead{Dense: dense, Norm: norm, Bias: bias}
	if tie {
		if embedding == nil {
			return nil, fmt.Errorf("weight tying requires the word embedding table")
		}
		if embedding.Cols != hidden {
			return nil, fmt.Errorf("weight tying requires word vector size %d to equal hidden size %d", embedding.Cols, hidden)
		}
		head.Projection = embedding
	} else {
		head.Projection = untied
	}
	return head, nil
}

// Forward maps (L, hidden) features to (L, vocab) logits.
func (h *PredictionHead) Forward(ctx *device.Context, x *device.Tensor) *device.Tensor {
	rows := x.Rows
	hidden := x.Cols

	t := ctx.Get(rows, hidden)
	h.Dense.Forward(ctx, x, t)
	device.GELU(t.Data)
	tn := ctx.Get(rows, hidden)
	h.Norm.Forward(ctx, t, tn)
	ctx.Put(t)

	vocab := h.Projection.Rows
	logits := ctx.Get(rows, vocab)
	ctx.MatMulT(tn, h.Projection, logits)
	ctx.Put(tn)
	for r := 0; r < rows; r++ {
		device.Add(logits.Row(r), h.Bias.Data)
	}
	return logits
}
