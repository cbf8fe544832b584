package model

import "github.com/23skdu/dashcam-scribe/internal/device"

type EncoderLayer struct {
	VideoLen  int
	TextLen   int
	Attention Attention
	Output    FeedForward
}

func (l *EncoderLayer) Forward(ctx *device.Context, x *device.Tensor, valid []float32) *device.Tensor {
	mask := MakePadShiftedMask(valid, l.VideoLen, l.TextLen)
	att := l.Attention.Forward(ctx, x, mask, nil)
	out := l.Output.Forward(ctx, att, att)
	ctx.Put(att)
	return out
}

type Encoder struct {
	Layers []*EncoderLayer
}

// Forward runs the stack and returns the final layer output (L, D).
func (e *Encoder) Forward(ctx *device.Context, x *device.Tensor, valid []float32) *device.Tensor {
	hidden := x
	for i, layer := range e.Layers {
		next := layer.Forward(ctx, hidden, valid)
		if i > 0 {
			ctx.Put(hidden)
		}
		hidden = next
	}
	return hidden
}
