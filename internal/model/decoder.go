package model

import "github.com/23skdu/dashcam-scribe/internal/device"

type DecoderLayer struct {
	VideoLen  int
	TextLen   int
	Attention Attention
	Output    FeedForward
}

func (l *DecoderLayer) Forward(ctx *device.Context, x *device.Tensor, valid []float32, clipHis *device.Tensor) *device.Tensor {
	mask := MakePadShiftedMask(valid, l.VideoLen, l.TextLen)
	att := l.Attention.Forward(ctx, x, mask, clipHis)
	out := l.Output.Forward(ctx, att, att)
	ctx.Put(att)
	return out
}

// Decoder stacks caption decoder layers, each conditioned on the same
// fused clip history query.
type Decoder struct {
	Layers []*DecoderLayer
}

func (d *Decoder) Forward(ctx *device.Context, x *device.Tensor, valid []float32, clipHis *device.Tensor) *device.Tensor {
	hidden := x
	for i, layer := range d.Layers {
		next := layer.Forward(ctx, hidden, valid, clipHis)
		if i > 0 {
			ctx.Put(hidden)
		}
		hidden = next
	}
	return hidden
}
