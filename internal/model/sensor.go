package model

import "github.com/23skdu/dashcam-scribe/internal/device"

// SenseLayer runs unmasked full self attention over the concatenated
// clip window and history, followed by the feed-forward block.
type SenseLayer struct {
	Attention Attention
	Output    FeedForward
}

func (l *SenseLayer) Forward(ctx *device.Context, x *device.Tensor) *device.Tensor {
	att := l.Attention.Forward(ctx, x, nil, nil)
	out := l.Output.Forward(ctx, att, att)
	ctx.Put(att)
	return out
}

type SensorTransformer struct {
	Layers []*SenseLayer
}

func (s *SensorTransformer) Forward(ctx *device.Context, x *device.Tensor) *device.Tensor {
	hidden := x
	for i, layer := range s.Layers {
		next := layer.Forward(ctx, hidden)
		if i > 0 {
			ctx.Put(hidden)
		}
		hidden = next
	}
	return hidden
}

// SensorHead regresses one scalar per sensor frame from the sensor
// stream output: speed, acceleration, course and course velocity in
// normalized units.
type SensorHead struct {
	Dense1 Linear // hidden -> 128
	Norm1  LayerNorm
	Dense2 Linear // 128 -> 32
	Dense3 Linear // 32 -> 8
	Norm2  LayerNorm
	Dense4 Linear // 8 -> 1
}

// Forward maps (frames, hidden) to one value per frame.
func (h *SensorHead) Forward(ctx *device.Context, x *device.Tensor) []float32 {
	rows := x.Rows

	a := ctx.Get(rows, h.Dense1.OutFeatures())
	h.Dense1.Forward(ctx, x, a)
	device.ReLU(a.Data)
	an := ctx.Get(rows, a.Cols)
	h.Norm1.Forward(ctx, a, an)
	ctx.Put(a)

	b := ctx.Get(rows, h.Dense2.OutFeatures())
	h.Dense2.Forward(ctx, an, b)
	ctx.Put(an)
	device.ReLU(b.Data)

	c := ctx.Get(rows, h.Dense3.OutFeatures())
	h.Dense3.Forward(ctx, b, c)
	ctx.Put(b)
	device.ReLU(c.Data)
	cn := ctx.Get(rows, c.Cols)
	h.Norm2.Forward(ctx, c, cn)
	ctx.Put(c)

	d := ctx.Get(rows, 1)
	h.Dense4.Forward(ctx, cn, d)
	ctx.Put(cn)

	out := make([]float32, rows)
	copy(out, d.Data)
	ctx.Put(d)
	return out
}
