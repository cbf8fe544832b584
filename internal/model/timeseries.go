package model

import "github.com/23skdu/dashcam-scribe/internal/device"

// TimeSeriesLayer refines the middle frame of the clip window through
// relational self attention, then runs the shared feed-forward block
// over the whole window.
type TimeSeriesLayer struct {
	Attention RelationalSelfAttention
	Output    FeedForward
}

func (l *TimeSeriesLayer) Forward(ctx *device.Context, x *device.Tensor) *device.Tensor {
	target := device.FromSlice(x.Row(1), 1, x.Cols)
	fused := l.Attention.Forward(ctx, target, x)

	refined := ctx.Get(x.Rows, x.Cols)
	copy(refined.Data, x.Data)
	copy(refined.Row(1), fused.Data)
	ctx.Put(fused)

	out := l.Output.Forward(ctx, refined, refined)
	ctx.Put(refined)
	return out
}

type TimeSeriesEncoder struct {
	Positions *PositionEncoding
	Layers    []*TimeSeriesLayer
	FF        FeedForward
}

func (e *TimeSeriesEncoder) Forward(ctx *device.Context, x *device.Tensor) *device.Tensor {
	hidden := ctx.Get(x.Rows, x.Cols)
	copy(hidden.Data, x.Data)
	e.Positions.Forward(hidden)

	for _, layer := range e.Layers {
		next := layer.Forward(ctx, hidden)
		ctx.Put(hidden)
		hidden = next
	}

	out := e.FF.Forward(ctx, hidden, hidden)
	ctx.Put(hidden)
	return out
}

// TimeSeriesModule encodes the clip window, gates it against the raw
// input with the learned scalar z, expands to model width and distills
// the middle frame into the clip history query.
type TimeSeriesModule struct {
	Encoder *TimeSeriesEncoder
	Expand  Linear
	Norm    LayerNorm
	Z       *device.Tensor // (1, 1) gate scalar, unbounded
}

// Forward maps clip (m, clipSize) to the expanded window (m, hidden)
// and the clip history vector (1, hidden).
func (t *TimeSeriesModule) Forward(ctx *device.Context, clip *device.Tensor) (*device.Tensor, *device.Tensor) {
	encoded := t.Encoder.Forward(ctx, clip)

	z := t.Z.Data[0]
	gated := ctx.Get(clip.Rows, clip.Cols)
	for i := range gated.Data {
		gated.Data[i] = z*clip.Data[i] + (1-z)*encoded.Data[i]
	}
	ctx.Put(encoded)

	expanded := ctx.Get(clip.Rows, t.Expand.OutFeatures())
	t.Expand.Forward(ctx, gated, expanded)
	ctx.Put(gated)

	mid := device.FromSlice(expanded.Row(1), 1, expanded.Cols)
	clipHis := ctx.Get(1, expanded.Cols)
	t.Norm.Forward(ctx, mid, clipHis)

	return expanded, clipHis
}
