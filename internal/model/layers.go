package model

import (
	"math"

	"github.com/23skdu/dashcam-scribe/internal/device"
)

// Linear holds a dense projection. W is stored (in, out) to match the
// device kernel layout; B may be nil for bias-free projections.
type Linear struct {
	W *device.Tensor
	B *device.Tensor
}

func (l *Linear) Forward(ctx *device.Context, in, out *device.Tensor) {
	ctx.Linear(in, l.W, l.B, out)
}

func (l *Linear) InFeatures() int  { return l.W.Rows }
func (l *Linear) OutFeatures() int { return l.W.Cols }

type LayerNorm struct {
	Gamma *device.Tensor
	Beta  *device.Tensor
	Eps   float32
}

func (n *LayerNorm) Forward(ctx *device.Context, in, out *device.Tensor) {
	ctx.LayerNorm(in, n.Gamma, n.Beta, out, n.Eps)
}

// FeedForward is the two-layer block used after every attention and
// relational layer: LayerNorm(shrink(relu(expand(x))) + residual).
type FeedForward struct {
	Expand Linear
	Shrink Linear
	Norm   LayerNorm
}

func (f *FeedForward) Forward(ctx *device.Context, hidden, residual *device.Tensor) *device.Tensor {
	rows := hidden.Rows
	mid := ctx.Get(rows, f.Expand.OutFeatures())
	f.Expand.Forward(ctx, hidden, mid)
	device.ReLU(mid.Data)

	proj := ctx.Get(rows, f.Shrink.OutFeatures())
	f.Shrink.Forward(ctx, mid, proj)
	ctx.Put(mid)

	device.Add(proj.Data, residual.Data)
	out := ctx.Get(rows, proj.Cols)
	f.Norm.Forward(ctx, proj, out)
	ctx.Put(proj)
	return out
}

// PositionEncoding adds the fixed sinusoidal position table to a
// sequence of row vectors.
type PositionEncoding struct {
	table *device.Tensor
}

func NewPositionEncoding(dim, maxLen int) *PositionEncoding {
	pe := device.NewTensor(maxLen, dim)
	for pos := 0; pos < maxLen; pos++ {
		row := pe.Row(pos)
		for i := 0; i < dim; i += 2 {
			div := math.Exp(float64(i) * -math.Log(10000.0) / float64(dim))
			row[i] = float32(math.Sin(float64(pos) * div))
			if i+1 < dim {
				row[i+1] = float32(math.Cos(float64(pos) * div))
			}
		}
	}
	return &PositionEncoding{table: pe}
}

func (p *PositionEncoding) Forward(x *device.Tensor) {
	for i := 0; i < x.Rows; i++ {
		device.Add(x.Row(i), p.table.Row(i))
	}
}

func (p *PositionEncoding) MaxLen() int { return p.table.Rows }
