package model

import (
	"math"

	"github.com/23skdu/dashcam-scribe/internal/device"
)

// Attention is multi-head self attention with the usual projection,
// residual and LayerNorm tail. An optional external query (the clip
// history vector) replaces x as the query source; a single-row query
// is broadcast across all masked query rows, which is how the decoder
// conditions every position on the same fused clip state.
type Attention struct {
	NumHeads int
	HeadDim  int
	Query    Linear
	Key      Linear
	Value    Linear
	Output   Linear
	Norm     LayerNorm
}

// Forward runs attention for one sequence. x is (L, D); mask is an
// (L, L) multiplicative mask or nil for full attention; clipHis is an
// optional query source. The result is (L, D).
func (a *Attention) Forward(ctx *device.Context, x, mask, clipHis *device.Tensor) *device.Tensor {
	seqLen := x.Rows
	dim := x.Cols
	querySrc := x
	if clipHis != nil {
		querySrc = clipHis
	}
	queryLen := querySrc.Rows
	broadcast := queryLen == 1 && mask != nil

	q := ctx.Get(queryLen, dim)
	a.Query.Forward(ctx, querySrc, q)
	k := ctx.Get(seqLen, dim)
	a.Key.Forward(ctx, x, k)
	v := ctx.Get(seqLen, dim)
	a.Value.Forward(ctx, x, v)

	outRows := queryLen
	if broadcast {
		outRows = seqLen
	}
	merged := ctx.Get(outRows, dim)

	dh := a.HeadDim
	scale := float32(1.0 / math.Sqrt(float64(dh)))
	qh := ctx.Get(queryLen, dh)
	kh := ctx.Get(seqLen, dh)
	vh := ctx.Get(seqLen, dh)
	scores := ctx.Get(queryLen, seqLen)
	rowBuf := ctx.Get(1, seqLen)

	for h := 0; h < a.NumHeads; h++ {
		sliceHead(q, h, dh, qh)
		sliceHead(k, h, dh, kh)
		sliceHead(v, h, dh, vh)

		ctx.MatMulT(qh, kh, scores)
		device.Scale(scores.Data, scale)

		if broadcast {
			base := scores.Row(0)
			for r := 0; r < seqLen; r++ {
				copy(rowBuf.Data, base)
				addMaskPenalty(rowBuf.Data, mask.Row(r))
				device.Softmax(rowBuf.Data)
				rowOut := device.FromSlice(merged.Row(r)[h*dh:(h+1)*dh], 1, dh)
				ctx.MatMul(rowBuf, vh, rowOut)
			}
			continue
		}

		if mask != nil {
			for r := 0; r < queryLen; r++ {
				addMaskPenalty(scores.Row(r), mask.Row(r))
			}
		}
		device.SoftmaxRows(scores)
		headOut := ctx.Get(queryLen, dh)
		ctx.MatMul(scores, vh, headOut)
		writeHead(merged, h, dh, headOut)
		ctx.Put(headOut)
	}

	ctx.Put(q)
	ctx.Put(k)
	ctx.Put(v)
	ctx.Put(qh)
	ctx.Put(kh)
	ctx.Put(vh)
	ctx.Put(scores)
	ctx.Put(rowBuf)

	proj := ctx.Get(outRows, dim)
	a.Output.Forward(ctx, merged, proj)
	ctx.Put(merged)
	device.Add(proj.Data, x.Data)
	out := ctx.Get(outRows, dim)
	a.Norm.Forward(ctx, proj, out)
	ctx.Put(proj)
	return out
}

// addMaskPenalty pushes masked-out scores toward -inf before softmax.
func addMaskPenalty(scores, maskRow []float32) {
	for i := range scores {
		scores[i] += (1 - maskRow[i]) * -10000.0
	}
}

func sliceHead(src *device.Tensor, head, dh int, dst *device.Tensor) {
	for r := 0; r < src.Rows; r++ {
		copy(dst.Row(r), src.Row(r)[head*dh:(head+1)*dh])
	}
}

func writeHead(dst *device.Tensor, head, dh int, src *device.Tensor) {
	for r := 0; r < src.Rows; r++ {
		copy(dst.Row(r)[head*dh:(head+1)*dh], src.Row(r))
	}
}
