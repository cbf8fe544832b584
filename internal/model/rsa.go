package model

import "github.com/23skdu/dashcam-scribe/internal/device"

// RelationalSelfAttention fuses a short window of clip features into a
// single vector, following https://arxiv.org/abs/2111.01673: a basic
// kernel from learned prototypes plus a relational kernel from
// query/key interactions, applied to a relationally-augmented context.
type RelationalSelfAttention struct {
	Modes int // window length m
	Size  int
	Query Linear
	Key   Linear
	Value Linear
	P     *device.Tensor // (m, size) basic kernel prototypes
	H     *device.Tensor // (m*size, m) relational kernel projection
	G     *device.Tensor // (m, size) relational context projection
}

// Forward attends target (1, size) over cont (m, size), returning the
// fused (1, size) vector.
func (r *RelationalSelfAttention) Forward(ctx *device.Context, target, cont *device.Tensor) *device.Tensor {
	m := r.Modes
	size := r.Size

	query := ctx.Get(1, size)
	r.Query.Forward(ctx, target, query)
	key := ctx.Get(m, size)
	r.Key.Forward(ctx, cont, key)
	value := ctx.Get(m, size)
	r.Value.Forward(ctx, cont, value)

	// kernel_v[i] = <P[i], query>
	kernel := ctx.Get(1, m)
	ctx.MatMulT(query, r.P, kernel)

	// x_q = (1 @ query^T) * key, flattened to (1, m*size)
	xq := ctx.Get(1, m*size)
	for i := 0; i < m; i++ {
		keyRow := key.Row(i)
		dst := xq.Data[i*size : (i+1)*size]
		for d := 0; d < size; d++ {
			dst[d] = query.Data[d] * keyRow[d]
		}
	}
	kernelR := ctx.Get(1, m)
	ctx.MatMul(xq, r.H, kernelR)
	device.Add(kernel.Data, kernelR.Data)
	ctx.Put(xq)
	ctx.Put(kernelR)

	// context = value @ (value^T @ G) + value
	valueT := ctx.Get(size, m)
	for i := 0; i < m; i++ {
		row := value.Row(i)
		for d := 0; d < size; d++ {
			valueT.Data[d*m+i] = row[d]
		}
	}
	xg := ctx.Get(size, size)
	ctx.MatMul(valueT, r.G, xg)
	ctx.Put(valueT)
	context := ctx.Get(m, size)
	ctx.MatMul(value, xg, context)
	ctx.Put(xg)
	device.Add(context.Data, value.Data)

	out := ctx.Get(1, size)
	ctx.MatMul(kernel, context, out)

	ctx.Put(query)
	ctx.Put(key)
	ctx.Put(value)
	ctx.Put(kernel)
	ctx.Put(context)
	return out
}
