package model

import (
	"fmt"
	"math/rand"

	"github.com/23skdu/dashcam-scribe/internal/device"
	"github.com/23skdu/dashcam-scribe/internal/gguf"
)

type weightKind int

const (
	kindZero weightKind = iota
	kindOne
	kindNormal // N(0, initializer_range)
	kindRandn  // N(0, 1)
)

type namedTensor struct {
	name string
	t    *device.Tensor
}

// paramBuilder materializes named parameters either from a mapped
// checkpoint or from seeded random initialization. The first error
// sticks; later calls return placeholder tensors so construction can
// finish before the error is reported. Every parameter is recorded in
// construction order so Save can walk them back out.
type paramBuilder struct {
	gg     *gguf.GGUFFile
	rng    *rand.Rand
	std    float32
	err    error
	params []namedTensor
}

func newRandomBuilder(seed int64, std float32) *paramBuilder {
	return &paramBuilder{rng: rand.New(rand.NewSource(seed)), std: std}
}

func newCheckpointBuilder(gg *gguf.GGUFFile) *paramBuilder {
	return &paramBuilder{gg: gg}
}

func (b *paramBuilder) tensor(name string, rows, cols int, kind weightKind) *device.Tensor {
	t := b.materialize(name, rows, cols, kind)
	b.params = append(b.params, namedTensor{name: name, t: t})
	return t
}

func (b *paramBuilder) materialize(name string, rows, cols int, kind weightKind) *device.Tensor {
	if b.err != nil {
		return device.NewTensor(rows, cols)
	}
	if b.gg != nil {
		ti, ok := b.gg.Tensor(name)
		if !ok {
			b.err = fmt.Errorf("checkpoint missing tensor %s", name)
			return device.NewTensor(rows, cols)
		}
		if int(ti.NumElements()) != rows*cols {
			b.err = fmt.Errorf("tensor %s has %d elements, want %d", name, ti.NumElements(), rows*cols)
			return device.NewTensor(rows, cols)
		}
		data, err := ti.Float32s()
		if err != nil {
			b.err = fmt.Errorf("decode tensor %s: %w", name, err)
			return device.NewTensor(rows, cols)
		}
		return device.FromSlice(data, rows, cols)
	}

	t := device.NewTensor(rows, cols)
	switch kind {
	case kindZero:
	case kindOne:
		for i := range t.Data {
			t.Data[i] = 1
		}
	case kindNormal:
		for i := range t.Data {
			t.Data[i] = float32(b.rng.NormFloat64()) * b.std
		}
	case kindRandn:
		for i := range t.Data {
			t.Data[i] = float32(b.rng.NormFloat64())
		}
	}
	return t
}

func (b *paramBuilder) linear(name string, in, out int) Linear {
	return Linear{
		W: b.tensor(name+".weight", in, out, kindNormal),
		B: b.tensor(name+".bias", 1, out, kindZero),
	}
}

func (b *paramBuilder) layerNorm(name string, dim int, eps float32) LayerNorm {
	return LayerNorm{
		Gamma: b.tensor(name+".weight", 1, dim, kindOne),
		Beta:  b.tensor(name+".bias", 1, dim, kindZero),
		Eps:   eps,
	}
}

func (b *paramBuilder) attention(name string, heads, dim int, eps float32) Attention {
	return Attention{
		NumHeads: heads,
		HeadDim:  dim / heads,
		Query:    b.linear(name+".query", dim, dim),
		Key:      b.linear(name+".key", dim, dim),
		Value:    b.linear(name+".value", dim, dim),
		Output:   b.linear(name+".output", dim, dim),
		Norm:     b.layerNorm(name+".norm", dim, eps),
	}
}

func (b *paramBuilder) feedForward(name string, dim, intermediate int, eps float32) FeedForward {
	return FeedForward{
		Expand: b.linear(name+".expand", dim, intermediate),
		Shrink: b.linear(name+".shrink", intermediate, dim),
		Norm:   b.layerNorm(name+".norm", dim, eps),
	}
}

func (b *paramBuilder) rsa(name string, modes, size int) RelationalSelfAttention {
	return RelationalSelfAttention{
		Modes: modes,
		Size:  size,
		Query: b.linear(name+".query", size, size),
		Key:   b.linear(name+".key", size, size),
		Value: b.linear(name+".value", size, size),
		P:     b.tensor(name+".p", modes, size, kindRandn),
		H:     b.tensor(name+".h", modes*size, modes, kindRandn),
		G:     b.tensor(name+".g", modes, size, kindRandn),
	}
}
