package device

import (
	"math"
	"testing"
)

func almostEqual(a, b float32, tol float64) bool {
	return math.Abs(float64(a)-float64(b)) <= tol
}

func TestMatMul(t *testing.T) {
	ctx := NewContext()
	in := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	w := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	out := NewTensor(2, 2)
	ctx.MatMul(in, w, out)
	expected := []float32{22, 28, 49, 64}
	for i, want := range expected {
		if !almostEqual(out.Data[i], want, 1e-5) {
			t.Errorf("out[%d]: expected %f, got %f", i, want, out.Data[i])
		}
	}
}

func TestMatMulTMatchesTransposedWeights(t *testing.T) {
	ctx := NewContext()
	in := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	w := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	wT := FromSlice([]float32{1, 3, 5, 2, 4, 6}, 2, 3)
	a := NewTensor(2, 2)
	b := NewTensor(2, 2)
	ctx.MatMul(in, w, a)
	ctx.MatMulT(in, wT, b)
	for i := range a.Data {
		if !almostEqual(a.Data[i], b.Data[i], 1e-5) {
			t.Errorf("index %d: MatMul %f, MatMulT %f", i, a.Data[i], b.Data[i])
		}
	}
}

func TestLinearBias(t *testing.T) {
	ctx := NewContext()
	in := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	w := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	bias := FromSlice([]float32{0.5, -0.5}, 1, 2)
	out := NewTensor(2, 2)
	ctx.Linear(in, w, bias, out)
	expected := []float32{22.5, 27.5, 49.5, 63.5}
	for i, want := range expected {
		if !almostEqual(out.Data[i], want, 1e-5) {
			t.Errorf("out[%d]: expected %f, got %f", i, want, out.Data[i])
		}
	}
}

func TestLayerNorm(t *testing.T) {
	ctx := NewContext()
	in := FromSlice([]float32{1, 2, 3, 4}, 1, 4)
	gamma := FromSlice([]float32{1, 1, 1, 1}, 1, 4)
	beta := FromSlice([]float32{0, 0, 0, 0}, 1, 4)
	out := NewTensor(1, 4)
	ctx.LayerNorm(in, gamma, beta, out, 1e-12)
	expected := []float32{-1.3416408, -0.4472136, 0.4472136, 1.3416408}
	for i, want := range expected {
		if !almostEqual(out.Data[i], want, 1e-5) {
			t.Errorf("out[%d]: expected %f, got %f", i, want, out.Data[i])
		}
	}
}

func TestLayerNormAffine(t *testing.T) {
	ctx := NewContext()
	in := FromSlice([]float32{1, 2, 3, 4}, 1, 4)
	gamma := FromSlice([]float32{2, 2, 2, 2}, 1, 4)
	beta := FromSlice([]float32{1, 1, 1, 1}, 1, 4)
	out := NewTensor(1, 4)
	ctx.LayerNorm(in, gamma, beta, out, 1e-12)
	expected := []float32{-1.6832816, 0.1055728, 1.8944272, 3.6832816}
	for i, want := range expected {
		if !almostEqual(out.Data[i], want, 1e-5) {
			t.Errorf("out[%d]: expected %f, got %f", i, want, out.Data[i])
		}
	}
}

func TestGELU(t *testing.T) {
	testCases := []struct {
		input    float32
		expected float32
	}{
		{0, 0},
		{1, 0.8413447},
		{-1, -0.15865526},
		{2, 1.9544997},
		{-3, -0.00404951},
	}
	for _, tc := range testCases {
		x := []float32{tc.input}
		GELU(x)
		if !almostEqual(x[0], tc.expected, 1e-5) {
			t.Errorf("gelu(%f): expected %f, got %f", tc.input, tc.expected, x[0])
		}
	}
}

func TestReLU(t *testing.T) {
	x := []float32{-2, -0.5, 0, 0.5, 2}
	ReLU(x)
	expected := []float32{0, 0, 0, 0.5, 2}
	for i, want := range expected {
		if x[i] != want {
			t.Errorf("relu[%d]: expected %f, got %f", i, want, x[i])
		}
	}
}

func TestElementwise(t *testing.T) {
	dst := []float32{1, 2, 3}
	Add(dst, []float32{1, 1, 1})
	for i, want := range []float32{2, 3, 4} {
		if dst[i] != want {
			t.Errorf("add[%d]: expected %f, got %f", i, want, dst[i])
		}
	}
	Mul(dst, []float32{2, 0, 1})
	for i, want := range []float32{4, 0, 4} {
		if dst[i] != want {
			t.Errorf("mul[%d]: expected %f, got %f", i, want, dst[i])
		}
	}
	Scale(dst, 0.5)
	for i, want := range []float32{2, 0, 2} {
		if dst[i] != want {
			t.Errorf("scale[%d]: expected %f, got %f", i, want, dst[i])
		}
	}
}

func TestFp16ToFp32(t *testing.T) {
	src := []uint16{0x3C00, 0xC000, 0x0000, 0x3555, 0x0001}
	dst := make([]float32, len(src))
	Fp16ToFp32(src, dst)
	expected := []float32{1.0, -2.0, 0.0, 0.33325195, 5.9604645e-8}
	for i, want := range expected {
		if !almostEqual(dst[i], want, 1e-7) {
			t.Errorf("fp16[%d]: expected %g, got %g", i, want, dst[i])
		}
	}
}
