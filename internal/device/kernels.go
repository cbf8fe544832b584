package device

import (
	"math"
	"runtime"
	"sync"
)

// MatMul computes out = in @ w. Weights are stored with shape
// (inCols, outCols) so w[k*outCols+col] addresses row k, column col.
func (c *Context) MatMul(in, w, out *Tensor) {
	outRows := out.Rows
	outCols := out.Cols
	inCols := in.Cols
	parallelism := runtime.NumCPU()
	chunkSize := (outRows + parallelism - 1) / parallelism
	var wg sync.WaitGroup
	for i := 0; i < outRows; i += chunkSize {
		end := i + chunkSize
		if end > outRows {
			end = outRows
		}
		wg.Add(1)
		go func(rowStart, rowEnd int) {
			defer wg.Done()
			for row := rowStart; row < rowEnd; row++ {
				rowOffset := row * outCols
				inRowOffset := row * inCols
				for col := 0; col < outCols; col++ {
					var sum float32
					for k := 0; k < inCols; k++ {
						sum += in.Data[inRowOffset+k] * w.Data[k*outCols+col]
					}
					out.Data[rowOffset+col] = sum
				}
			}
		}(i, end)
	}
	wg.Wait()
}

// MatMulT computes out = in @ w^T, with w stored row-major as
// (outCols, inCols). Attention scores use this for Q @ K^T.
func (c *Context) MatMulT(in, w, out *Tensor) {
	outRows := out.Rows
	outCols := out.Cols
	inCols := in.Cols
	parallelism := runtime.NumCPU()
	chunkSize := (outRows + parallelism - 1) / parallelism
	var wg sync.WaitGroup
	for i := 0; i < outRows; i += chunkSize {
		end := i + chunkSize
		if end > outRows {
			end = outRows
		}
		wg.Add(1)
		go func(rowStart, rowEnd int) {
			defer wg.Done()
			for row := rowStart; row < rowEnd; row++ {
				rowOffset := row * outCols
				inRowOffset := row * inCols
				for col := 0; col < outCols; col++ {
					wRowOffset := col * inCols
					var sum float32
					for k := 0; k < inCols; k++ {
						sum += in.Data[inRowOffset+k] * w.Data[wRowOffset+k]
					}
					out.Data[rowOffset+col] = sum
				}
			}
		}(i, end)
	}
	wg.Wait()
}

// Linear computes out = in @ w + bias. bias may be nil.
func (c *Context) Linear(in, w, bias, out *Tensor) {
	c.MatMul(in, w, out)
	if bias == nil {
		return
	}
	outCols := out.Cols
	for row := 0; row < out.Rows; row++ {
		rowOffset := row * outCols
		for col := 0; col < outCols; col++ {
			out.Data[rowOffset+col] += bias.Data[col]
		}
	}
}

// LayerNorm normalizes each row of in to zero mean and unit variance,
// then applies the elementwise affine gamma and beta.
func (c *Context) LayerNorm(in, gamma, beta, out *Tensor, eps float32) {
	size := in.Cols
	numRows := in.Rows
	parallelism := runtime.NumCPU()
	chunkSize := (numRows + parallelism - 1) / parallelism
	var wg sync.WaitGroup
	for i := 0; i < numRows; i += chunkSize {
		end := i + chunkSize
		if end > numRows {
			end = numRows
		}
		wg.Add(1)
		go func(rowStart, rowEnd int) {
			defer wg.Done()
			for row := rowStart; row < rowEnd; row++ {
				rowOffset := row * size
				var mean float32
				for j := 0; j < size; j++ {
					mean += in.Data[rowOffset+j]
				}
				mean /= float32(size)
				var variance float32
				for j := 0; j < size; j++ {
					d := in.Data[rowOffset+j] - mean
					variance += d * d
				}
				variance /= float32(size)
				inv := float32(1.0) / float32(math.Sqrt(float64(variance)+float64(eps)))
				for j := 0; j < size; j++ {
					out.Data[rowOffset+j] = (in.Data[rowOffset+j]-mean)*inv*gamma.Data[j] + beta.Data[j]
				}
			}
		}(i, end)
	}
	wg.Wait()
}

// GELU applies the exact Gaussian error linear unit in place.
func GELU(x []float32) {
	for i, v := range x {
		x[i] = v * 0.5 * float32(1.0+math.Erf(float64(v)/math.Sqrt2))
	}
}

// ReLU clamps negatives to zero in place.
func ReLU(x []float32) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// Add accumulates src into dst elementwise.
func Add(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// Mul multiplies dst by src elementwise.
func Mul(dst, src []float32) {
	for i := range dst {
		dst[i] *= src[i]
	}
}

// Scale multiplies every element of x by s.
func Scale(x []float32, s float32) {
	for i := range x {
		x[i] *= s
	}
}

// Fp16ToFp32 widens IEEE half precision values into dst. Used when a
// checkpoint stores weights as F16.
func Fp16ToFp32(src []uint16, dst []float32) {
	n := len(src)
	if n != len(dst) {
		return
	}
	for i := 0; i < n; i++ {
		h := src[i]
		sign := uint32(h>>15) & 0x1
		exp := uint32(h>>10) & 0x1F
		mant := uint32(h) & 0x3FF
		var f32 uint32
		if exp == 0 {
			if mant == 0 {
				f32 = sign << 31
			} else {
				shift := uint32(0)
				m := mant
				for m < 0x400 {
					m <<= 1
					shift++
				}
				m = (m & 0x3FF) << 13
				e := uint32(127 - 14 - shift)
				f32 = (sign << 31) | (e << 23) | m
			}
		} else if exp == 31 {
			if mant == 0 {
				f32 = (sign << 31) | 0x7F800000
			} else {
				f32 = (sign << 31) | 0x7F800000 | (mant << 13)
			}
		} else {
			newExp := exp - 15 + 127
			f32 = (sign << 31) | (newExp << 23) | (mant << 13)
		}
		dst[i] = math.Float32frombits(f32)
	}
}
