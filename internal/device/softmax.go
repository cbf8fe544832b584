package device

import "math"

var softmaxImpl func(x []float32)

func init() {
	softmaxImpl = softmaxFallback
}

// Softmax normalizes x in place with the usual max-subtracted exp.
func Softmax(x []float32) {
	softmaxImpl(x)
}

func softmaxFallback(x []float32) {
	if len(x) == 0 {
		return
	}
	max := x[0]
	for _, v := range x {
		if v > max {
			max = v
		}
	}
	sum := float32(0.0)
	for i := range x {
		x[i] = float32(math.Exp(float64(x[i] - max)))
		sum += x[i]
	}
	if sum > 0 {
		invSum := float32(1.0) / sum
		for i := range x {
			x[i] *= invSum
		}
	}
}

// SoftmaxRows applies Softmax to every row of t.
func SoftmaxRows(t *Tensor) {
	for i := 0; i < t.Rows; i++ {
		Softmax(t.Row(i))
	}
}
