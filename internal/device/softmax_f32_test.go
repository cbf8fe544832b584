package device

import (
	"math"
	"testing"
)

func TestSoftmaxF32(t *testing.T) {
	testCases := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{
			name:     "simple",
			input:    []float32{1, 2, 3},
			expected: []float32{0.09003057, 0.24472847, 0.66524096},
		},
		{
			name:     "negative",
			input:    []float32{-1, -2, -3},
			expected: []float32{0.66524096, 0.24472847, 0.09003057},
		},
		{
			name:     "zero",
			input:    []float32{0, 0, 0},
			expected: []float32{0.33333333, 0.33333333, 0.33333333},
		},
		{
			name:     "empty",
			input:    []float32{},
			expected: []float32{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			input := make([]float32, len(tc.input))
			copy(input, tc.input)
			Softmax(input)
			if len(input) != len(tc.expected) {
				t.Errorf("expected length %d, got %d", len(tc.expected), len(input))
			}
			for i := range input {
				if math.Abs(float64(input[i])-float64(tc.expected[i])) > 1e-6 {
					t.Errorf("expected %v, got %v", tc.expected, input)
					break
				}
			}
		})
	}
}

func TestSoftmaxRows(t *testing.T) {
	m := FromSlice([]float32{1, 2, 3, 3, 2, 1}, 2, 3)
	SoftmaxRows(m)
	for row := 0; row < m.Rows; row++ {
		var sum float32
		for _, v := range m.Row(row) {
			sum += v
		}
		if math.Abs(float64(sum)-1.0) > 1e-6 {
			t.Errorf("row %d: probabilities sum to %f", row, sum)
		}
	}
	if m.Data[0] >= m.Data[2] {
		t.Errorf("row 0 should be increasing, got %v", m.Row(0))
	}
	if m.Data[3] <= m.Data[5] {
		t.Errorf("row 1 should be decreasing, got %v", m.Row(1))
	}
}

func TestSoftmaxLargeValues(t *testing.T) {
	input := []float32{1000, 1001, 1002}
	Softmax(input)
	expected := []float32{0.09003057, 0.24472847, 0.66524096}
	for i := range input {
		if math.Abs(float64(input[i])-float64(expected[i])) > 1e-6 {
			t.Errorf("expected %v, got %v", expected, input)
			break
		}
	}
}
