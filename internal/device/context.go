package device

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/23skdu/dashcam-scribe/internal/metrics"
)

var allocatedBytes int64

func traceAlloc(delta int64) {
	newVal := atomic.AddInt64(&allocatedBytes, delta)
	metrics.RecordPoolMemory(newVal)
}

func AllocatedBytes() int64 {
	return atomic.LoadInt64(&allocatedBytes)
}

// Tensor is a dense row-major float32 matrix. Higher-rank activations
// (batch, heads) are expressed as stacked rows with explicit offsets.
type Tensor struct {
	Data []float32
	Rows int
	Cols int
}

func NewTensor(rows, cols int) *Tensor {
	return &Tensor{
		Data: make([]float32, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

// FromSlice wraps an existing slice without copying. The slice length
// must equal rows*cols.
func FromSlice(data []float32, rows, cols int) *Tensor {
	return &Tensor{Data: data, Rows: rows, Cols: cols}
}

func (t *Tensor) Row(i int) []float32 {
	return t.Data[i*t.Cols : (i+1)*t.Cols]
}

func (t *Tensor) Numel() int {
	return t.Rows * t.Cols
}

// Context pools scratch tensors by shape so repeated forward passes do
// not churn the allocator.
type Context struct {
	mu   sync.Mutex
	pool map[string][]*Tensor
}

func NewContext() *Context {
	return &Context{
		pool: make(map[string][]*Tensor),
	}
}

// Get returns a zeroed tensor of the requested shape, reusing a pooled
// one when available.
func (c *Context) Get(rows, cols int) *Tensor {
	key := shapeKey(rows, cols)
	c.mu.Lock()
	pool := c.pool[key]
	if len(pool) > 0 {
		t := pool[len(pool)-1]
		c.pool[key] = pool[:len(pool)-1]
		c.mu.Unlock()
		clear(t.Data)
		return t
	}
	c.mu.Unlock()
	t := NewTensor(rows, cols)
	traceAlloc(int64(cap(t.Data)) * 4)
	return t
}

func (c *Context) Put(t *Tensor) {
	if t == nil || t.Data == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := shapeKey(t.Rows, t.Cols)
	c.pool[key] = append(c.pool[key], t)
}

func (c *Context) Free() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tensors := range c.pool {
		for _, t := range tensors {
			if t.Data != nil {
				traceAlloc(-int64(cap(t.Data)) * 4)
			}
		}
	}
	c.pool = make(map[string][]*Tensor)
}

func shapeKey(rows, cols int) string {
	return strconv.Itoa(rows) + "x" + strconv.Itoa(cols)
}
