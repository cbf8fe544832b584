package dstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// MemorySink collects exported batches in memory. It stands in for a
// Flight service in tests and when rehearsing an export without a
// remote endpoint.
type MemorySink struct {
	mu      sync.Mutex
	closed  bool
	schema  *arrow.Schema
	batches int
	ids     []int64
	keys    [][]float32
	vals    [][]float32
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Send decodes the batch into plain slices. The record may be released
// by the caller as soon as Send returns.
func (m *MemorySink) Send(ctx context.Context, rec arrow.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("sink closed")
	}
	if m.schema == nil {
		m.schema = rec.Schema()
	}

	ids := rec.Column(0).(*array.Int64)
	keys := rec.Column(1).(*array.FixedSizeList)
	vals := rec.Column(2).(*array.FixedSizeList)
	keyItems := keys.ListValues().(*array.Float32)
	valItems := vals.ListValues().(*array.Float32)
	keyDim := int(keys.DataType().(*arrow.FixedSizeListType).Len())
	valDim := int(vals.DataType().(*arrow.FixedSizeListType).Len())

	for i := 0; i < int(rec.NumRows()); i++ {
		m.ids = append(m.ids, ids.Value(i))
		m.keys = append(m.keys, copyFloats(keyItems, i*keyDim, keyDim))
		m.vals = append(m.vals, copyFloats(valItems, i*valDim, valDim))
	}
	m.batches++
	return nil
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Batches reports how many Send calls landed.
func (m *MemorySink) Batches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batches
}

// Records reports the total rows received across all batches.
func (m *MemorySink) Records() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}

// Record returns the i-th received row.
func (m *MemorySink) Record(i int) (id int64, key, val []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[i], m.keys[i], m.vals[i]
}

// Schema returns the schema of the first received batch, nil before any.
func (m *MemorySink) Schema() *arrow.Schema {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schema
}

// Reset clears all received data.
func (m *MemorySink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = 0
	m.ids = nil
	m.keys = nil
	m.vals = nil
	m.schema = nil
}

func copyFloats(items *array.Float32, start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = items.Value(start + i)
	}
	return out
}
