package gguf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

type writerKV struct {
	key string
	typ GGUFMetadataValueType
	str string
	u32 uint32
}

type writerTensor struct {
	name string
	dims []uint64
	data []float32
}

// Writer accumulates metadata and F32 tensors and serializes them as
// one GGUF v3 file. It covers what checkpoints of this model need;
// quantized types and metadata arrays are out of scope.
type Writer struct {
	alignment uint64
	kv        []writerKV
	tensors   []writerTensor
	names     map[string]bool
}

func NewWriter() *Writer {
	return &Writer{alignment: 32, names: make(map[string]bool)}
}

func (w *Writer) AddString(key, value string) {
	w.kv = append(w.kv, writerKV{key: key, typ: GGUFMetadataValueTypeString, str: value})
}

func (w *Writer) AddUint32(key string, value uint32) {
	w.kv = append(w.kv, writerKV{key: key, typ: GGUFMetadataValueTypeUint32, u32: value})
}

// AddTensorF32 schedules a tensor for the data section. Dimensions
// follow the GGUF convention, innermost first.
func (w *Writer) AddTensorF32(name string, dims []uint64, data []float32) error {
	if w.names[name] {
		return fmt.Errorf("duplicate tensor %s", name)
	}
	n := uint64(1)
	for _, d := range dims {
		n *= d
	}
	if n != uint64(len(data)) {
		return fmt.Errorf("tensor %s: dims hold %d elements, data has %d", name, n, len(data))
	}
	w.names[name] = true
	w.tensors = append(w.tensors, writerTensor{name: name, dims: dims, data: data})
	return nil
}

func (w *Writer) WriteFile(path string) error {
	var buf bytes.Buffer

	writeU32 := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	writeU64 := func(v uint64) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	writeStr := func(s string) {
		writeU64(uint64(len(s)))
		buf.WriteString(s)
	}

	writeU32(GGUFMagic)
	writeU32(GGUFVersion)
	writeU64(uint64(len(w.tensors)))
	writeU64(uint64(len(w.kv)))

	for _, kv := range w.kv {
		writeStr(kv.key)
		writeU32(uint32(kv.typ))
		switch kv.typ {
		case GGUFMetadataValueTypeString:
			writeStr(kv.str)
		case GGUFMetadataValueTypeUint32:
			writeU32(kv.u32)
		default:
			return fmt.Errorf("unsupported metadata type %d for key %s", kv.typ, kv.key)
		}
	}

	// Offsets are relative to the start of the data section, each
	// tensor padded out to the alignment boundary.
	offset := uint64(0)
	offsets := make([]uint64, len(w.tensors))
	for i, t := range w.tensors {
		offsets[i] = offset
		offset += uint64(len(t.data)) * 4
		if rem := offset % w.alignment; rem != 0 {
			offset += w.alignment - rem
		}
	}

	for i, t := range w.tensors {
		writeStr(t.name)
		writeU32(uint32(len(t.dims)))
		for _, d := range t.dims {
			writeU64(d)
		}
		writeU32(uint32(GGMLTypeF32))
		writeU64(offsets[i])
	}

	for uint64(buf.Len())%w.alignment != 0 {
		buf.WriteByte(0)
	}

	for _, t := range w.tensors {
		for _, v := range t.data {
			writeU32(math.Float32bits(v))
		}
		if rem := uint64(buf.Len()) % w.alignment; rem != 0 {
			buf.Write(make([]byte, w.alignment-rem))
		}
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}
