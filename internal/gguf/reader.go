package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"syscall"

	"github.com/23skdu/dashcam-scribe/internal/device"
	"github.com/23skdu/dashcam-scribe/internal/logger"
)

// LoadFile maps a GGUF checkpoint into memory and parses the header,
// metadata KV pairs and tensor directory. Tensor payloads stay in the
// mapping; nothing is copied until Float32s is called.
func LoadFile(path string) (*GGUFFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	file := &GGUFFile{
		Data:   data,
		KV:     make(map[string]interface{}),
		byName: make(map[string]*TensorInfo),
	}

	offset := uint64(0)

	if size < 24 {
		return nil, io.ErrUnexpectedEOF
	}

	file.Header.Magic = binary.LittleEndian.Uint32(data[offset:])
	offset += 4
	if file.Header.Magic != GGUFMagic {
		return nil, ErrInvalidMagic{Magic: file.Header.Magic}
	}

	file.Header.Version = binary.LittleEndian.Uint32(data[offset:])
	offset += 4
	if file.Header.Version < 2 || file.Header.Version > 3 {
		return nil, ErrUnsupportedVersion{Version: file.Header.Version}
	}

	file.Header.TensorCount = binary.LittleEndian.Uint64(data[offset:])
	offset += 8
	file.Header.KVCount = binary.LittleEndian.Uint64(data[offset:])
	offset += 8

	for i := uint64(0); i < file.Header.KVCount; i++ {
		k, n, err := readString(data, offset)
		if err != nil {
			return nil, err
		}
		offset += n

		valType := GGUFMetadataValueType(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4

		val, n, err := readValue(data, offset, valType)
		if err != nil {
			return nil, err
		}
		offset += n

		file.KV[k] = val
	}

	for i := uint64(0); i < file.Header.TensorCount; i++ {
		name, n, err := readString(data, offset)
		if err != nil {
			return nil, err
		}
		offset += n

		dims := binary.LittleEndian.Uint32(data[offset:])
		offset += 4

		dimArr := make([]uint64, dims)
		for j := uint32(0); j < dims; j++ {
			dimArr[j] = binary.LittleEndian.Uint64(data[offset:])
			offset += 8
		}

		typ := GGMLType(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4

		tensorOffset := binary.LittleEndian.Uint64(data[offset:])
		offset += 8

		t := &TensorInfo{
			Name:       name,
			Dimensions: dimArr,
			Type:       typ,
			Offset:     tensorOffset,
		}
		if t.SizeBytes() == 0 && t.NumElements() > 0 {
			return nil, ErrUnsupportedType{Name: name, Type: typ}
		}
		file.Tensors = append(file.Tensors, t)
		file.byName[name] = t
	}

	alignment := uint64(32)
	switch v := file.KV["general.alignment"].(type) {
	case uint32:
		alignment = uint64(v)
	case uint64:
		alignment = v
	}

	padding := alignment - (offset % alignment)
	if padding != alignment {
		offset += padding
	}
	file.DataOffset = offset

	for _, t := range file.Tensors {
		start := offset + t.Offset
		end := start + t.SizeBytes()
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("tensor %s extends past end of file", t.Name)
		}
		t.Data = data[start:end]
	}

	logger.Log.Debug("checkpoint mapped",
		"path", path,
		"version", file.Header.Version,
		"tensors", file.Header.TensorCount,
		"kv", file.Header.KVCount)

	return file, nil
}

func (f *GGUFFile) Close() error {
	return syscall.Munmap(f.Data)
}

// Tensor looks up a tensor by its checkpoint name.
func (f *GGUFFile) Tensor(name string) (*TensorInfo, bool) {
	t, ok := f.byName[name]
	return t, ok
}

// Float32s decodes the tensor payload into a freshly allocated slice,
// widening F16 on the fly.
func (t *TensorInfo) Float32s() ([]float32, error) {
	n := int(t.NumElements())
	out := make([]float32, n)
	switch t.Type {
	case GGMLTypeF32:
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:]))
		}
	case GGMLTypeF16:
		half := make([]uint16, n)
		for i := 0; i < n; i++ {
			half[i] = binary.LittleEndian.Uint16(t.Data[i*2:])
		}
		device.Fp16ToFp32(half, out)
	default:
		return nil, ErrUnsupportedType{Name: t.Name, Type: t.Type}
	}
	return out, nil
}

func readString(data []byte, offset uint64) (string, uint64, error) {
	if offset+8 > uint64(len(data)) {
		return "", 0, io.ErrUnexpectedEOF
	}
	length := binary.LittleEndian.Uint64(data[offset:])
	if offset+8+length > uint64(len(data)) {
		return "", 0, io.ErrUnexpectedEOF
	}
	return string(data[offset+8 : offset+8+length]), 8 + length, nil
}

func readValue(data []byte, offset uint64, typ GGUFMetadataValueType) (interface{}, uint64, error) {
	switch typ {
	case GGUFMetadataValueTypeUint8:
		return data[offset], 1, nil
	case GGUFMetadataValueTypeInt8:
		return int8(data[offset]), 1, nil
	case GGUFMetadataValueTypeUint16:
		return binary.LittleEndian.Uint16(data[offset:]), 2, nil
	case GGUFMetadataValueTypeInt16:
		return int16(binary.LittleEndian.Uint16(data[offset:])), 2, nil
	case GGUFMetadataValueTypeUint32:
		return binary.LittleEndian.Uint32(data[offset:]), 4, nil
	case GGUFMetadataValueTypeInt32:
		return int32(binary.LittleEndian.Uint32(data[offset:])), 4, nil
	case GGUFMetadataValueTypeFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(data[offset:])), 4, nil
	case GGUFMetadataValueTypeBool:
		return data[offset] != 0, 1, nil
	case GGUFMetadataValueTypeString:
		return readString(data, offset)
	case GGUFMetadataValueTypeArray:
		arrType := GGUFMetadataValueType(binary.LittleEndian.Uint32(data[offset:]))
		arrLen := binary.LittleEndian.Uint64(data[offset+4:])
		bytesRead := uint64(12)
		currentOff := offset + 12

		var arr []interface{}
		for i := uint64(0); i < arrLen; i++ {
			val, n, err := readValue(data, currentOff, arrType)
			if err != nil {
				return nil, 0, err
			}
			arr = append(arr, val)
			currentOff += n
			bytesRead += n
		}
		return arr, bytesRead, nil
	case GGUFMetadataValueTypeUint64:
		return binary.LittleEndian.Uint64(data[offset:]), 8, nil
	case GGUFMetadataValueTypeInt64:
		return int64(binary.LittleEndian.Uint64(data[offset:])), 8, nil
	case GGUFMetadataValueTypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data[offset:])), 8, nil
	default:
		return nil, 0, fmt.Errorf("unsupported metadata type: %d", typ)
	}
}
