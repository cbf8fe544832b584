// Package dstore persists the key/value datastore written during greedy
// decoding: two flat float32 record arrays (keys and values) backed by
// memory-mapped files of fixed capacity. Records are appended through a
// monotonic cursor and never rewritten. A downstream retrieval service
// builds its nearest-neighbour index from the files, either offline or
// streamed over Arrow Flight.
package dstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/23skdu/dashcam-scribe/internal/logger"
	"github.com/23skdu/dashcam-scribe/internal/metrics"
)

// The two record arrays inside a datastore directory. Both are flat
// little-endian float32, no header, not versioned: record i of the keys
// file occupies bytes [i*keyDim*4, (i+1)*keyDim*4).
const (
	KeysFile = "keys.f32"
	ValsFile = "vals.f32"
)

// Store is a fixed-capacity pair of mmap-backed float32 record arrays.
// Keys hold decoder feature vectors, values the matching vocabulary
// logit rows. Not safe for concurrent Append.
type Store struct {
	dir      string
	keyDim   int
	valDim   int
	capacity int64
	offset   int64
	keys     []byte
	vals     []byte
	log      *logger.Logger
}

// Create allocates a new datastore under dir, truncating any previous
// arrays there. Capacity is the number of records; both files are sized
// up front so decoding never grows them.
func Create(dir string, capacity int64, keyDim, valDim int) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("datastore capacity must be positive, got %d", capacity)
	}
	if keyDim <= 0 || valDim <= 0 {
		return nil, fmt.Errorf("datastore record widths must be positive, got key %d val %d", keyDim, valDim)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	keys, err := mapFile(filepath.Join(dir, KeysFile), capacity*int64(keyDim)*4, true)
	if err != nil {
		return nil, err
	}
	vals, err := mapFile(filepath.Join(dir, ValsFile), capacity*int64(valDim)*4, true)
	if err != nil {
		_ = syscall.Munmap(keys)
		return nil, err
	}

	s := &Store{
		dir:      dir,
		keyDim:   keyDim,
		valDim:   valDim,
		capacity: capacity,
		keys:     keys,
		vals:     vals,
		log:      logger.Log.With("dstore"),
	}
	s.log.Info("datastore created",
		"dir", dir,
		"capacity", capacity,
		"key_dim", keyDim,
		"val_dim", valDim)
	return s, nil
}

// Open maps an existing datastore read-write. Capacity is derived from
// the keys file size; the cursor is positioned after the last key record
// holding any non-zero byte, since the format carries no header. Fully
// zero records at the tail are indistinguishable from unwritten capacity.
func Open(dir string, keyDim, valDim int) (*Store, error) {
	if keyDim <= 0 || valDim <= 0 {
		return nil, fmt.Errorf("datastore record widths must be positive, got key %d val %d", keyDim, valDim)
	}

	keysPath := filepath.Join(dir, KeysFile)
	info, err := os.Stat(keysPath)
	if err != nil {
		return nil, err
	}
	recBytes := int64(keyDim) * 4
	if info.Size() == 0 || info.Size()%recBytes != 0 {
		return nil, fmt.Errorf("%s is %d bytes, not a multiple of the %d-byte key record", keysPath, info.Size(), recBytes)
	}
	capacity := info.Size() / recBytes

	keys, err := mapFile(keysPath, info.Size(), false)
	if err != nil {
		return nil, err
	}
	vals, err := mapFile(filepath.Join(dir, ValsFile), capacity*int64(valDim)*4, false)
	if err != nil {
		_ = syscall.Munmap(keys)
		return nil, err
	}

	s := &Store{
		dir:      dir,
		keyDim:   keyDim,
		valDim:   valDim,
		capacity: capacity,
		offset:   usedRecords(keys, keyDim),
		keys:     keys,
		vals:     vals,
		log:      logger.Log.With("dstore"),
	}
	s.log.Info("datastore opened",
		"dir", dir,
		"capacity", capacity,
		"records", s.offset)
	return s, nil
}

func mapFile(path string, size int64, create bool) ([]byte, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	if create {
		if err := f.Truncate(size); err != nil {
			return nil, fmt.Errorf("allocate %s: %w", path, err)
		}
	} else {
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		if info.Size() != size {
			return nil, fmt.Errorf("%s is %d bytes, want %d", path, info.Size(), size)
		}
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return data, nil
}

func usedRecords(keys []byte, keyDim int) int64 {
	rec := int64(keyDim) * 4
	for i := int64(len(keys))/rec - 1; i >= 0; i-- {
		row := keys[i*rec : (i+1)*rec]
		for _, b := range row {
			if b != 0 {
				return i + 1
			}
		}
	}
	return 0
}

// Append writes one key/value record at the cursor and advances it.
// The cursor never moves backwards; a full store rejects the write.
func (s *Store) Append(key, val []float32) error {
	if len(key) != s.keyDim {
		return fmt.Errorf("key has %d values, store records %d", len(key), s.keyDim)
	}
	if len(val) != s.valDim {
		return fmt.Errorf("value has %d values, store records %d", len(val), s.valDim)
	}
	if s.offset >= s.capacity {
		return fmt.Errorf("datastore full: %d of %d records written", s.offset, s.capacity)
	}

	putRow(s.keys, s.offset, key)
	putRow(s.vals, s.offset, val)
	s.offset++
	metrics.RecordDatastoreAppend(1, s.offset)
	return nil
}

// Offset reports the number of records written so far.
func (s *Store) Offset() int64 { return s.offset }

// Capacity reports the number of records the arrays were allocated for.
func (s *Store) Capacity() int64 { return s.capacity }

func (s *Store) KeyDim() int { return s.keyDim }

func (s *Store) ValDim() int { return s.valDim }

// Key decodes key record i into a fresh slice. i must be below Offset.
func (s *Store) Key(i int64) []float32 { return rowAt(s.keys, i, s.keyDim) }

// Val decodes value record i into a fresh slice. i must be below Offset.
func (s *Store) Val(i int64) []float32 { return rowAt(s.vals, i, s.valDim) }

// Flush forces dirty pages of both mappings out to disk.
func (s *Store) Flush() error {
	if err := unix.Msync(s.keys, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync %s: %w", KeysFile, err)
	}
	if err := unix.Msync(s.vals, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync %s: %w", ValsFile, err)
	}
	return nil
}

// Close flushes and unmaps the arrays. Further calls are no-ops.
func (s *Store) Close() error {
	if s.keys == nil {
		return nil
	}
	err := s.Flush()
	if merr := syscall.Munmap(s.keys); err == nil {
		err = merr
	}
	if merr := syscall.Munmap(s.vals); err == nil {
		err = merr
	}
	s.keys, s.vals = nil, nil
	s.log.Debug("datastore closed", "records", s.offset)
	return err
}

func putRow(data []byte, row int64, values []float32) {
	base := row * int64(len(values)) * 4
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[base+int64(i)*4:], math.Float32bits(v))
	}
}

func rowAt(data []byte, row int64, dim int) []float32 {
	out := make([]float32, dim)
	base := row * int64(dim) * 4
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[base+int64(i)*4:]))
	}
	return out
}
