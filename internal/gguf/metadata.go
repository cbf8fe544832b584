package gguf

import "fmt"

// Summary describes a mapped checkpoint for startup logging and the
// inspect tooling.
type Summary struct {
	Architecture    string
	ModelName       string
	VocabSize       int
	HiddenSize      int
	TensorCount     int
	TotalParameters int64
	MemoryEstimate  int64
}

func (f *GGUFFile) Summarize() *Summary {
	s := &Summary{
		TensorCount: len(f.Tensors),
	}

	if arch, ok := f.KV["general.architecture"].(string); ok {
		s.Architecture = arch
	}
	if name, ok := f.KV["general.name"].(string); ok {
		s.ModelName = name
	}
	s.VocabSize = int(getKVInt(f.KV, s.Architecture+".vocab_size", "general.vocab_size"))
	s.HiddenSize = int(getKVInt(f.KV, s.Architecture+".hidden_size", s.Architecture+".embedding_length"))

	for _, t := range f.Tensors {
		s.TotalParameters += int64(t.NumElements())
		s.MemoryEstimate += int64(t.SizeBytes())
	}
	return s
}

func getKVInt(kv map[string]interface{}, keys ...string) uint64 {
	for _, key := range keys {
		if val, ok := kv[key]; ok {
			switch v := val.(type) {
			case uint64:
				return v
			case int64:
				return uint64(v)
			case uint32:
				return uint64(v)
			case int32:
				return uint64(v)
			case int:
				return uint64(v)
			}
		}
	}
	return 0
}

func (s *Summary) String() string {
	return fmt.Sprintf("arch=%s name=%q tensors=%d params=%d (%.2fM) bytes=%d",
		s.Architecture,
		s.ModelName,
		s.TensorCount,
		s.TotalParameters,
		float64(s.TotalParameters)/1e6,
		s.MemoryEstimate,
	)
}
