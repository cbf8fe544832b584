package vocab

import (
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/23skdu/dashcam-scribe/internal/metrics"
)

// Fixed ids for the control tokens. Caption sequences look like
// [CLS] [VID] ... [VID] [SEP] | [BOS] words [EOS] [PAD] ...
const (
	PAD = 0
	CLS = 1
	SEP = 2
	VID = 3
	BOS = 4
	EOS = 5
	UNK = 6
)

// Ignore marks label positions excluded from the caption loss.
const Ignore = -1

const (
	PadToken = "[PAD]"
	ClsToken = "[CLS]"
	SepToken = "[SEP]"
	VidToken = "[VID]"
	BosToken = "[BOS]"
	EosToken = "[EOS]"
	UnkToken = "[UNK]"
)

var specialTokens = []string{PadToken, ClsToken, SepToken, VidToken, BosToken, EosToken, UnkToken}

type Vocab struct {
	Words []string
	IDs   map[string]int
}

// New builds a vocabulary from an ordered word list. The first seven
// entries must be the control tokens at their fixed ids.
func New(words []string) (*Vocab, error) {
	if len(words) < len(specialTokens) {
		return nil, fmt.Errorf("vocabulary too small: %d words", len(words))
	}
	for i, want := range specialTokens {
		if words[i] != want {
			return nil, fmt.Errorf("expected %s at id %d, got %q", want, i, words[i])
		}
	}
	ids := make(map[string]int, len(words))
	for i, w := range words {
		if _, dup := ids[w]; dup {
			return nil, fmt.Errorf("duplicate word %q", w)
		}
		ids[w] = i
	}
	return &Vocab{Words: words, IDs: ids}, nil
}

// Load reads a word2idx JSON object, as produced by the caption
// preprocessing pipeline.
func Load(path string) (*Vocab, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var word2idx map[string]int
	if err := json.Unmarshal(raw, &word2idx); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	words := make([]string, len(word2idx))
	for w, id := range word2idx {
		if id < 0 || id >= len(words) {
			return nil, fmt.Errorf("word %q has out-of-range id %d", w, id)
		}
		if words[id] != "" {
			return nil, fmt.Errorf("ids %q and %q collide at %d", words[id], w, id)
		}
		words[id] = w
	}
	return New(words)
}

func (v *Vocab) Save(path string) error {
	data, err := json.MarshalIndent(v.IDs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (v *Vocab) Size() int {
	return len(v.Words)
}

// ID resolves a word, falling back to UNK for out-of-vocabulary input.
func (v *Vocab) ID(word string) int {
	if id, ok := v.IDs[word]; ok {
		return id
	}
	metrics.RecordVocabUnknown(1)
	return UNK
}

// Token returns the word for an id. Out-of-range ids (including the
// loss ignore marker) map to UNK.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.Words) {
		return UnkToken
	}
	return v.Words[id]
}

// EncodeSentence lowercases and whitespace-tokenizes a caption, trims
// it to fit BOS/EOS inside maxTextLen, and pads with PAD. The mask is
// 1 on real tokens and 0 on padding.
func (v *Vocab) EncodeSentence(sentence string, maxTextLen int) ([]int, []float32) {
	tokens := strings.Fields(strings.ToLower(sentence))
	if len(tokens) > maxTextLen-2 {
		tokens = tokens[:maxTextLen-2]
	}

	ids := make([]int, 0, maxTextLen)
	ids = append(ids, BOS)
	for _, tok := range tokens {
		ids = append(ids, v.ID(tok))
	}
	ids = append(ids, EOS)

	mask := make([]float32, maxTextLen)
	for i := range ids {
		mask[i] = 1
	}
	for len(ids) < maxTextLen {
		ids = append(ids, PAD)
	}
	return ids, mask
}

// VideoTokenIDs builds the video-region token ids [CLS] [VID]... [SEP]
// with an all-ones mask.
func VideoTokenIDs(maxVideoLen int) ([]int, []float32) {
	ids := make([]int, maxVideoLen)
	mask := make([]float32, maxVideoLen)
	ids[0] = CLS
	for i := 1; i < maxVideoLen-1; i++ {
		ids[i] = VID
	}
	ids[maxVideoLen-1] = SEP
	for i := range mask {
		mask[i] = 1
	}
	return ids, mask
}

// ConvertIDsToSentence renders decoded ids as text: padding and ignore
// markers are dropped, the leading BOS is skipped, and the sentence
// stops at the first EOS.
func (v *Vocab) ConvertIDsToSentence(ids []int) string {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == PAD || id == Ignore {
			continue
		}
		raw = append(raw, v.Token(id))
	}
	var words []string
	for i, w := range raw {
		if i == 0 {
			continue
		}
		if w == EosToken {
			break
		}
		words = append(words, w)
	}
	return strings.Join(words, " ")
}
