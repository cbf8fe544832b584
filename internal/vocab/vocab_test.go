package vocab

import (
	"path/filepath"
	"testing"
)

func testWords() []string {
	return []string{
		PadToken, ClsToken, SepToken, VidToken, BosToken, EosToken, UnkToken,
		"the", "car", "turns", "left", "right", "ahead", "slows", "down",
	}
}

func newTestVocab(t *testing.T) *Vocab {
	t.Helper()
	v, err := New(testWords())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestNewValidation(t *testing.T) {
	if _, err := New([]string{PadToken, ClsToken}); err == nil {
		t.Error("expected error for undersized word list")
	}

	words := testWords()
	words[0], words[1] = words[1], words[0]
	if _, err := New(words); err == nil {
		t.Error("expected error for misplaced control tokens")
	}

	dup := testWords()
	dup = append(dup, "the")
	if _, err := New(dup); err == nil {
		t.Error("expected error for duplicate word")
	}
}

func TestIDFallback(t *testing.T) {
	v := newTestVocab(t)
	if got := v.ID("car"); got != 8 {
		t.Errorf("expected id 8 for car, got %d", got)
	}
	if got := v.ID("zeppelin"); got != UNK {
		t.Errorf("expected UNK for unknown word, got %d", got)
	}
	if got := v.Token(Ignore); got != UnkToken {
		t.Errorf("expected UNK token for ignore id, got %q", got)
	}
}

func TestEncodeSentence(t *testing.T) {
	v := newTestVocab(t)
	ids, mask := v.EncodeSentence("The car turns LEFT", 8)
	wantIDs := []int{BOS, 7, 8, 9, 10, EOS, PAD, PAD}
	wantMask := []float32{1, 1, 1, 1, 1, 1, 0, 0}
	if len(ids) != 8 || len(mask) != 8 {
		t.Fatalf("expected length 8, got ids=%d mask=%d", len(ids), len(mask))
	}
	for i := range wantIDs {
		if ids[i] != wantIDs[i] {
			t.Errorf("ids[%d]: expected %d, got %d", i, wantIDs[i], ids[i])
		}
		if mask[i] != wantMask[i] {
			t.Errorf("mask[%d]: expected %f, got %f", i, wantMask[i], mask[i])
		}
	}
}

func TestEncodeSentenceTruncation(t *testing.T) {
	v := newTestVocab(t)
	ids, mask := v.EncodeSentence("the car turns left right ahead slows down", 6)
	if len(ids) != 6 {
		t.Fatalf("expected length 6, got %d", len(ids))
	}
	wantIDs := []int{BOS, 7, 8, 9, 10, EOS}
	for i := range wantIDs {
		if ids[i] != wantIDs[i] {
			t.Errorf("ids[%d]: expected %d, got %d", i, wantIDs[i], ids[i])
		}
		if mask[i] != 1 {
			t.Errorf("mask[%d]: expected 1, got %f", i, mask[i])
		}
	}
}

func TestEncodeSentenceUnknown(t *testing.T) {
	v := newTestVocab(t)
	ids, _ := v.EncodeSentence("the zeppelin turns", 8)
	if ids[2] != UNK {
		t.Errorf("expected UNK at position 2, got %d", ids[2])
	}
}

func TestVideoTokenIDs(t *testing.T) {
	ids, mask := VideoTokenIDs(8)
	wantIDs := []int{CLS, VID, VID, VID, VID, VID, VID, SEP}
	for i := range wantIDs {
		if ids[i] != wantIDs[i] {
			t.Errorf("ids[%d]: expected %d, got %d", i, wantIDs[i], ids[i])
		}
		if mask[i] != 1 {
			t.Errorf("mask[%d]: expected 1, got %f", i, mask[i])
		}
	}
}

func TestConvertIDsToSentence(t *testing.T) {
	v := newTestVocab(t)
	tests := []struct {
		name string
		ids  []int
		want string
	}{
		{"simple", []int{BOS, 7, 8, 9, 10, EOS, PAD, PAD}, "the car turns left"},
		{"no eos", []int{BOS, 7, 8}, "the car"},
		{"ignore markers dropped", []int{Ignore, BOS, 7, 8, EOS}, "the car"},
		{"empty", []int{PAD, PAD}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.ConvertIDsToSentence(tt.ids); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	v := newTestVocab(t)
	path := filepath.Join(t.TempDir(), "word2idx.json")
	if err := v.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != v.Size() {
		t.Fatalf("expected size %d, got %d", v.Size(), loaded.Size())
	}
	for i, w := range v.Words {
		if loaded.Words[i] != w {
			t.Errorf("word %d: expected %q, got %q", i, w, loaded.Words[i])
		}
	}
}
