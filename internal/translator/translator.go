// Package translator runs greedy decoding over collated caption
// batches, one segment step at a time, optionally streaming decoder
// features and logit rows into the retrieval datastore.
package translator

import (
	"context"
	"fmt"
	"time"

	"github.com/23skdu/dashcam-scribe/internal/config"
	"github.com/23skdu/dashcam-scribe/internal/dataset"
	"github.com/23skdu/dashcam-scribe/internal/dstore"
	"github.com/23skdu/dashcam-scribe/internal/logger"
	"github.com/23skdu/dashcam-scribe/internal/metrics"
	"github.com/23skdu/dashcam-scribe/internal/model"
	"github.com/23skdu/dashcam-scribe/internal/vocab"
)

// Logit value forced onto [UNK] before every arg-max so the decoder
// never emits it.
const unkSuppression = -1e10

// Translator drives autoregressive caption generation. The datastore
// cursor lives in store and is never reset between segments of a run.
type Translator struct {
	model *model.Model
	cfg   *config.Config
	store *dstore.Store
	log   *logger.Logger
}

// New builds a translator around a loaded model. store may be nil, in
// which case no retrieval records are written.
func New(m *model.Model, store *dstore.Store) *Translator {
	return &Translator{
		model: m,
		cfg:   m.Config,
		store: store,
		log:   logger.Log.With("translator"),
	}
}

// TranslateBatch greedily decodes every step of a collated batch.
// The result holds, per step and per batch item, the text-region ids
// with everything after the first [EOS] replaced by [PAD]. Padded
// items decode like real ones; the caller drops them by the batch's
// per-video segment counts.
func (t *Translator) TranslateBatch(ctx context.Context, batch *dataset.Batch) ([][][]int, error) {
	decoded := make([][][]int, len(batch.Steps))
	for s, step := range batch.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := t.decodeStep(step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", s, err)
		}
		decoded[s] = out
	}
	t.log.Info("batch decoded",
		"steps", len(batch.Steps),
		"items", batch.Items())
	return decoded, nil
}

// decodeStep fills the text region of every item one position at a
// time: the previous winner (initially [BOS]) is written and marked
// valid, the model runs, and the arg-max at the current position
// becomes the next symbol. The final arg-max is computed for its side
// effects but never written.
func (t *Translator) decodeStep(segs []*dataset.Segment) ([][]int, error) {
	vl := t.cfg.MaxVideoLen
	L := t.cfg.SeqLen()
	start := time.Now()

	work := make([]*model.StepInput, len(segs))
	for i, seg := range segs {
		in, err := videoOnlyInput(t.cfg, seg.Input)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		work[i] = in
	}

	next := make([]int, len(segs))
	for i := range next {
		next[i] = vocab.BOS
	}

	for dec := vl; dec < L; dec++ {
		for i, in := range work {
			in.IDs[dec] = next[i]
			in.Mask[dec] = 1
		}
		for i, in := range work {
			out, err := t.model.Step(in)
			if err != nil {
				return nil, fmt.Errorf("item %d position %d: %w", i, dec, err)
			}
			logits := out.Logits.Row(dec)
			logits[vocab.UNK] = unkSuppression
			if t.store != nil {
				if err := t.store.Append(out.Decoded.Row(dec), logits); err != nil {
					out.Release(t.model)
					return nil, fmt.Errorf("datastore append: %w", err)
				}
			}
			next[i] = argmax(logits)
			out.Release(t.model)
		}
	}

	texts := make([][]int, len(segs))
	for i, in := range work {
		ids := in.IDs[vl:]
		eos := len(ids)
		for p, id := range ids {
			if id == vocab.EOS {
				eos = p
				break
			}
		}
		for p := eos + 1; p < len(ids); p++ {
			ids[p] = vocab.PAD
			in.Mask[vl+p] = 0
		}
		metrics.RecordEOSPosition(eos)
		texts[i] = append([]int(nil), ids...)
	}

	metrics.RecordDecode(len(segs)*t.cfg.MaxTextLen, time.Since(start))
	return texts, nil
}

// videoOnlyInput copies a segment's input with every text position
// cleared to [PAD] and marked invalid, leaving the video region
// untouched. The video tensor is shared; steps never mutate it. The
// token types must split the regions exactly at the video length.
func videoOnlyInput(cfg *config.Config, src *model.StepInput) (*model.StepInput, error) {
	vl := cfg.MaxVideoLen
	L := cfg.SeqLen()
	if len(src.IDs) != L || len(src.Mask) != L || len(src.Types) != L {
		return nil, fmt.Errorf("input lengths %d/%d/%d, want %d", len(src.IDs), len(src.Mask), len(src.Types), L)
	}

	in := &model.StepInput{
		IDs:   append([]int(nil), src.IDs...),
		Mask:  append([]float32(nil), src.Mask...),
		Types: append([]int(nil), src.Types...),
		Video: src.Video,
	}
	for p := 0; p < L; p++ {
		text := in.Types[p] == 1
		if text != (p >= vl) {
			return nil, fmt.Errorf("token type %d at position %d does not split video and text regions at %d", in.Types[p], p, vl)
		}
		if text {
			in.IDs[p] = vocab.PAD
			in.Mask[p] = 0
		}
	}
	return in, nil
}

// argmax returns the index of the largest value, first index on ties.
func argmax(x []float32) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}
