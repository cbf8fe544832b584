package dataset

import (
	"fmt"

	"github.com/23skdu/dashcam-scribe/internal/model"
	"github.com/23skdu/dashcam-scribe/internal/vocab"
)

// Batch is a step-major collation of several videos: Steps[t][b] is
// segment t of video b. Shorter videos are padded to the longest with
// a copy of the first video's first segment whose labels are all the
// ignore index, so padded steps run through the model but never score
// caption loss.
type Batch struct {
	Steps     [][]*Segment
	StepSizes []int // real segment count per video
}

// Collate builds a step-major batch from per-video segment sequences.
func Collate(videos [][]*Segment) (*Batch, error) {
	if len(videos) == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	maxSteps := 0
	for i, v := range videos {
		if len(v) == 0 {
			return nil, fmt.Errorf("video %d has no segments", i)
		}
		if len(v) > maxSteps {
			maxSteps = len(v)
		}
	}

	pad := paddingSegment(videos[0][0])

	batch := &Batch{
		Steps:     make([][]*Segment, maxSteps),
		StepSizes: make([]int, len(videos)),
	}
	for i, v := range videos {
		batch.StepSizes[i] = len(v)
	}
	for t := 0; t < maxSteps; t++ {
		batch.Steps[t] = make([]*Segment, len(videos))
		for b, v := range videos {
			if t < len(v) {
				batch.Steps[t][b] = v[t]
			} else {
				batch.Steps[t][b] = pad
			}
		}
	}
	return batch, nil
}

// paddingSegment clones a segment with every label ignored. The input
// tensors are shared: steps never mutate their inputs.
func paddingSegment(src *Segment) *Segment {
	labels := make([]int, len(src.Target.Labels))
	for i := range labels {
		labels[i] = vocab.Ignore
	}
	return &Segment{
		ClipID:   src.ClipID,
		VideoID:  src.VideoID,
		Sentence: src.Sentence,
		Input:    src.Input,
		Target: &model.StepTargets{
			Labels:  labels,
			Future:  src.Target.Future,
			Sensors: src.Target.Sensors,
		},
	}
}

// Inputs views the batch as ForwardSequence step inputs.
func (b *Batch) Inputs() [][]*model.StepInput {
	steps := make([][]*model.StepInput, len(b.Steps))
	for t, step := range b.Steps {
		steps[t] = make([]*model.StepInput, len(step))
		for i, seg := range step {
			steps[t][i] = seg.Input
		}
	}
	return steps
}

// Targets views the batch as ForwardSequence step targets.
func (b *Batch) Targets() [][]*model.StepTargets {
	steps := make([][]*model.StepTargets, len(b.Steps))
	for t, step := range b.Steps {
		steps[t] = make([]*model.StepTargets, len(step))
		for i, seg := range step {
			steps[t][i] = seg.Target
		}
	}
	return steps
}

// Items returns the batch width.
func (b *Batch) Items() int {
	if len(b.Steps) == 0 {
		return 0
	}
	return len(b.Steps[0])
}
