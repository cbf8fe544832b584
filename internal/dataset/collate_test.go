package dataset

import (
	"testing"

	"github.com/23skdu/dashcam-scribe/internal/vocab"
)

func buildTestVideos(t *testing.T) [][]*Segment {
	t.Helper()
	cfg := testConfig()
	voc := testVocab(t)

	anns := []Annotation{
		{ClipID: "a-0", VideoID: "a", Sentence: "the car"},
		{ClipID: "a-1", VideoID: "a", Sentence: "turns left"},
		{ClipID: "b-0", VideoID: "b", Sentence: "the car"},
	}
	feats := map[string]*ClipFeatures{
		"a-0": {ClipID: "a-0", Frames: testFrames(cfg, 2)},
		"a-1": {ClipID: "a-1", Frames: testFrames(cfg, 2)},
		"b-0": {ClipID: "b-0", Frames: testFrames(cfg, 2)},
	}
	videos, err := BuildVideos(cfg, voc, anns, feats)
	if err != nil {
		t.Fatalf("BuildVideos() error: %v", err)
	}
	return videos
}

func TestCollate(t *testing.T) {
	videos := buildTestVideos(t)

	batch, err := Collate(videos)
	if err != nil {
		t.Fatalf("Collate() error: %v", err)
	}

	if len(batch.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(batch.Steps))
	}
	if batch.Items() != 2 {
		t.Fatalf("expected 2 items, got %d", batch.Items())
	}
	if batch.StepSizes[0] != 2 || batch.StepSizes[1] != 1 {
		t.Errorf("step sizes = %v, expected [2 1]", batch.StepSizes)
	}

	// real segments sit in place
	if batch.Steps[0][0].ClipID != "a-0" || batch.Steps[1][0].ClipID != "a-1" {
		t.Error("video a segments out of order")
	}
	if batch.Steps[0][1].ClipID != "b-0" {
		t.Error("video b first segment misplaced")
	}

	// video b step 1 is padding: first video's first segment with
	// ignored labels, sharing the input tensors
	pad := batch.Steps[1][1]
	if pad.Input != videos[0][0].Input {
		t.Error("padding segment must share the donor input")
	}
	for i, l := range pad.Target.Labels {
		if l != vocab.Ignore {
			t.Fatalf("padding label %d = %d, expected ignore", i, l)
		}
	}
	// the donor's own labels are untouched
	donor := videos[0][0].Target.Labels
	scored := false
	for _, l := range donor {
		if l != vocab.Ignore {
			scored = true
		}
	}
	if !scored {
		t.Error("collation overwrote the donor segment's labels")
	}
}

func TestCollateViews(t *testing.T) {
	videos := buildTestVideos(t)
	batch, err := Collate(videos)
	if err != nil {
		t.Fatalf("Collate() error: %v", err)
	}

	inputs := batch.Inputs()
	targets := batch.Targets()
	if len(inputs) != len(batch.Steps) || len(targets) != len(batch.Steps) {
		t.Fatalf("views disagree on step count")
	}
	for t2 := range inputs {
		if len(inputs[t2]) != batch.Items() || len(targets[t2]) != batch.Items() {
			t.Fatalf("views disagree on item count at step %d", t2)
		}
		for i := range inputs[t2] {
			if inputs[t2][i] != batch.Steps[t2][i].Input {
				t.Fatal("input view does not alias the segment")
			}
			if targets[t2][i] != batch.Steps[t2][i].Target {
				t.Fatal("target view does not alias the segment")
			}
		}
	}
}

func TestCollateEmpty(t *testing.T) {
	if _, err := Collate(nil); err == nil {
		t.Error("expected error for empty batch")
	}
	if _, err := Collate([][]*Segment{{}}); err == nil {
		t.Error("expected error for video without segments")
	}
}
