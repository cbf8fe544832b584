package translator

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/23skdu/dashcam-scribe/internal/dataset"
	"github.com/23skdu/dashcam-scribe/internal/vocab"
)

// Caption is one decoded sentence of a video paragraph.
type Caption struct {
	ClipID   string `json:"clip_id"`
	Sentence string `json:"sentence"`
}

// Paragraph is the ordered caption list of one video.
type Paragraph struct {
	VideoID  string    `json:"video_id"`
	Captions []Caption `json:"captions"`
}

// Paragraphs reassembles step-major decoded ids into per-video caption
// lists. videos must be the slice the batch was collated from; padded
// steps beyond a video's real segment count are dropped.
func Paragraphs(voc *vocab.Vocab, videos [][]*dataset.Segment, batch *dataset.Batch, decoded [][][]int) ([]Paragraph, error) {
	if len(decoded) != len(batch.Steps) {
		return nil, fmt.Errorf("decoded %d steps, batch has %d", len(decoded), len(batch.Steps))
	}
	if len(videos) != len(batch.StepSizes) {
		return nil, fmt.Errorf("%d videos, batch collated %d", len(videos), len(batch.StepSizes))
	}

	out := make([]Paragraph, len(videos))
	for b, video := range videos {
		if len(video) != batch.StepSizes[b] {
			return nil, fmt.Errorf("video %d has %d segments, batch collated %d", b, len(video), batch.StepSizes[b])
		}
		p := Paragraph{VideoID: video[0].VideoID, Captions: make([]Caption, 0, len(video))}
		for s := range video {
			if len(decoded[s]) != batch.Items() {
				return nil, fmt.Errorf("step %d decoded %d items, batch has %d", s, len(decoded[s]), batch.Items())
			}
			p.Captions = append(p.Captions, Caption{
				ClipID:   video[s].ClipID,
				Sentence: voc.ConvertIDsToSentence(decoded[s][b]),
			})
		}
		out[b] = p
	}
	return out, nil
}

// WriteParagraphs writes the caption paragraphs as indented JSON.
func WriteParagraphs(path string, paragraphs []Paragraph) error {
	data, err := json.MarshalIndent(paragraphs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
