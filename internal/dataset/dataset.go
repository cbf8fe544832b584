// Package dataset assembles captioning segments: annotation and
// feature JSON on disk, per-segment tensor construction and the
// step-major collation the recurrent forward pass consumes.
package dataset

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/23skdu/dashcam-scribe/internal/config"
	"github.com/23skdu/dashcam-scribe/internal/device"
	"github.com/23skdu/dashcam-scribe/internal/logger"
	"github.com/23skdu/dashcam-scribe/internal/model"
	"github.com/23skdu/dashcam-scribe/internal/vocab"
)

// SensorReading carries the raw (unnormalized) sensor ground truth for
// one segment.
type SensorReading struct {
	Speed     float64 `json:"speed"`
	Accel     float64 `json:"accel"`
	Course    float64 `json:"course"`
	CourseVel float64 `json:"course_vel"`
}

// Annotation is one clip-sentence pair. Segments of the same video
// share a VideoID and appear in playback order; a missing VideoID
// makes the clip a single-segment video.
type Annotation struct {
	ClipID    string         `json:"clip_id"`
	VideoID   string         `json:"video_id"`
	Duration  float64        `json:"duration"`
	Timestamp [2]float64     `json:"timestamp"`
	Sentence  string         `json:"sentence"`
	Sensors   *SensorReading `json:"sensors"`
}

// ClipFeatures holds the extracted features for one clip: consecutive
// frame vectors plus the future-frame regression target.
type ClipFeatures struct {
	ClipID string      `json:"clip_id"`
	Frames [][]float32 `json:"frames"`
	Future []float32   `json:"future"`
}

// LoadAnnotations reads a caption annotation file.
func LoadAnnotations(path string) ([]Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	var anns []Annotation
	if err := json.Unmarshal(data, &anns); err != nil {
		return nil, fmt.Errorf("parse annotations %s: %w", path, err)
	}
	for i := range anns {
		if anns[i].ClipID == "" {
			return nil, fmt.Errorf("annotation %d has no clip_id", i)
		}
	}
	logger.Log.Info("annotations loaded", "path", path, "segments", len(anns))
	return anns, nil
}

// LoadFeatures reads a clip feature file and indexes it by clip id.
func LoadFeatures(path string) (map[string]*ClipFeatures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features: %w", err)
	}
	var clips []*ClipFeatures
	if err := json.Unmarshal(data, &clips); err != nil {
		return nil, fmt.Errorf("parse features %s: %w", path, err)
	}
	byID := make(map[string]*ClipFeatures, len(clips))
	for i, c := range clips {
		if c.ClipID == "" {
			return nil, fmt.Errorf("feature entry %d has no clip_id", i)
		}
		if _, dup := byID[c.ClipID]; dup {
			return nil, fmt.Errorf("duplicate features for clip %s", c.ClipID)
		}
		byID[c.ClipID] = c
	}
	logger.Log.Info("features loaded", "path", path, "clips", len(byID))
	return byID, nil
}

// GroupByVideo splits annotations into per-video segment sequences,
// keeping file order both across videos and within one video.
func GroupByVideo(anns []Annotation) [][]Annotation {
	var order []string
	grouped := make(map[string][]Annotation)
	for _, a := range anns {
		key := a.VideoID
		if key == "" {
			key = a.ClipID
		}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], a)
	}
	videos := make([][]Annotation, len(order))
	for i, key := range order {
		videos[i] = grouped[key]
	}
	return videos
}

// Segment is one fully assembled clip-sentence pair, ready for the
// forward pass.
type Segment struct {
	ClipID   string
	VideoID  string
	Sentence string
	Input    *model.StepInput
	Target   *model.StepTargets
}

// NewSegment builds the tensors for one clip-sentence pair. frames are
// placed on video rows [1, 1+len(frames)); the rest of the video
// region stays zero. Labels shift the caption left by one position and
// carry the ignore index everywhere else.
func NewSegment(cfg *config.Config, voc *vocab.Vocab, ann Annotation, feats *ClipFeatures) (*Segment, error) {
	if feats == nil {
		return nil, fmt.Errorf("clip %s has no features", ann.ClipID)
	}
	L := cfg.SeqLen()
	videoLen := cfg.MaxVideoLen
	textLen := cfg.MaxTextLen

	if len(feats.Frames) > videoLen-2 {
		return nil, fmt.Errorf("clip %s has %d frames, the video region fits %d", ann.ClipID, len(feats.Frames), videoLen-2)
	}
	video := device.NewTensor(L, cfg.HiddenSize)
	for i, frame := range feats.Frames {
		if len(frame) != cfg.HiddenSize {
			return nil, fmt.Errorf("clip %s frame %d has width %d, want %d", ann.ClipID, i, len(frame), cfg.HiddenSize)
		}
		copy(video.Row(1+i), frame)
	}

	videoIDs, videoMask := vocab.VideoTokenIDs(videoLen)
	textIDs, textMask := voc.EncodeSentence(ann.Sentence, textLen)

	ids := make([]int, 0, L)
	ids = append(ids, videoIDs...)
	ids = append(ids, textIDs...)
	mask := make([]float32, 0, L)
	mask = append(mask, videoMask...)
	mask = append(mask, textMask...)

	types := make([]int, L)
	for i := videoLen; i < L; i++ {
		types[i] = 1
	}

	labels := make([]int, L)
	for i := 0; i < videoLen; i++ {
		labels[i] = vocab.Ignore
	}
	for i := 0; i < textLen-1; i++ {
		if textMask[i+1] == 0 {
			labels[videoLen+i] = vocab.Ignore
		} else {
			labels[videoLen+i] = textIDs[i+1]
		}
	}
	labels[L-1] = vocab.Ignore

	future := make([]float32, cfg.HiddenSize)
	if len(feats.Future) > 0 {
		if len(feats.Future) != cfg.HiddenSize {
			return nil, fmt.Errorf("clip %s future feature has width %d, want %d", ann.ClipID, len(feats.Future), cfg.HiddenSize)
		}
		copy(future, feats.Future)
	}

	sensors := make([]float32, cfg.SensorFrames)
	if ann.Sensors != nil {
		raw := []float64{ann.Sensors.Speed, ann.Sensors.Accel, ann.Sensors.Course, ann.Sensors.CourseVel}
		for i := 0; i < cfg.SensorFrames && i < len(raw); i++ {
			sensors[i] = float32(raw[i])
		}
	}

	videoID := ann.VideoID
	if videoID == "" {
		videoID = ann.ClipID
	}
	return &Segment{
		ClipID:   ann.ClipID,
		VideoID:  videoID,
		Sentence: ann.Sentence,
		Input:    &model.StepInput{IDs: ids, Video: video, Mask: mask, Types: types},
		Target:   &model.StepTargets{Labels: labels, Future: future, Sensors: sensors},
	}, nil
}

// BuildVideos assembles every annotated video into its ordered segment
// sequence, resolving features by clip id.
func BuildVideos(cfg *config.Config, voc *vocab.Vocab, anns []Annotation, feats map[string]*ClipFeatures) ([][]*Segment, error) {
	grouped := GroupByVideo(anns)
	videos := make([][]*Segment, len(grouped))
	for i, group := range grouped {
		videos[i] = make([]*Segment, len(group))
		for j, ann := range group {
			seg, err := NewSegment(cfg, voc, ann, feats[ann.ClipID])
			if err != nil {
				return nil, err
			}
			videos[i][j] = seg
		}
	}
	return videos, nil
}
