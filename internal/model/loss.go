package model

import (
	"fmt"
	"math"

	"github.com/23skdu/dashcam-scribe/internal/config"
	"github.com/23skdu/dashcam-scribe/internal/device"
	"github.com/23skdu/dashcam-scribe/internal/metrics"
	"github.com/23skdu/dashcam-scribe/internal/vocab"
)

// StepTargets holds the supervision for one segment of one sequence.
type StepTargets struct {
	Labels  []int     // (L) next-token ids, vocab.Ignore off caption
	Future  []float32 // (hidden) next segment's last clip frame
	Sensors []float32 // (frames) raw sensor readings
}

// LossTerms breaks the training objective into its weighted parts.
type LossTerms struct {
	Total   float64
	Caption float64
	Future  float64
	Sensor  float64
}

// crossEntropySum accumulates -log p(label) over rows with real
// labels, returning the sum and the number of scored rows.
func crossEntropySum(logits *device.Tensor, labels []int) (float64, int) {
	var sum float64
	var count int
	for r := 0; r < logits.Rows; r++ {
		label := labels[r]
		if label == vocab.Ignore {
			continue
		}
		row := logits.Row(r)
		max := float64(row[0])
		for _, v := range row {
			if float64(v) > max {
				max = float64(v)
			}
		}
		var expSum float64
		for _, v := range row {
			expSum += math.Exp(float64(v) - max)
		}
		logSumExp := max + math.Log(expSum)
		sum += logSumExp - float64(row[label])
		count++
	}
	return sum, count
}

func squaredErrorSum(pred, gt []float32) (float64, int) {
	var sum float64
	for i := range pred {
		d := float64(pred[i]) - float64(gt[i])
		sum += d * d
	}
	return sum, len(pred)
}

// ForwardSequence runs every segment of an ordered batch and computes
// the combined objective: weighted caption cross entropy, future frame
// regression and normalized sensor regression, averaged over steps.
// steps[t][b] is segment t of sequence b; targets aligns with steps.
func (m *Model) ForwardSequence(steps [][]*StepInput, targets [][]*StepTargets) (*LossTerms, [][]*StepOutput, error) {
	if len(steps) == 0 {
		return nil, nil, fmt.Errorf("empty segment sequence")
	}
	if len(targets) != len(steps) {
		return nil, nil, fmt.Errorf("targets length %d does not match steps %d", len(targets), len(steps))
	}
	metrics.RecordSegmentSequence(len(steps))

	cfg := m.Config
	stats := []config.SensorStat{cfg.Sensor.Speed, cfg.Sensor.Accel, cfg.Sensor.Course, cfg.Sensor.CourseVel}
	frames := cfg.SensorFrames
	if frames > len(stats) {
		return nil, nil, fmt.Errorf("sensor frames %d exceed the %d channels with normalization stats", frames, len(stats))
	}

	terms := &LossTerms{}
	outputs := make([][]*StepOutput, len(steps))

	for t := range steps {
		if len(targets[t]) != len(steps[t]) {
			return nil, nil, fmt.Errorf("step %d: %d targets for %d inputs", t, len(targets[t]), len(steps[t]))
		}
		var ceSum float64
		var ceCount int
		var futSum float64
		var futCount int
		chSum := make([]float64, frames)
		chCount := make([]int, frames)

		outputs[t] = make([]*StepOutput, len(steps[t]))
		for b, in := range steps[t] {
			out, err := m.Step(in)
			if err != nil {
				return nil, nil, fmt.Errorf("step %d item %d: %w", t, b, err)
			}
			outputs[t][b] = out
			tgt := targets[t][b]

			s, n := crossEntropySum(out.Logits, tgt.Labels)
			ceSum += s
			ceCount += n

			s, n = squaredErrorSum(out.Future, tgt.Future)
			futSum += s
			futCount += n

			for ch := 0; ch < frames; ch++ {
				norm := (float64(tgt.Sensors[ch]) - stats[ch].Mean) / stats[ch].Std
				d := float64(out.Sensors[ch]) - norm
				chSum[ch] += d * d
				chCount[ch]++
			}
		}

		var snt float64
		if ceCount > 0 {
			snt = ceSum / float64(ceCount)
		}
		var fut float64
		if futCount > 0 {
			fut = futSum / float64(futCount)
		}
		var sens float64
		for ch := 0; ch < frames; ch++ {
			if chCount[ch] > 0 {
				sens += chSum[ch] / float64(chCount[ch])
			}
		}

		terms.Caption += snt
		terms.Future += fut
		terms.Sensor += sens
		terms.Total += cfg.CaptionLossWeight*snt + fut + cfg.SensorLossWeight*sens
	}

	n := float64(len(steps))
	terms.Total /= n
	terms.Caption /= n
	terms.Future /= n
	terms.Sensor /= n
	metrics.RecordLoss(terms.Total, terms.Caption, terms.Future, terms.Sensor)
	return terms, outputs, nil
}
