package model

import "github.com/23skdu/dashcam-scribe/internal/device"

// MakeShiftedMask builds the (L, L) structural attention mask for a
// video-prefix caption sequence. Every query row may attend to the
// whole video region; text rows additionally attend to text positions
// up to and including their own. Video rows never see text. In decoder
// mode the mask is all ones.
func MakeShiftedMask(videoLen, textLen int, decoder bool) *device.Tensor {
	seqLen := videoLen + textLen
	mask := device.NewTensor(seqLen, seqLen)
	if decoder {
		for i := range mask.Data {
			mask.Data[i] = 1
		}
		return mask
	}
	for q := 0; q < seqLen; q++ {
		row := mask.Row(q)
		for k := 0; k < videoLen; k++ {
			row[k] = 1
		}
		if q >= videoLen {
			for k := videoLen; k <= q; k++ {
				row[k] = 1
			}
		}
	}
	return mask
}

// MakePadShiftedMask combines the structural mask with a per-position
// validity vector: column k is zeroed everywhere when valid[k] is 0.
func MakePadShiftedMask(valid []float32, videoLen, textLen int) *device.Tensor {
	mask := MakeShiftedMask(videoLen, textLen, false)
	seqLen := videoLen + textLen
	for q := 0; q < seqLen; q++ {
		row := mask.Row(q)
		for k := 0; k < seqLen; k++ {
			row[k] *= valid[k]
		}
	}
	return mask
}

// MakeVideoOnlyMask copies a validity vector and zeroes the text
// region, leaving attention restricted to video positions.
func MakeVideoOnlyMask(valid []float32, videoLen int) []float32 {
	out := make([]float32, len(valid))
	copy(out, valid[:videoLen])
	return out
}
