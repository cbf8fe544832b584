package model

import "github.com/23skdu/dashcam-scribe/internal/device"

// Embeddings fuses token ids, projected clip features and token type
// information into the model width, then adds sinusoidal positions and
// applies the final LayerNorm.
//
// Word embeddings pass through their own norm/projection/ReLU/norm
// stack before fusion; the type embedding is added to the word branch
// first and again in the sum, matching the trained checkpoint exactly.
type Embeddings struct {
	Word      *device.Tensor // (vocab, wordVec), row 0 is PAD and stays zero
	WordNorm  LayerNorm
	WordFC    Linear
	WordOut   LayerNorm
	VideoNorm LayerNorm
	VideoFC   Linear
	VideoOut  LayerNorm
	TokenType *device.Tensor // (typeVocab, hidden)
	Positions *PositionEncoding
	Norm      LayerNorm
}

// Forward embeds one sequence. ids and types have length L, video is
// (L, videoFeatureSize). The result is (L, hidden).
func (e *Embeddings) Forward(ctx *device.Context, ids []int, video *device.Tensor, types []int) *device.Tensor {
	seqLen := len(ids)
	wordVec := e.Word.Cols
	hidden := e.WordFC.OutFeatures()

	words := ctx.Get(seqLen, wordVec)
	for i, id := range ids {
		copy(words.Row(i), e.Word.Row(id))
	}
	wordsNormed := ctx.Get(seqLen, wordVec)
	e.WordNorm.Forward(ctx, words, wordsNormed)
	ctx.Put(words)

	wordsProj := ctx.Get(seqLen, hidden)
	e.WordFC.Forward(ctx, wordsNormed, wordsProj)
	ctx.Put(wordsNormed)
	device.ReLU(wordsProj.Data)
	wordsOut := ctx.Get(seqLen, hidden)
	e.WordOut.Forward(ctx, wordsProj, wordsOut)
	ctx.Put(wordsProj)

	vidNormed := ctx.Get(seqLen, video.Cols)
	e.VideoNorm.Forward(ctx, video, vidNormed)
	vidProj := ctx.Get(seqLen, hidden)
	e.VideoFC.Forward(ctx, vidNormed, vidProj)
	ctx.Put(vidNormed)
	device.ReLU(vidProj.Data)
	vidOut := ctx.Get(seqLen, hidden)
	e.VideoOut.Forward(ctx, vidProj, vidOut)
	ctx.Put(vidProj)

	sum := ctx.Get(seqLen, hidden)
	for i := 0; i < seqLen; i++ {
		row := sum.Row(i)
		typeRow := e.TokenType.Row(types[i])
		wordRow := wordsOut.Row(i)
		vidRow := vidOut.Row(i)
		for d := 0; d < hidden; d++ {
			row[d] = wordRow[d] + typeRow[d] + vidRow[d] + typeRow[d]
		}
	}
	ctx.Put(wordsOut)
	ctx.Put(vidOut)

	e.Positions.Forward(sum)

	out := ctx.Get(seqLen, hidden)
	e.Norm.Forward(ctx, sum, out)
	ctx.Put(sum)
	return out
}
