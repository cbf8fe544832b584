package model

import (
	"fmt"
	"time"

	"github.com/23skdu/dashcam-scribe/internal/config"
	"github.com/23skdu/dashcam-scribe/internal/device"
	"github.com/23skdu/dashcam-scribe/internal/gguf"
	"github.com/23skdu/dashcam-scribe/internal/logger"
	"github.com/23skdu/dashcam-scribe/internal/metrics"
)

// Model is the recurrent video captioning transformer: clip features
// and caption tokens share one sequence, a relational time-series
// module fuses the clip window into a history query for the decoder,
// and a sensor stream regresses speed, acceleration, course and course
// velocity alongside the caption logits.
type Model struct {
	Config *config.Config
	Ctx    *device.Context

	ZF         *device.Tensor // future-frame gate, unbounded scalar
	SizeAdjust Linear
	Upsampling Linear
	PredF1     Linear
	PredF2     Linear
	PredF3     Linear

	Embeddings *Embeddings
	TS         *TimeSeriesModule
	Encoder    *Encoder
	Decoder    *Decoder
	Sensor     *SensorTransformer
	SensorHead *SensorHead
	Head       *PredictionHead

	params []namedTensor
}

// New builds a model with seeded random initialization.
func New(cfg *config.Config, seed int64) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := newRandomBuilder(seed, float32(cfg.InitializerRange))
	m, err := build(cfg, b)
	if err != nil {
		return nil, err
	}
	clear(m.Embeddings.Word.Row(0)) // PAD embedding stays zero
	return m, nil
}

// Load builds a model from a GGUF checkpoint. Tensor payloads are
// copied out, so the mapping is released before returning.
func Load(cfg *config.Config, path string) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gg, err := gguf.LoadFile(path)
	if err != nil {
		return nil, err
	}
	defer gg.Close()

	summary := gg.Summarize()
	logger.Log.Info("loading checkpoint", "path", path, "summary", summary.String())
	if summary.VocabSize != 0 && summary.VocabSize != cfg.VocabSize {
		return nil, fmt.Errorf("checkpoint vocab size %d does not match config %d", summary.VocabSize, cfg.VocabSize)
	}

	return build(cfg, newCheckpointBuilder(gg))
}

func build(cfg *config.Config, b *paramBuilder) (*Model, error) {
	hidden := cfg.HiddenSize
	clip := cfg.ClipFeatureSize
	eps := cfg.LayerNormEps

	m := &Model{
		Config:     cfg,
		Ctx:        device.NewContext(),
		ZF:         b.tensor("gates.zf", 1, 1, kindRandn),
		SizeAdjust: b.linear("size_adjust", hidden, clip),
		Upsampling: b.linear("upsampling", clip, hidden),
		PredF1:     b.linear("pred_f.dense1", clip, 2*clip),
		PredF2:     b.linear("pred_f.dense2", 2*clip, clip),
		PredF3:     b.linear("pred_f.dense3", clip, clip),
	}

	m.Embeddings = &Embeddings{
		Word:      b.tensor("embeddings.word.weight", cfg.VocabSize, cfg.WordVecSize, kindNormal),
		WordNorm:  b.layerNorm("embeddings.word_norm", cfg.WordVecSize, eps),
		WordFC:    b.linear("embeddings.word_fc", cfg.WordVecSize, hidden),
		WordOut:   b.layerNorm("embeddings.word_out", hidden, eps),
		VideoNorm: b.layerNorm("embeddings.video_norm", clip, eps),
		VideoFC:   b.linear("embeddings.video_fc", clip, hidden),
		VideoOut:  b.layerNorm("embeddings.video_out", hidden, eps),
		TokenType: b.tensor("embeddings.token_type.weight", cfg.TypeVocabSize, hidden, kindNormal),
		Positions: NewPositionEncoding(hidden, 2*cfg.SeqLen()),
		Norm:      b.layerNorm("embeddings.norm", hidden, eps),
	}

	tsLayers := make([]*TimeSeriesLayer, cfg.TSLayers)
	for i := range tsLayers {
		name := fmt.Sprintf("ts.encoder.%d", i)
		tsLayers[i] = &TimeSeriesLayer{
			Attention: b.rsa(name+".rsa", cfg.RSAModes, clip),
			Output:    b.feedForward(name+".ff", clip, cfg.TSIntermediateSize, eps),
		}
	}
	m.TS = &TimeSeriesModule{
		Encoder: &TimeSeriesEncoder{
			Positions: NewPositionEncoding(clip, 2*cfg.RSAModes),
			Layers:    tsLayers,
			FF:        b.feedForward("ts.ff", clip, cfg.TSIntermediateSize, eps),
		},
		Expand: b.linear("ts.expand", clip, hidden),
		Norm:   b.layerNorm("ts.norm", hidden, eps),
		Z:      b.tensor("ts.z", 1, 1, kindRandn),
	}

	encLayers := make([]*EncoderLayer, cfg.EncoderLayers)
	for i := range encLayers {
		name := fmt.Sprintf("encoder.%d", i)
		encLayers[i] = &EncoderLayer{
			VideoLen:  cfg.MaxVideoLen,
			TextLen:   cfg.MaxTextLen,
			Attention: b.attention(name+".attention", cfg.Heads, hidden, eps),
			Output:    b.feedForward(name+".ff", hidden, cfg.IntermediateSize, eps),
		}
	}
	m.Encoder = &Encoder{Layers: encLayers}

	decLayers := make([]*DecoderLayer, cfg.DecoderLayers)
	for i := range decLayers {
		name := fmt.Sprintf("decoder.%d", i)
		decLayers[i] = &DecoderLayer{
			VideoLen:  cfg.MaxVideoLen,
			TextLen:   cfg.MaxTextLen,
			Attention: b.attention(name+".attention", cfg.Heads, hidden, eps),
			Output:    b.feedForward(name+".ff", hidden, cfg.IntermediateSize, eps),
		}
	}
	m.Decoder = &Decoder{Layers: decLayers}

	senseLayers := make([]*SenseLayer, cfg.SensorLayers)
	for i := range senseLayers {
		name := fmt.Sprintf("sensor.%d", i)
		senseLayers[i] = &SenseLayer{
			Attention: b.attention(name+".attention", cfg.Heads, hidden, eps),
			Output:    b.feedForward(name+".ff", hidden, cfg.IntermediateSize, eps),
		}
	}
	m.Sensor = &SensorTransformer{Layers: senseLayers}

	m.SensorHead = &SensorHead{
		Dense1: b.linear("sensor_head.dense1", hidden, 128),
		Norm1:  b.layerNorm("sensor_head.norm1", 128, eps),
		Dense2: b.linear("sensor_head.dense2", 128, 32),
		Dense3: b.linear("sensor_head.dense3", 32, 8),
		Norm2:  b.layerNorm("sensor_head.norm2", 8, eps),
		Dense4: b.linear("sensor_head.dense4", 8, 1),
	}

	var untied *device.Tensor
	if !cfg.TieWordEmbeddings {
		untied = b.tensor("head.projection.weight", cfg.VocabSize, hidden, kindNormal)
	}
	head, err := NewPredictionHead(
		b.linear("head.dense", hidden, hidden),
		b.layerNorm("head.norm", hidden, eps),
		m.Embeddings.Word,
		hidden,
		cfg.TieWordEmbeddings,
		untied,
		b.tensor("head.bias", 1, cfg.VocabSize, kindZero),
	)
	if err != nil {
		return nil, err
	}
	m.Head = head

	if b.err != nil {
		return nil, b.err
	}
	m.params = b.params
	return m, nil
}

// Save writes the parameters as a GGUF v3 checkpoint under the same
// tensor names Load expects, widened metadata included. Used by the
// fixture generator and by converters producing checkpoints for this
// runtime.
func (m *Model) Save(path string) error {
	w := gguf.NewWriter()
	w.AddString("general.architecture", "scribe")
	w.AddString("general.name", "dashcam-scribe")
	w.AddUint32("general.alignment", 32)
	w.AddUint32("scribe.vocab_size", uint32(m.Config.VocabSize))
	w.AddUint32("scribe.hidden_size", uint32(m.Config.HiddenSize))

	for _, p := range m.params {
		dims := []uint64{uint64(p.t.Cols), uint64(p.t.Rows)}
		if p.t.Rows == 1 {
			dims = dims[:1]
		}
		if err := w.AddTensorF32(p.name, dims, p.t.Data); err != nil {
			return err
		}
	}
	if err := w.WriteFile(path); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", path, err)
	}
	logger.Log.Info("checkpoint saved", "path", path, "tensors", len(m.params))
	return nil
}

// StepInput is one segment of one sequence: token ids, raw clip
// features, the validity mask and token types, all of length SeqLen.
type StepInput struct {
	IDs   []int
	Video *device.Tensor // (L, hidden) raw clip features
	Mask  []float32
	Types []int
}

// StepOutput carries everything a single recurrent step produces.
// Decoded holds the decoder features after the sensor stream splice;
// its caption rows double as retrieval keys.
type StepOutput struct {
	Encoded *device.Tensor // (L, hidden)
	Logits  *device.Tensor // (L, vocab)
	Future  []float32      // (hidden)
	Sensors []float32      // (frames) normalized readouts
	Decoded *device.Tensor // (L, hidden)
}

// Release returns the output tensors to the model's scratch pool.
func (o *StepOutput) Release(m *Model) {
	m.Ctx.Put(o.Encoded)
	m.Ctx.Put(o.Logits)
	m.Ctx.Put(o.Decoded)
}

func (m *Model) checkStepInput(in *StepInput) error {
	L := m.Config.SeqLen()
	if len(in.IDs) != L {
		return fmt.Errorf("ids length %d, want %d", len(in.IDs), L)
	}
	if len(in.Mask) != L {
		return fmt.Errorf("mask length %d, want %d", len(in.Mask), L)
	}
	if len(in.Types) != L {
		return fmt.Errorf("types length %d, want %d", len(in.Types), L)
	}
	if in.Video == nil || in.Video.Rows != L || in.Video.Cols != m.Config.HiddenSize {
		return fmt.Errorf("video features must be (%d, %d)", L, m.Config.HiddenSize)
	}
	for i, id := range in.IDs {
		if id < 0 || id >= m.Config.VocabSize {
			return fmt.Errorf("id %d at position %d out of vocabulary", id, i)
		}
	}
	for i, tt := range in.Types {
		if tt < 0 || tt >= m.Config.TypeVocabSize {
			return fmt.Errorf("token type %d at position %d out of range", tt, i)
		}
	}
	return nil
}

// Step runs one recurrent forward pass over a single segment.
func (m *Model) Step(in *StepInput) (*StepOutput, error) {
	if err := m.checkStepInput(in); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		metrics.RecordStep(time.Since(start))
	}()

	ctx := m.Ctx
	cfg := m.Config
	L := cfg.SeqLen()
	clip := cfg.ClipFeatureSize
	hidden := cfg.HiddenSize
	modes := cfg.RSAModes

	adjusted := ctx.Get(L, clip)
	m.SizeAdjust.Forward(ctx, in.Video, adjusted)

	clipFeats := ctx.Get(modes, clip)
	for i := 0; i < modes; i++ {
		copy(clipFeats.Row(i), adjusted.Row(1+i))
	}

	// future branch from the last clip frame
	futureIn := device.FromSlice(adjusted.Row(modes), 1, clip)
	f1 := ctx.Get(1, 2*clip)
	m.PredF1.Forward(ctx, futureIn, f1)
	device.ReLU(f1.Data)
	f2 := ctx.Get(1, clip)
	m.PredF2.Forward(ctx, f1, f2)
	ctx.Put(f1)
	device.ReLU(f2.Data)
	futureB := ctx.Get(1, clip)
	m.PredF3.Forward(ctx, f2, futureB)
	ctx.Put(f2)

	zf := m.ZF.Data[0]
	lastRow := clipFeats.Row(modes - 1)
	for d := 0; d < clip; d++ {
		lastRow[d] = zf*lastRow[d] + (1-zf)*futureB.Data[d]
	}

	allClip, clipHis := m.TS.Forward(ctx, clipFeats)
	ctx.Put(clipFeats)

	emb := m.Embeddings.Forward(ctx, in.IDs, adjusted, in.Types)
	ctx.Put(adjusted)

	encoded := m.Encoder.Forward(ctx, emb, in.Mask)
	ctx.Put(emb)

	decoded := m.Decoder.Forward(ctx, encoded, in.Mask, clipHis)

	frames := cfg.SensorFrames
	cat := ctx.Get(frames, hidden)
	for i := 0; i < modes; i++ {
		copy(cat.Row(i), allClip.Row(i))
	}
	copy(cat.Row(frames-1), clipHis.Row(0))
	ctx.Put(allClip)
	ctx.Put(clipHis)

	sense := m.Sensor.Forward(ctx, cat)
	ctx.Put(cat)

	spliced := ctx.Get(L, hidden)
	copy(spliced.Data, decoded.Data)
	offset := cfg.SensorSpliceOffset
	for i := 0; i < frames; i++ {
		copy(spliced.Row(offset+i), sense.Row(i))
	}
	ctx.Put(decoded)

	sensors := m.SensorHead.Forward(ctx, sense)
	ctx.Put(sense)

	logits := m.Head.Forward(ctx, spliced)

	upsampled := ctx.Get(1, hidden)
	m.Upsampling.Forward(ctx, futureB, upsampled)
	ctx.Put(futureB)
	future := make([]float32, hidden)
	copy(future, upsampled.Data)
	ctx.Put(upsampled)

	return &StepOutput{
		Encoded: encoded,
		Logits:  logits,
		Future:  future,
		Sensors: sensors,
		Decoded: spliced,
	}, nil
}
