package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SensorStat holds the fixed normalization statistics for one physical
// quantity. Ground truth is normalized as (gt - Mean) / Std before the
// regression loss. The values were precomputed on the training corpus
// and are not recoverable from the data shipped with a checkpoint.
type SensorStat struct {
	Mean float64 `yaml:"mean"`
	Std  float64 `yaml:"std"`
}

type SensorStats struct {
	Speed     SensorStat `yaml:"speed"`
	Accel     SensorStat `yaml:"accel"`
	Course    SensorStat `yaml:"course"`
	CourseVel SensorStat `yaml:"course_vel"`
}

type Config struct {
	// Transformer geometry
	HiddenSize       int `yaml:"hidden_size"`
	Heads            int `yaml:"heads"`
	EncoderLayers    int `yaml:"encoder_layers"`
	DecoderLayers    int `yaml:"decoder_layers"`
	SensorLayers     int `yaml:"sensor_layers"`
	TSLayers         int `yaml:"ts_layers"`
	RSAModes         int `yaml:"rsa_modes"`
	IntermediateSize int `yaml:"intermediate_size"`

	// Clip / time-series path. Raw video features arrive at HiddenSize
	// width and are adjusted down to ClipFeatureSize before both the
	// embeddings and the time-series module consume them.
	ClipFeatureSize    int `yaml:"clip_feature_size"`
	TSIntermediateSize int `yaml:"ts_intermediate_size"`

	// Embedding table
	WordVecSize       int  `yaml:"word_vec_size"`
	TypeVocabSize     int  `yaml:"type_vocab_size"`
	VocabSize         int  `yaml:"vocab_size"`
	TieWordEmbeddings bool `yaml:"tie_word_embeddings"`

	// Segment layout. MaxVideoLen counts the [CLS] and [SEP] boundary
	// positions; sequence length is MaxVideoLen + MaxTextLen.
	MaxVideoLen int `yaml:"max_video_len"`
	MaxTextLen  int `yaml:"max_text_len"`

	// Sensor head
	SensorFrames       int `yaml:"sensor_frames"`
	SensorSpliceOffset int `yaml:"sensor_splice_offset"`

	// Loss composition
	CaptionLossWeight float64     `yaml:"caption_loss_weight"`
	SensorLossWeight  float64     `yaml:"sensor_loss_weight"`
	LabelSmoothing    float64     `yaml:"label_smoothing"` // carried, unused
	Sensor            SensorStats `yaml:"sensor"`

	// Numerics
	LayerNormEps     float32 `yaml:"layer_norm_eps"`
	InitializerRange float64 `yaml:"initializer_range"`

	// KNN datastore (decoding side channel). DstoreSize zero sizes the
	// store to the batch being decoded.
	DstoreSize int    `yaml:"dstore_size"`
	DstoreDir  string `yaml:"dstore_dir"`
	FlightAddr string `yaml:"flight_addr"`

	// Runtime
	Threads int `yaml:"threads"` // 0 means runtime.NumCPU
}

// SeqLen is the fixed per-segment sequence length L.
func (c *Config) SeqLen() int {
	return c.MaxVideoLen + c.MaxTextLen
}

// HeadDim is the per-head width of the main attention blocks.
func (c *Config) HeadDim() int {
	return c.HiddenSize / c.Heads
}

func (c *Config) Validate() error {
	if c.HiddenSize <= 0 {
		return fmt.Errorf("invalid hidden_size: %d (must be positive)", c.HiddenSize)
	}
	if c.Heads <= 0 {
		return fmt.Errorf("invalid heads: %d (must be positive)", c.Heads)
	}
	if c.HiddenSize%c.Heads != 0 {
		return fmt.Errorf("hidden_size (%d) is not a multiple of heads (%d)", c.HiddenSize, c.Heads)
	}
	if c.EncoderLayers <= 0 {
		return fmt.Errorf("invalid encoder_layers: %d (must be positive)", c.EncoderLayers)
	}
	if c.DecoderLayers <= 0 {
		return fmt.Errorf("invalid decoder_layers: %d (must be positive)", c.DecoderLayers)
	}
	if c.SensorLayers <= 0 {
		return fmt.Errorf("invalid sensor_layers: %d (must be positive)", c.SensorLayers)
	}
	if c.TSLayers <= 0 {
		return fmt.Errorf("invalid ts_layers: %d (must be positive)", c.TSLayers)
	}
	if c.RSAModes < 2 {
		return fmt.Errorf("invalid rsa_modes: %d (the clip window needs a middle frame)", c.RSAModes)
	}
	if c.IntermediateSize <= 0 {
		return fmt.Errorf("invalid intermediate_size: %d (must be positive)", c.IntermediateSize)
	}
	if c.ClipFeatureSize <= 0 {
		return fmt.Errorf("invalid clip_feature_size: %d (must be positive)", c.ClipFeatureSize)
	}
	if c.TSIntermediateSize <= 0 {
		return fmt.Errorf("invalid ts_intermediate_size: %d (must be positive)", c.TSIntermediateSize)
	}
	if c.WordVecSize <= 0 {
		return fmt.Errorf("invalid word_vec_size: %d (must be positive)", c.WordVecSize)
	}
	if c.TypeVocabSize <= 0 {
		return fmt.Errorf("invalid type_vocab_size: %d (must be positive)", c.TypeVocabSize)
	}
	if c.VocabSize < 7 {
		return fmt.Errorf("invalid vocab_size: %d (must cover the 7 reserved ids)", c.VocabSize)
	}
	if c.TieWordEmbeddings && c.WordVecSize != c.HiddenSize {
		return fmt.Errorf("tie_word_embeddings requires word_vec_size (%d) == hidden_size (%d)",
			c.WordVecSize, c.HiddenSize)
	}
	// [CLS] + the clip window + [SEP]
	if c.MaxVideoLen < c.RSAModes+2 {
		return fmt.Errorf("invalid max_video_len: %d (must fit [CLS], %d clip frames and [SEP])",
			c.MaxVideoLen, c.RSAModes)
	}
	if c.MaxTextLen < 3 {
		return fmt.Errorf("invalid max_text_len: %d (must fit [BOS] word [EOS])", c.MaxTextLen)
	}
	if c.SensorFrames != c.RSAModes+1 {
		return fmt.Errorf("sensor_frames (%d) must equal rsa_modes+1 (%d): the sensor stream reads the clip window plus its history row",
			c.SensorFrames, c.RSAModes+1)
	}
	if c.SensorSpliceOffset < 0 || c.SensorSpliceOffset+c.SensorFrames > c.SeqLen() {
		return fmt.Errorf("sensor splice [%d, %d) out of sequence range [0, %d)",
			c.SensorSpliceOffset, c.SensorSpliceOffset+c.SensorFrames, c.SeqLen())
	}
	if c.LayerNormEps <= 0 {
		return fmt.Errorf("invalid layer_norm_eps: %g (must be positive)", c.LayerNormEps)
	}
	if c.DstoreSize < 0 {
		return fmt.Errorf("invalid dstore_size: %d (must be non-negative)", c.DstoreSize)
	}
	return nil
}

func Default() Config {
	return Config{
		HiddenSize:       768,
		Heads:            12,
		EncoderLayers:    2,
		DecoderLayers:    5,
		SensorLayers:     3,
		TSLayers:         2,
		RSAModes:         3,
		IntermediateSize: 768,

		ClipFeatureSize:    384,
		TSIntermediateSize: 768,

		WordVecSize:   300,
		TypeVocabSize: 2,
		VocabSize:     581,

		MaxVideoLen: 8,
		MaxTextLen:  23,

		SensorFrames:       4,
		SensorSpliceOffset: 24,

		CaptionLossWeight: 0.9,
		SensorLossWeight:  0.05,

		Sensor: SensorStats{
			Speed:     SensorStat{Mean: 6.592310560518758, Std: 6.943259466752163},
			Accel:     SensorStat{Mean: -0.032466484184198605, Std: 1.0128755278649304},
			Course:    SensorStat{Mean: 179.07880361238463, Std: 105.43048660106768},
			CourseVel: SensorStat{Mean: 0.10629827308128925, Std: 7.364545291989854},
		},

		LayerNormEps:     1e-12,
		InitializerRange: 0.02,
	}
}

// Load reads a YAML experiment file over the defaults. Unset keys keep
// their default values; flags in cmd/ override both.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
