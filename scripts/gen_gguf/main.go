// Generates a smoke-test checkpoint plus a matching vocabulary so the
// caption pipeline can run end to end without a converted training
// run. The default geometry is deliberately tiny.
package main

import (
	"flag"
	"log"
	"path/filepath"

	"github.com/23skdu/dashcam-scribe/internal/config"
	"github.com/23skdu/dashcam-scribe/internal/logger"
	"github.com/23skdu/dashcam-scribe/internal/model"
	"github.com/23skdu/dashcam-scribe/internal/vocab"
)

func main() {
	outDir := flag.String("out", ".", "Output directory for model.gguf and vocab.json")
	configPath := flag.String("config", "", "Model config YAML (smoke geometry when empty)")
	seed := flag.Int64("seed", 42, "Weight init seed")
	flag.Parse()

	logger.Setup("info", "console")

	cfg := smokeConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	words := wordList()
	voc, err := vocab.New(words)
	if err != nil {
		log.Fatalf("build vocabulary: %v", err)
	}
	cfg.VocabSize = voc.Size()

	m, err := model.New(&cfg, *seed)
	if err != nil {
		log.Fatalf("init model: %v", err)
	}

	modelPath := filepath.Join(*outDir, "model.gguf")
	if err := m.Save(modelPath); err != nil {
		log.Fatalf("save checkpoint: %v", err)
	}
	vocabPath := filepath.Join(*outDir, "vocab.json")
	if err := voc.Save(vocabPath); err != nil {
		log.Fatalf("save vocabulary: %v", err)
	}
	log.Printf("wrote %s and %s (vocab %d, hidden %d)", modelPath, vocabPath, voc.Size(), cfg.HiddenSize)
}

func smokeConfig() config.Config {
	cfg := config.Default()
	cfg.HiddenSize = 32
	cfg.Heads = 4
	cfg.EncoderLayers = 1
	cfg.DecoderLayers = 2
	cfg.SensorLayers = 1
	cfg.TSLayers = 1
	cfg.RSAModes = 3
	cfg.SensorFrames = 4
	cfg.IntermediateSize = 32
	cfg.ClipFeatureSize = 16
	cfg.TSIntermediateSize = 16
	cfg.WordVecSize = 32
	cfg.MaxVideoLen = 8
	cfg.MaxTextLen = 12
	cfg.SensorSpliceOffset = 8
	return cfg
}

func wordList() []string {
	return []string{
		vocab.PadToken, vocab.ClsToken, vocab.SepToken, vocab.VidToken,
		vocab.BosToken, vocab.EosToken, vocab.UnkToken,
		"the", "car", "turns", "left", "right", "lane", "stops", "at",
		"a", "red", "light", "accelerates", "merges", "onto", "highway",
		"slows", "down", "for", "crossing", "vehicle", "ahead",
		"intersection", "keeps", "straight", "speed",
	}
}
