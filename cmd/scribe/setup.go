package main

import (
	"fmt"
	"runtime"

	"github.com/23skdu/dashcam-scribe/internal/config"
	"github.com/23skdu/dashcam-scribe/internal/logger"
	"github.com/23skdu/dashcam-scribe/internal/model"
	"github.com/23skdu/dashcam-scribe/internal/monitoring"
	"github.com/23skdu/dashcam-scribe/internal/vocab"
)

// setup applies the shared flags: log sink, worker count and the
// optional monitoring listener.
func setup(cfg *config.Config) {
	logger.Setup(logLevel, logFormat)
	if cfg.Threads > 0 {
		runtime.GOMAXPROCS(cfg.Threads)
	}
	if metricsAddr != "" {
		go func() {
			if err := monitoring.New().Serve(metricsAddr); err != nil {
				logger.Log.Error("monitoring listener stopped", "error", err)
			}
		}()
	}
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// loadModel builds the captioning model from the shared flags. The
// vocabulary decides the projection head width, overriding whatever
// vocab_size the experiment file carries.
func loadModel(cfg *config.Config) (*model.Model, *vocab.Vocab, error) {
	if vocabPath == "" {
		return nil, nil, fmt.Errorf("--vocab is required")
	}
	voc, err := vocab.Load(vocabPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load vocabulary: %w", err)
	}
	cfg.VocabSize = voc.Size()

	if checkpointPath == "" {
		logger.Log.Warn("no checkpoint given, initializing random weights", "seed", seed)
		m, err := model.New(cfg, seed)
		if err != nil {
			return nil, nil, fmt.Errorf("init model: %w", err)
		}
		return m, voc, nil
	}
	m, err := model.Load(cfg, checkpointPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load checkpoint %s: %w", checkpointPath, err)
	}
	return m, voc, nil
}
