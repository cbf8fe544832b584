package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/23skdu/dashcam-scribe/internal/dataset"
	"github.com/23skdu/dashcam-scribe/internal/logger"
)

func evalCmd() *cli.Command {
	var (
		annotationsPath string
		featuresPath    string
	)

	return &cli.Command{
		Name:  "eval",
		Usage: "Report the captioning objective over an annotated batch",
		Flags: append(append(modelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "annotations",
				Usage:       "path to clip annotations JSON (with sensor readings)",
				Destination: &annotationsPath,
			},
			&cli.StringFlag{
				Name:        "features",
				Usage:       "path to extracted clip features JSON",
				Destination: &featuresPath,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setup(&cfg)
			if annotationsPath == "" || featuresPath == "" {
				return fmt.Errorf("--annotations and --features are required")
			}

			m, voc, err := loadModel(&cfg)
			if err != nil {
				return err
			}

			anns, err := dataset.LoadAnnotations(annotationsPath)
			if err != nil {
				return err
			}
			feats, err := dataset.LoadFeatures(featuresPath)
			if err != nil {
				return err
			}
			videos, err := dataset.BuildVideos(&cfg, voc, anns, feats)
			if err != nil {
				return err
			}
			batch, err := dataset.Collate(videos)
			if err != nil {
				return err
			}

			terms, outputs, err := m.ForwardSequence(batch.Inputs(), batch.Targets())
			if err != nil {
				return err
			}
			for _, step := range outputs {
				for _, out := range step {
					out.Release(m)
				}
			}

			logger.Log.Info("batch evaluated",
				"videos", len(videos), "steps", len(batch.Steps), "items", batch.Items())
			fmt.Printf("loss total=%.6f caption=%.6f future=%.6f sensor=%.6f\n",
				terms.Total, terms.Caption, terms.Future, terms.Sensor)
			return nil
		},
	}
}
