package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/23skdu/dashcam-scribe/internal/dataset"
	"github.com/23skdu/dashcam-scribe/internal/dstore"
	"github.com/23skdu/dashcam-scribe/internal/logger"
	"github.com/23skdu/dashcam-scribe/internal/translator"
)

func captionCmd() *cli.Command {
	var (
		annotationsPath string
		featuresPath    string
		outPath         string
		dstoreDir       string
		dstoreSize      int64
		flightAddr      string
		flightBatch     int64
	)

	return &cli.Command{
		Name:  "caption",
		Usage: "Greedy-decode captions for a batch of extracted clip features",
		Flags: append(append(modelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "annotations",
				Usage:       "path to clip annotations JSON",
				Destination: &annotationsPath,
			},
			&cli.StringFlag{
				Name:        "features",
				Usage:       "path to extracted clip features JSON",
				Destination: &featuresPath,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output path for decoded paragraphs JSON",
				Value:       "captions.json",
				Destination: &outPath,
			},
			&cli.StringFlag{
				Name:        "dstore-dir",
				Usage:       "build the retrieval datastore under this directory",
				Destination: &dstoreDir,
			},
			&cli.Int64Flag{
				Name:        "dstore-size",
				Usage:       "datastore record capacity (0 sizes it to the batch)",
				Destination: &dstoreSize,
			},
			&cli.StringFlag{
				Name:        "flight-addr",
				Usage:       "export the datastore to this Arrow Flight endpoint",
				Destination: &flightAddr,
			},
			&cli.Int64Flag{
				Name:        "flight-batch",
				Usage:       "records per Flight batch",
				Value:       1024,
				Destination: &flightBatch,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setup(&cfg)

			// Flags override the experiment file.
			if dstoreDir == "" {
				dstoreDir = cfg.DstoreDir
			}
			if dstoreSize == 0 {
				dstoreSize = int64(cfg.DstoreSize)
			}
			if flightAddr == "" {
				flightAddr = cfg.FlightAddr
			}
			if annotationsPath == "" || featuresPath == "" {
				return fmt.Errorf("--annotations and --features are required")
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

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
			logger.Log.Info("batch collated",
				"videos", len(videos), "steps", len(batch.Steps), "items", batch.Items())

			var store *dstore.Store
			if dstoreDir != "" {
				capacity := dstoreSize
				if capacity == 0 {
					// Greedy decoding appends one record per text
					// position of every batch row.
					capacity = int64(len(batch.Steps) * batch.Items() * cfg.MaxTextLen)
				}
				store, err = dstore.Create(dstoreDir, capacity, cfg.HiddenSize, voc.Size())
				if err != nil {
					return err
				}
				defer func() {
					if err := store.Close(); err != nil {
						logger.Log.Error("close datastore", "error", err)
					}
				}()
			}

			decoded, err := translator.New(m, store).TranslateBatch(ctx, batch)
			if err != nil {
				return err
			}

			paragraphs, err := translator.Paragraphs(voc, videos, batch, decoded)
			if err != nil {
				return err
			}
			if err := translator.WriteParagraphs(outPath, paragraphs); err != nil {
				return err
			}
			logger.Log.Info("captions written", "path", outPath, "videos", len(paragraphs))

			if store != nil && flightAddr != "" {
				if err := exportStore(ctx, store, flightAddr, int(flightBatch)); err != nil {
					return fmt.Errorf("flight export: %w", err)
				}
			}
			return nil
		},
	}
}

func exportStore(ctx context.Context, store *dstore.Store, addr string, batch int) error {
	sink, err := dstore.NewFlightSink(ctx, addr, dstore.ExportSchema(store.KeyDim(), store.ValDim()))
	if err != nil {
		return err
	}
	if err := store.Export(ctx, sink, batch); err != nil {
		_ = sink.Close()
		return err
	}
	return sink.Close()
}
