// Command chemgo-train fits one single-task model per task column of a CSV
// dataset and reports train/valid scores. Every knob comes from an explicit
// YAML configuration file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/hupe1980/chemgo"
	"github.com/hupe1980/chemgo/archive"
	s3blob "github.com/hupe1980/chemgo/blobstore/s3"
	"github.com/hupe1980/chemgo/evaluate"
	"github.com/hupe1980/chemgo/loader"
	"github.com/hupe1980/chemgo/model/logreg"
	"github.com/hupe1980/chemgo/multitask"
	"github.com/hupe1980/chemgo/transform"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "chemgo-train",
	Short: "Train per-task models on a multitask CSV dataset",
	Long: `chemgo-train loads a CSV of numeric features and task label columns,
splits it into train and valid sets, fits one model per task, and
reports the configured metrics on both splits.

All settings come from the YAML file passed via --config.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "train.yaml", "path to the training configuration")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *TrainConfig) error {
	logger := newLogger(cfg.Logging)

	// Ingest.
	l, err := loader.NewCSVLoader(loader.Config{
		IDColumn:       cfg.Data.IDColumn,
		FeatureColumns: cfg.Data.FeatureColumns,
		Tasks:          cfg.TaskNames(),
		ShardSize:      cfg.Data.ShardSize,
		Options:        []chemgo.Option{chemgo.WithLogger(logger)},
	})
	if err != nil {
		return err
	}

	ds, err := l.Load(cfg.Data.CSV, cfg.Data.Dir)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "dataset loaded", "csv", cfg.Data.CSV, "rows", ds.Len(), "shards", ds.NumShards())

	// Split.
	train, valid, err := ds.Split(cfg.Split.TrainDir, cfg.Split.ValidDir, cfg.Split.TrainRows)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "dataset split", "train_rows", train.Len(), "valid_rows", valid.Len())

	// Optional label normalization, fit on the train split only.
	var transformers []transform.Transformer
	if cfg.Model.NormalizeY {
		stats, err := train.Statistics()
		if err != nil {
			return err
		}
		norm, err := transform.NewNormalization(stats, false, true)
		if err != nil {
			return err
		}
		transformers = append(transformers, norm)

		if train, err = rewriteTransformed(train, cfg.Split.TrainDir+"-norm", transformers); err != nil {
			return err
		}
	}

	// Fit.
	router, err := multitask.New(multitask.Config{
		Tasks:   cfg.TaskNames(),
		Kinds:   cfg.TaskKinds(),
		Params:  cfg.Model.Params,
		Dir:     cfg.Model.Dir,
		Builder: logreg.Builder,
		Cache:   multitask.NewMemoryCache(),
		Workers: cfg.Model.Workers,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	if err := router.Fit(ctx, train); err != nil {
		return err
	}

	// Evaluate both splits.
	metrics := make([]evaluate.Metric, len(cfg.Metrics))
	for i, name := range cfg.Metrics {
		metrics[i], _ = metricByName(name)
	}

	for _, split := range []struct {
		name string
		ds   *chemgo.Dataset
	}{{"train", train}, {"valid", valid}} {
		scores, err := evaluate.NewEvaluator(router, split.ds, transformers).Compute(ctx, metrics...)
		if err != nil {
			return fmt.Errorf("evaluate %s: %w", split.name, err)
		}
		for _, s := range scores {
			logger.InfoContext(ctx, "scores",
				"split", split.name,
				"metric", s.Metric,
				"mean", s.Mean,
				"per_task", s.PerTask,
			)
		}
	}

	// Optional archival of the full loaded dataset.
	if cfg.Archive.Enabled() {
		if err := archiveDataset(ctx, cfg, ds, logger); err != nil {
			return err
		}
	}

	return nil
}

func newLogger(cfg LoggingConfig) *chemgo.Logger {
	level := slog.LevelInfo
	if cfg.Level == "debug" {
		level = slog.LevelDebug
	}
	if cfg.Format == "json" {
		return chemgo.NewJSONLogger(level)
	}
	return chemgo.NewTextLogger(level)
}

// rewriteTransformed materializes the dataset, applies the transformers, and
// writes the result as a new dataset under dir.
func rewriteTransformed(ds *chemgo.Dataset, dir string, transformers []transform.Transformer) (*chemgo.Dataset, error) {
	a, err := ds.ToArrays()
	if err != nil {
		return nil, err
	}
	if err := transform.Apply(a, transformers); err != nil {
		return nil, err
	}
	return chemgo.FromArrays(dir, a.X, a.Y, a.W, a.IDs, ds.TaskNames(), chemgo.WithShardSize(ds.ShardSize()))
}

func archiveDataset(ctx context.Context, cfg *TrainConfig, ds *chemgo.Dataset, logger *chemgo.Logger) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Archive.Region))
	if err != nil {
		return fmt.Errorf("aws config: %w", err)
	}

	store := s3blob.NewStore(awss3.NewFromConfig(awsCfg), cfg.Archive.Bucket, "")
	if err := archive.Archive(ctx, ds, store, cfg.Archive.Prefix, archive.Options{}); err != nil {
		return err
	}
	logger.InfoContext(ctx, "dataset archived", "bucket", cfg.Archive.Bucket, "prefix", cfg.Archive.Prefix)

	if cfg.Archive.CommitTable != "" {
		dataset := cfg.Archive.Dataset
		if dataset == "" {
			dataset = ds.ID()
		}
		cs := s3blob.NewCommitStore(dynamodb.NewFromConfig(awsCfg), cfg.Archive.CommitTable, dataset)
		version, err := cs.Commit(ctx, cfg.Archive.Prefix)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "archive committed", "dataset", dataset, "version", version)
	}

	return nil
}
