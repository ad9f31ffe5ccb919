package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/chemgo/evaluate"
	"github.com/hupe1980/chemgo/model"
)

// TrainConfig is the full configuration of one training run. All knobs live
// here; nothing is read from globals.
type TrainConfig struct {
	Data    DataConfig    `yaml:"data"`
	Split   SplitConfig   `yaml:"split"`
	Model   ModelConfig   `yaml:"model"`
	Metrics []string      `yaml:"metrics"`
	Archive ArchiveConfig `yaml:"archive"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig describes the input CSV and how to shard it.
type DataConfig struct {
	CSV            string       `yaml:"csv"`
	IDColumn       string       `yaml:"id_column"`
	FeatureColumns []string     `yaml:"feature_columns"`
	Tasks          []TaskConfig `yaml:"tasks"`
	Dir            string       `yaml:"dir"`
	ShardSize      int          `yaml:"shard_size"`
}

// TaskConfig names one label column and its task kind.
type TaskConfig struct {
	Name string         `yaml:"name"`
	Kind model.TaskKind `yaml:"kind"`
}

// SplitConfig is a head/tail train-valid split: the first TrainRows rows go
// to the train set, the rest to the valid set.
type SplitConfig struct {
	TrainRows int    `yaml:"train_rows"`
	TrainDir  string `yaml:"train_dir"`
	ValidDir  string `yaml:"valid_dir"`
}

// ModelConfig configures the per-task models and the router driving them.
type ModelConfig struct {
	Dir        string       `yaml:"dir"`
	Params     model.Params `yaml:"params"`
	Workers    int          `yaml:"workers"`
	NormalizeY bool         `yaml:"normalize_y"`
}

// ArchiveConfig optionally publishes the loaded dataset to S3 after
// training. A commit table name enables DynamoDB-backed commit pointers.
type ArchiveConfig struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	CommitTable string `yaml:"commit_table"`
	Dataset     string `yaml:"dataset"`
}

// Enabled reports whether an archive target is configured.
func (c ArchiveConfig) Enabled() bool { return c.Bucket != "" }

// LoggingConfig selects the log output format and level.
type LoggingConfig struct {
	Format string `yaml:"format"` // text (default) or json
	Level  string `yaml:"level"`  // info (default) or debug
}

// LoadConfig reads and validates a YAML training configuration.
func LoadConfig(path string) (*TrainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg TrainConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for completeness.
func (c *TrainConfig) Validate() error {
	if c.Data.CSV == "" {
		return errors.New("config: data.csv is required")
	}
	if len(c.Data.FeatureColumns) == 0 {
		return errors.New("config: data.feature_columns is required")
	}
	if len(c.Data.Tasks) == 0 {
		return errors.New("config: data.tasks is required")
	}
	for _, t := range c.Data.Tasks {
		if t.Name == "" {
			return errors.New("config: task name is required")
		}
		if t.Kind == 0 {
			return fmt.Errorf("config: task %s: kind is required", t.Name)
		}
	}
	if c.Data.Dir == "" {
		return errors.New("config: data.dir is required")
	}
	if c.Split.TrainRows <= 0 {
		return errors.New("config: split.train_rows must be positive")
	}
	if c.Split.TrainDir == "" || c.Split.ValidDir == "" {
		return errors.New("config: split.train_dir and split.valid_dir are required")
	}
	if c.Model.Dir == "" {
		return errors.New("config: model.dir is required")
	}
	for _, name := range c.Metrics {
		if _, err := metricByName(name); err != nil {
			return err
		}
	}
	if c.Archive.Enabled() && c.Archive.Prefix == "" {
		return errors.New("config: archive.prefix is required when archiving")
	}
	return nil
}

// TaskNames returns the task column names in configuration order.
func (c *TrainConfig) TaskNames() []string {
	names := make([]string, len(c.Data.Tasks))
	for i, t := range c.Data.Tasks {
		names[i] = t.Name
	}
	return names
}

// TaskKinds returns the task kind lookup the router expects.
func (c *TrainConfig) TaskKinds() map[string]model.TaskKind {
	kinds := make(map[string]model.TaskKind, len(c.Data.Tasks))
	for _, t := range c.Data.Tasks {
		kinds[t.Name] = t.Kind
	}
	return kinds
}

func metricByName(name string) (evaluate.Metric, error) {
	switch name {
	case "roc_auc_score":
		return evaluate.ROCAUC(), nil
	case "accuracy_score":
		return evaluate.Accuracy(), nil
	case "rms_error":
		return evaluate.RMSE(), nil
	case "r2_score":
		return evaluate.RSquared(), nil
	default:
		return evaluate.Metric{}, fmt.Errorf("config: unknown metric %q", name)
	}
}
