// Package config loads the YAML training configuration consumed by the
// loss functions: loss selection, per-term weights, the adc threshold and
// the run bookkeeping fields (checkpoint directory, dataset paths).
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DataPrepType selects how training images were prepared.
type DataPrepType string

const (
	PrepStandard                DataPrepType = "standard"
	PrepReflection              DataPrepType = "reflection"
	PrepReflectionSeparateMasks DataPrepType = "reflection_separate_masks"
	PrepGapDistance             DataPrepType = "gap_distance"
)

// Config is the parsed training configuration. Optional loss weight fields
// default to 0, which disables the corresponding loss term.
type Config struct {
	Name           string       `yaml:"name"`
	DataPath       string       `yaml:"data_path"`
	VmapPath       string       `yaml:"vmap_path"`
	CheckpointsDir string       `yaml:"checkpoints_dir"`
	DetProps       string       `yaml:"det_props"`
	PixelLayout    string       `yaml:"pixel_layout"`
	Device         string       `yaml:"device"`
	MaxNumWorkers  int          `yaml:"max_num_workers"`
	DataPrepType   DataPrepType `yaml:"data_prep_type"`

	Scalefactors   []float64 `yaml:"scalefactors"`
	NFeatsIn       int       `yaml:"n_feats_in"`
	NFeatsOut      int       `yaml:"n_feats_out"`
	MaxDatasetSize int       `yaml:"max_dataset_size"`
	BatchSize      int       `yaml:"batch_size"`
	Epochs         int       `yaml:"epochs"`
	InitialLR      float64   `yaml:"initial_lr"`
	LRDecayIter    int       `yaml:"lr_decay_iter"`

	LossFunc     string  `yaml:"loss_func"`
	AdcThreshold float64 `yaml:"adc_threshold"`

	LossInfillZeroWeight    float64 `yaml:"loss_infill_zero_weight"`
	LossInfillNonzeroWeight float64 `yaml:"loss_infill_nonzero_weight"`
	LossActiveZeroWeight    float64 `yaml:"loss_active_zero_weight"`
	LossActiveNonzeroWeight float64 `yaml:"loss_active_nonzero_weight"`
	LossInfillWeight        float64 `yaml:"loss_infill_weight"`
	LossActiveWeight        float64 `yaml:"loss_active_weight"`
	LossInfillSumWeight     float64 `yaml:"loss_infill_sum_weight"`
	LossInfillChamferWeight float64 `yaml:"loss_infill_chamfer_weight"`

	LossXGapsAdcWeight    float64 `yaml:"loss_x_gaps_adc_weight"`
	LossXGapsNpixelWeight float64 `yaml:"loss_x_gaps_npixel_weight"`
	LossZGapsAdcWeight    float64 `yaml:"loss_z_gaps_adc_weight"`
	LossZGapsNpixelWeight float64 `yaml:"loss_z_gaps_npixel_weight"`

	LossXPlanesAdcWeight    float64 `yaml:"loss_x_planes_adc_weight"`
	LossXPlanesNpixelWeight float64 `yaml:"loss_x_planes_npixel_weight"`
	LossZPlanesAdcWeight    float64 `yaml:"loss_z_planes_adc_weight"`
	LossZPlanesNpixelWeight float64 `yaml:"loss_z_planes_npixel_weight"`
}

var defaults = map[string]any{
	"device":          "cuda:0",
	"max_num_workers": 4,
}

var mandatoryFields = []string{
	"vmap_path", "data_path",
	"data_prep_type",
	"scalefactors",
	"n_feats_in", "n_feats_out",
	"max_dataset_size",
	"batch_size",
	"initial_lr",
	"loss_func",
	"epochs",
	"lr_decay_iter",
	"loss_infill_zero_weight",
	"loss_infill_nonzero_weight",
	"loss_active_zero_weight",
	"loss_active_nonzero_weight",
	"checkpoints_dir",
	"name",
}

// Load reads a YAML config file, applies overrides on top of the raw
// document, checks mandatory fields and fills defaults. Overrides use the
// YAML field names.
func Load(path string, overrides map[string]any) (*Config, error) {
	log.Printf("Reading config from %s", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	doc := make(map[string]any)
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	for field, val := range overrides {
		doc[field] = val
	}

	var missing []string
	for _, field := range mandatoryFields {
		if _, ok := doc[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing mandatory fields %v in config file at %s", missing, path)
	}

	for field, val := range defaults {
		if _, ok := doc[field]; !ok {
			doc[field] = val
		}
	}

	merged, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encoding config: %w", err)
	}

	conf := &Config{}
	if err := yaml.Unmarshal(merged, conf); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	switch conf.DataPrepType {
	case PrepStandard, PrepReflection, PrepReflectionSeparateMasks, PrepGapDistance:
	default:
		return nil, fmt.Errorf("data_prep_type=%s not recognised", conf.DataPrepType)
	}

	return conf, nil
}

// Override returns a copy of the config with apply's modifications, leaving
// the receiver untouched. Used to build loss variants weighted differently
// from the training loss.
func (c *Config) Override(apply func(*Config)) *Config {
	dup := *c
	dup.Scalefactors = append([]float64(nil), c.Scalefactors...)
	apply(&dup)
	return &dup
}

// PrepareCheckpointDir creates CheckpointsDir/Name and copies the config
// file into it, returning the directory path.
func (c *Config) PrepareCheckpointDir(configPath string) (string, error) {
	dir := filepath.Join(c.CheckpointsDir, c.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating checkpoint dir: %w", err)
	}

	raw, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("reading config file for checkpoint copy: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(configPath))
	if err := os.WriteFile(dest, raw, 0o644); err != nil {
		return "", fmt.Errorf("copying config into checkpoint dir: %w", err)
	}

	return dir, nil
}
