// Package config holds the run configuration for imagematch. A Config is
// built once from defaults, an optional YAML file, IMAGEMATCH_* environment
// variables and command-line flags, validated, and then passed by value to
// every component.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Preprocessing strategies.
const (
	PreprocessCenterCrop = "center-crop"
	PreprocessResize     = "resize"
)

// Inference devices.
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Config is the full run configuration.
type Config struct {
	Threshold       float64  `mapstructure:"threshold" yaml:"threshold"`
	TopK            int      `mapstructure:"top_k" yaml:"top_k"`
	MaxResults      int      `mapstructure:"max_results" yaml:"max_results"`
	MaxTargetImages int      `mapstructure:"max_target_images" yaml:"max_target_images"`
	Extensions      []string `mapstructure:"extensions" yaml:"extensions"`
	ExcludedDirs    []string `mapstructure:"excluded_dirs" yaml:"excluded_dirs"`

	Image ImageConfig `mapstructure:"image" yaml:"image"`
	Model ModelConfig `mapstructure:"model" yaml:"model"`

	Workers        int `mapstructure:"workers" yaml:"workers"`
	QueryBatchSize int `mapstructure:"query_batch_size" yaml:"query_batch_size"`
	StatsTopN      int `mapstructure:"stats_top_n" yaml:"stats_top_n"`

	Database    string `mapstructure:"database" yaml:"database"`
	SaveHistory bool   `mapstructure:"save_history" yaml:"save_history"`
	ReportDir   string `mapstructure:"report_dir" yaml:"report_dir"`
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"`

	Debug   bool   `mapstructure:"debug" yaml:"debug"`
	LogFile string `mapstructure:"logfile" yaml:"logfile"`
}

// ImageConfig holds loader limits and preprocessing geometry.
type ImageConfig struct {
	MaxFileBytes int64  `mapstructure:"max_file_bytes" yaml:"max_file_bytes"`
	MaxDimension int    `mapstructure:"max_dimension" yaml:"max_dimension"`
	Preprocess   string `mapstructure:"preprocess" yaml:"preprocess"`
	InputSize    int    `mapstructure:"input_size" yaml:"input_size"`
	ResizeSize   int    `mapstructure:"resize_size" yaml:"resize_size"`
	ProbeExif    bool   `mapstructure:"probe_exif" yaml:"probe_exif"`
}

// ModelConfig describes the frozen backbone network.
type ModelConfig struct {
	Path        string `mapstructure:"path" yaml:"path"`
	ConfigPath  string `mapstructure:"config" yaml:"config"`
	OutputLayer string `mapstructure:"output_layer" yaml:"output_layer"`
	Dim         int    `mapstructure:"dim" yaml:"dim"`
	Device      string `mapstructure:"device" yaml:"device"`
}

// DefaultExtensions is the recognized image extension set.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tiff", ".webp"}

// DefaultConfig returns a Config with the stock settings.
func DefaultConfig() Config {
	return Config{
		Threshold:    0.87,
		TopK:         5,
		Extensions:   append([]string(nil), DefaultExtensions...),
		ExcludedDirs: []string{".nuxt/dist", "node_modules"},
		Image: ImageConfig{
			MaxFileBytes: 50 * 1024 * 1024,
			MaxDimension: 10000,
			Preprocess:   PreprocessCenterCrop,
			InputSize:    224,
			ResizeSize:   256,
		},
		Model: ModelConfig{
			Path:   "resnet50.onnx",
			Dim:    2048,
			Device: DeviceCPU,
		},
		QueryBatchSize: 16,
		StatsTopN:      10,
		SaveHistory:    true,
	}
}

// SetDefaults registers every default on v so env vars and config files
// can override individual keys.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("threshold", d.Threshold)
	v.SetDefault("top_k", d.TopK)
	v.SetDefault("max_results", d.MaxResults)
	v.SetDefault("max_target_images", d.MaxTargetImages)
	v.SetDefault("extensions", d.Extensions)
	v.SetDefault("excluded_dirs", d.ExcludedDirs)
	v.SetDefault("image.max_file_bytes", d.Image.MaxFileBytes)
	v.SetDefault("image.max_dimension", d.Image.MaxDimension)
	v.SetDefault("image.preprocess", d.Image.Preprocess)
	v.SetDefault("image.input_size", d.Image.InputSize)
	v.SetDefault("image.resize_size", d.Image.ResizeSize)
	v.SetDefault("image.probe_exif", d.Image.ProbeExif)
	v.SetDefault("model.path", d.Model.Path)
	v.SetDefault("model.config", d.Model.ConfigPath)
	v.SetDefault("model.output_layer", d.Model.OutputLayer)
	v.SetDefault("model.dim", d.Model.Dim)
	v.SetDefault("model.device", d.Model.Device)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("query_batch_size", d.QueryBatchSize)
	v.SetDefault("stats_top_n", d.StatsTopN)
	v.SetDefault("database", d.Database)
	v.SetDefault("save_history", d.SaveHistory)
	v.SetDefault("report_dir", d.ReportDir)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("logfile", d.LogFile)
}

// NewViper returns a viper instance with defaults and IMAGEMATCH_* env
// bindings (image.max_dimension -> IMAGEMATCH_IMAGE_MAX_DIMENSION).
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("IMAGEMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from v and returns a validated Config.
func Load(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Extensions = NormalizeExtensions(cfg.Extensions)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromFile reads a specific YAML file on top of the defaults.
func LoadFromFile(path string) (Config, error) {
	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Load(v)
}

// NormalizeExtensions lowercases extensions and adds the leading dot.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// Validate checks the configuration and reports every invalid field.
func Validate(cfg Config) error {
	var errs []string

	if cfg.Threshold < -1 || cfg.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("threshold: must be between -1 and 1, got %f", cfg.Threshold))
	}
	if cfg.TopK <= 0 {
		errs = append(errs, fmt.Sprintf("top_k: must be positive, got %d", cfg.TopK))
	}
	if cfg.MaxResults < 0 {
		errs = append(errs, "max_results: must be non-negative (0 = unlimited)")
	}
	if cfg.MaxTargetImages < 0 {
		errs = append(errs, "max_target_images: must be non-negative (0 = unlimited)")
	}
	if len(cfg.Extensions) == 0 {
		errs = append(errs, "extensions: at least one extension is required")
	}

	if cfg.Image.MaxFileBytes <= 0 {
		errs = append(errs, "image.max_file_bytes: must be positive")
	}
	if cfg.Image.MaxDimension <= 0 {
		errs = append(errs, "image.max_dimension: must be positive")
	}
	validPreprocess := map[string]bool{PreprocessCenterCrop: true, PreprocessResize: true}
	if !validPreprocess[cfg.Image.Preprocess] {
		errs = append(errs, fmt.Sprintf("image.preprocess: unsupported strategy %q (supported: center-crop, resize)", cfg.Image.Preprocess))
	}
	if cfg.Image.InputSize <= 0 {
		errs = append(errs, "image.input_size: must be positive")
	}
	if cfg.Image.Preprocess == PreprocessCenterCrop && cfg.Image.ResizeSize < cfg.Image.InputSize {
		errs = append(errs, fmt.Sprintf("image.resize_size: must be >= input_size (%d), got %d", cfg.Image.InputSize, cfg.Image.ResizeSize))
	}

	if cfg.Model.Dim <= 0 {
		errs = append(errs, "model.dim: must be positive")
	}
	validDevices := map[string]bool{DeviceCPU: true, DeviceCUDA: true}
	if !validDevices[cfg.Model.Device] {
		errs = append(errs, fmt.Sprintf("model.device: unsupported device %q (supported: cpu, cuda)", cfg.Model.Device))
	}

	if cfg.Workers < 0 {
		errs = append(errs, "workers: must be non-negative (0 = auto)")
	}
	if cfg.QueryBatchSize <= 0 {
		errs = append(errs, "query_batch_size: must be positive")
	}
	if cfg.StatsTopN < 0 {
		errs = append(errs, "stats_top_n: must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
