package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

const FileName = "config.toml"

type Config struct {
	Token     string `toml:"token" mapstructure:"token"`
	Host      string `toml:"host" mapstructure:"host"`
	Port      string `toml:"port" mapstructure:"port"`
	Libonnx   string `toml:"libonnx" mapstructure:"libonnx"`
	Workers   int    `toml:"workers" mapstructure:"workers"`
	RateLimit int    `toml:"rate_limit" mapstructure:"rate_limit"`

	MaxUploadMB int `toml:"max_upload_mb" mapstructure:"max_upload_mb"`

	ModelName      string `toml:"model_name" mapstructure:"model_name"`
	ModelUrl       string `toml:"model_url" mapstructure:"model_url"`
	ModelDir       string `toml:"model_dir" mapstructure:"model_dir"`
	ModelFileName  string `toml:"model_file_name" mapstructure:"model_file_name"`
	LabelsUrl      string `toml:"labels_url" mapstructure:"labels_url"`
	LabelsFileName string `toml:"labels_file_name" mapstructure:"labels_file_name"`

	// ImageSize of 0 means the size declared by the model's input shape.
	ImageSize  int      `toml:"image_size" mapstructure:"image_size"`
	Layout     string   `toml:"layout" mapstructure:"layout"`
	Preprocess string   `toml:"preprocess" mapstructure:"preprocess"`
	Resample   string   `toml:"resample" mapstructure:"resample"`
	Softmax    bool     `toml:"softmax" mapstructure:"softmax"`
	AutoOrient bool     `toml:"auto_orient" mapstructure:"auto_orient"`
	Formats    []string `toml:"formats" mapstructure:"formats"`
	CacheSize  int      `toml:"cache_size" mapstructure:"cache_size"`
	MaxPixels  int      `toml:"max_pixels" mapstructure:"max_pixels"`

	LogLevel string `toml:"log_level" mapstructure:"log_level"`
	LogFile  string `toml:"log_file" mapstructure:"log_file"`
}

var (
	Layouts     = []string{"auto", "nchw", "nhwc"}
	Preprocess  = []string{"tf", "torch", "caffe"}
	Resamplers  = []string{"nearest", "bilinear", "bicubic", "lanczos"}
	Formats     = []string{"jpeg", "png", "webp", "avif"}
	LogLevels   = []string{"debug", "info", "warn", "error"}
	errNotFound = errors.New("config file not found")
)

// Default returns the configuration used when no config file is present.
// The default model is MobileNetV2 from the ONNX model zoo, which takes
// ImageNet-normalized NCHW input and emits logits.
func Default() Config {
	return Config{
		Token:          "",
		Host:           "0.0.0.0",
		Port:           "8000",
		Workers:        1,
		RateLimit:      0,
		MaxUploadMB:    10,
		ModelName:      "MobileNetV2",
		ModelUrl:       "https://github.com/onnx/models/raw/main/validated/vision/classification/mobilenet/model/mobilenetv2-12.onnx",
		ModelDir:       "models",
		ModelFileName:  "mobilenetv2-12.onnx",
		LabelsUrl:      "https://storage.googleapis.com/download.tensorflow.org/data/imagenet_class_index.json",
		LabelsFileName: "imagenet_class_index.json",
		ImageSize:      0,
		Layout:         "auto",
		Preprocess:     "torch",
		Resample:       "bicubic",
		Softmax:        true,
		AutoOrient:     false,
		Formats:        []string{"jpeg", "png"},
		CacheSize:      128,
		MaxPixels:      89478485,
		LogLevel:       "info",
	}
}

var (
	cfg      = Default()
	loadOnce sync.Once
)

// C returns the process configuration, reading config.toml from the working
// directory on first use.
func C() Config {
	loadOnce.Do(func() {
		loaded, err := Load(FileName)
		if err != nil && !errors.Is(err, errNotFound) {
			panic(err)
		}
		if err == nil {
			cfg = loaded
		}
	})
	return cfg
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, fmt.Errorf("%w: %s", errNotFound, path)
		}
		return c, err
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// IsNotFound reports whether err came from Load on a missing file.
func IsNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

func (c Config) Validate() error {
	if !slices.Contains(Layouts, c.Layout) {
		return fmt.Errorf("layout must be one of %v, got %q", Layouts, c.Layout)
	}
	if !slices.Contains(Preprocess, c.Preprocess) {
		return fmt.Errorf("preprocess must be one of %v, got %q", Preprocess, c.Preprocess)
	}
	if !slices.Contains(Resamplers, c.Resample) {
		return fmt.Errorf("resample must be one of %v, got %q", Resamplers, c.Resample)
	}
	if !slices.Contains(LogLevels, c.LogLevel) {
		return fmt.Errorf("log_level must be one of %v, got %q", LogLevels, c.LogLevel)
	}
	if len(c.Formats) == 0 {
		return errors.New("formats must not be empty")
	}
	for _, f := range c.Formats {
		if !slices.Contains(Formats, f) {
			return fmt.Errorf("unsupported format %q", f)
		}
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.ImageSize < 0 {
		return fmt.Errorf("image_size must not be negative, got %d", c.ImageSize)
	}
	if c.MaxUploadMB < 1 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	if c.MaxPixels < 1 {
		return fmt.Errorf("max_pixels must be positive, got %d", c.MaxPixels)
	}
	if c.CacheSize < 0 || c.RateLimit < 0 {
		return errors.New("cache_size and rate_limit must not be negative")
	}
	return nil
}
