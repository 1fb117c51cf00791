package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Token       string `toml:"token" mapstructure:"token"`
	Host        string `toml:"host" mapstructure:"host"`
	Port        string `toml:"port" mapstructure:"port"`
	Libonnx     string `toml:"libonnx" mapstructure:"libonnx"`
	MaxUploadMB int64  `toml:"max_upload_mb" mapstructure:"max_upload_mb"`

	ModelDir       string  `toml:"model_dir" mapstructure:"model_dir"`
	ModelFileName  string  `toml:"model_file_name" mapstructure:"model_file_name"`
	ModelVersion   int     `toml:"model_version" mapstructure:"model_version"`
	ModelAlpha     float64 `toml:"model_alpha" mapstructure:"model_alpha"`
	ModelLayer     string  `toml:"model_layer" mapstructure:"model_layer"`
	IntraOpThreads int     `toml:"intra_op_threads" mapstructure:"intra_op_threads"`
}

// Default returns the configuration used when no config.toml is present.
// An empty ModelFileName means the variant's default weights file.
func Default() Config {
	return Config{
		Token:          "",
		Host:           "0.0.0.0",
		Port:           "8000",
		MaxUploadMB:    20,
		ModelDir:       "models",
		ModelVersion:   2,
		ModelAlpha:     1.0,
		ModelLayer:     "conv_preds",
		IntraOpThreads: 0,
	}
}

var (
	cfg      = Default()
	loadOnce sync.Once
)

func C() Config {
	loadOnce.Do(func() {
		if _, err := os.Stat("config.toml"); err == nil {
			loaded, err := Load("config.toml")
			if err != nil {
				panic(err)
			}
			cfg = loaded
		}
	})
	return cfg
}

// Load reads the TOML file at path over the defaults.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read config: %w", err)
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse config: %w", err)
	}
	return c, nil
}
