package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process configuration. Every key can be set from the
// environment; a config file, when given, provides the same keys.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Port     string `mapstructure:"app_port"`
	LogLevel string `mapstructure:"app_log_level"`

	ModelDir     string `mapstructure:"model_dir"`
	ModelName    string `mapstructure:"model_name"`
	ModelExt     string `mapstructure:"model_ext"`
	MetadataPath string `mapstructure:"model_metadata"`
	TopK         int    `mapstructure:"model_top_k"`

	EngineKind       string `mapstructure:"engine_kind"`
	EnginePersistent bool   `mapstructure:"engine_persistent"`
	EngineThreads    int    `mapstructure:"engine_threads"`
	OnnxLibraryPath  string `mapstructure:"onnx_library_path"`

	StatsdAddr          string  `mapstructure:"statsd_addr"`
	MetricsSamplingRate float64 `mapstructure:"metrics_sampling_rate"`
}

var defaults = map[string]interface{}{
	"app_name":              "tflite-handler",
	"app_port":              "8080",
	"app_log_level":         "INFO",
	"model_dir":             "models",
	"model_name":            "model",
	"model_ext":             "tflite",
	"model_metadata":        "",
	"model_top_k":           5,
	"engine_kind":           "tflite",
	"engine_persistent":     false,
	"engine_threads":        0,
	"onnx_library_path":     "",
	"statsd_addr":           "",
	"metrics_sampling_rate": 1.0,
}

// env names differ from the keys only for the listen port
var envNames = map[string]string{
	"app_port": "PORT",
}

// Load reads configuration from the environment and, if configFile is not
// empty, from that file. Environment values win over the file.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if env, ok := envNames[key]; ok {
			_ = v.BindEnv(key, env, strings.ToUpper(key))
		} else {
			_ = v.BindEnv(key, strings.ToUpper(key))
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.ModelName == "":
		return fmt.Errorf("model_name must not be empty")
	case c.EngineKind == "":
		return fmt.Errorf("engine_kind must not be empty")
	case c.EngineThreads < 0:
		return fmt.Errorf("engine_threads must not be negative, got %d", c.EngineThreads)
	case c.MetricsSamplingRate < 0 || c.MetricsSamplingRate > 1:
		return fmt.Errorf("metrics_sampling_rate must be within [0, 1], got %v", c.MetricsSamplingRate)
	}
	return nil
}
