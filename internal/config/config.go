// Package config loads the service configuration from YAML with
// environment overrides for credentials and deployment-specific paths.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend selection keys. Backends are chosen here once; nothing probes for
// an available backend at call time.
const (
	DetectorRawDecode = "raw_decode"
	DetectorFull      = "full"

	RecognizerTwoPass  = "two_pass"
	RecognizerSequence = "sequence"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Detector   DetectorConfig   `yaml:"detector"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Gate       GateConfig       `yaml:"gate"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	PoolSize     int           `yaml:"pool_size"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RuntimeConfig locates the ONNX Runtime shared library and chooses the
// execution device for every session in the process.
type RuntimeConfig struct {
	LibraryPath string `yaml:"library_path"`
	Device      string `yaml:"device"`
}

type DetectorConfig struct {
	Backend       string  `yaml:"backend"`
	ModelPath     string  `yaml:"model_path"`
	InputName     string  `yaml:"input_name"`
	OutputName    string  `yaml:"output_name"`
	InputSize     int     `yaml:"input_size"`
	OutputRows    int     `yaml:"output_rows"`
	RowStride     int     `yaml:"row_stride"`
	ConfThreshold float32 `yaml:"conf_threshold"`
	IoUThreshold  float32 `yaml:"iou_threshold"`
}

type RecognizerConfig struct {
	Backend    string `yaml:"backend"`
	ModelPath  string `yaml:"model_path"`
	InputName  string `yaml:"input_name"`
	OutputName string `yaml:"output_name"`
	// Positions is the number of output columns of the sequence model.
	Positions int `yaml:"positions"`
}

type GateConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DatabaseURL     string        `yaml:"database_url"`
	CredentialsFile string        `yaml:"credentials_file"`
	AutoClose       time.Duration `yaml:"auto_close"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when a field is absent from the
// YAML file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			PoolSize:     4,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Runtime: RuntimeConfig{
			Device: "cpu",
		},
		Detector: DetectorConfig{
			Backend:       DetectorRawDecode,
			InputName:     "images",
			OutputName:    "output0",
			InputSize:     640,
			OutputRows:    8400,
			RowStride:     6,
			ConfThreshold: 0.5,
			IoUThreshold:  0.5,
		},
		Recognizer: RecognizerConfig{
			Backend:    RecognizerTwoPass,
			InputName:  "input",
			OutputName: "output",
			Positions:  18,
		},
		Gate: GateConfig{
			AutoClose: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the YAML file at path (optional), layers environment
// overrides on top and validates the result. A .env file next to the
// working directory is honored for local development.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PLATEGATE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("FIREBASE_DATABASE_URL"); v != "" {
		cfg.Gate.DatabaseURL = v
	}
	if v := os.Getenv("FIREBASE_CREDENTIALS_FILE"); v != "" {
		cfg.Gate.CredentialsFile = v
	}
}

func (c *Config) Validate() error {
	switch c.Detector.Backend {
	case DetectorRawDecode, DetectorFull:
	default:
		return fmt.Errorf("unknown detector backend %q", c.Detector.Backend)
	}
	switch c.Recognizer.Backend {
	case RecognizerTwoPass, RecognizerSequence:
	default:
		return fmt.Errorf("unknown recognizer backend %q", c.Recognizer.Backend)
	}
	switch c.Runtime.Device {
	case "cpu", "cuda":
	default:
		return fmt.Errorf("unknown device %q", c.Runtime.Device)
	}

	if c.Detector.ModelPath == "" {
		return fmt.Errorf("detector.model_path is required")
	}
	if c.Recognizer.Backend == RecognizerSequence && c.Recognizer.ModelPath == "" {
		return fmt.Errorf("recognizer.model_path is required for the sequence backend")
	}
	if c.Detector.InputSize <= 0 || c.Detector.RowStride <= 0 || c.Detector.OutputRows <= 0 {
		return fmt.Errorf("detector output geometry must be positive")
	}
	if c.Server.PoolSize <= 0 {
		return fmt.Errorf("server.pool_size must be positive")
	}
	if c.Gate.Enabled {
		if c.Gate.DatabaseURL == "" {
			return fmt.Errorf("gate.database_url is required when the gate is enabled")
		}
		if c.Gate.CredentialsFile == "" {
			return fmt.Errorf("gate.credentials_file is required when the gate is enabled")
		}
	}
	return nil
}

// NeedsONNXRuntime reports whether any configured backend requires the
// ONNX runtime environment.
func (c *Config) NeedsONNXRuntime() bool {
	return c.Detector.Backend == DetectorRawDecode ||
		c.Detector.Backend == DetectorFull ||
		c.Recognizer.Backend == RecognizerSequence
}
