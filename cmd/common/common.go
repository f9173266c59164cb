// Package common provides shared helpers for the service binaries:
// YAML configuration loading, signing key handling and logger setup.
package common

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anirbankanungoe/IoT-Blockchain/crypto"
	"github.com/anirbankanungoe/IoT-Blockchain/protocol"
	"github.com/anirbankanungoe/IoT-Blockchain/services"
)

// Config is the YAML configuration shared by the service binaries. Each
// binary reads the subset it needs; unset fields keep their defaults.
type Config struct {
	// ServiceID is this node's identity in the registry.
	ServiceID string `yaml:"service_id"`

	// PrivateKey is the hex-encoded signing key scalar. KeyFile takes
	// precedence when both are set; when neither is set a fresh key is
	// generated at startup.
	PrivateKey string `yaml:"private_key"`

	// KeyFile names a file holding the hex-encoded signing key.
	KeyFile string `yaml:"key_file"`

	// HTTPAddr is the verifier's API listen address.
	HTTPAddr string `yaml:"http_addr"`

	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `yaml:"metrics_addr"`

	// VerifierURL is the base URL of the verifier service.
	VerifierURL string `yaml:"verifier_url"`

	// ListenAddr is the socket address a capture node serves on.
	ListenAddr string `yaml:"listen_addr"`

	// CaptureAddr is the capture node address a storage node dials.
	CaptureAddr string `yaml:"capture_addr"`

	// OutputDir is where a storage node writes received images.
	OutputDir string `yaml:"output_dir"`

	// ImagesDir makes a capture node replay the image files of a
	// directory instead of generating synthetic frames.
	ImagesDir string `yaml:"images_dir"`

	// Insecure disables channel authentication. Chosen once at startup;
	// nothing downgrades a running channel.
	Insecure bool `yaml:"insecure"`

	LogJSON  bool `yaml:"log_json"`
	LogDebug bool `yaml:"log_debug"`

	// Postgres enables persistent identity storage when set.
	Postgres *services.PostgresConfig `yaml:"postgres"`

	// Protocol overrides the protocol defaults field by field.
	Protocol *protocol.Config `yaml:"protocol"`
}

// DefaultConfig returns a config with production defaults and no
// identity configured.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:  ":8080",
		OutputDir: "received_images",
		Protocol:  protocol.DefaultConfig(),
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if cfg.Protocol == nil {
		cfg.Protocol = protocol.DefaultConfig()
	}
	return cfg, nil
}

// Logger builds the process logger from the config's log settings.
func (c *Config) Logger() *slog.Logger {
	level := slog.LevelInfo
	if c.LogDebug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// LoadOrGenerateKey resolves the node's signing key: the key file when
// configured, the inline hex otherwise, or a freshly generated key as a
// last resort. A generated key is ephemeral; the node must re-register
// after every restart.
func LoadOrGenerateKey(cfg *Config, log *slog.Logger) (crypto.PrivateKey, error) {
	if cfg.KeyFile != "" {
		data, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file: %w", err)
		}
		return crypto.NewPrivateKeyFromString(strings.TrimSpace(string(data)))
	}

	if cfg.PrivateKey != "" {
		return crypto.NewPrivateKeyFromString(cfg.PrivateKey)
	}

	addr, key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	log.Warn("no signing key configured, generated an ephemeral one", "address", addr.String())
	return key, nil
}

// NewSigner resolves the key and builds the node's signer.
func NewSigner(cfg *Config, log *slog.Logger) (*protocol.Signer, error) {
	key, err := LoadOrGenerateKey(cfg, log)
	if err != nil {
		return nil, err
	}
	return protocol.NewSigner(cfg.ServiceID, key)
}
