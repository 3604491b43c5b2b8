// Package config loads process configuration from a YAML file, grounded on
// fberrez-horus/api/api.go's loadConfig — same env-var-names-the-file,
// gopkg.in/yaml.v2, juju/errors-annotated-failure shape, generalized from a
// single static device list to this module's full settings surface.
package config

import (
	"os"

	"github.com/google/uuid"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

const (
	configFileEnv       = "LIFXD_CONFIG_FILE"
	defaultConfigPath   = "config.yaml"
	defaultHTTPAddr     = ":8080"
	defaultAudioDir     = "./data/audio"
	defaultGracePeriodS = 60
)

// Config is every process-level setting this module reads at startup.
type Config struct {
	// APIKey gates every mutating HTTP route, per spec.md §4.7. A nil
	// (zero) UUID means the key has not been generated yet, matching the
	// teacher's "api key not generated" guard.
	APIKey uuid.UUID `yaml:"apiKey"`

	// Source is the transport's 32-bit source identifier, distinguishing
	// this process's frames from other LIFX LAN clients on the network.
	Source uint32 `yaml:"source"`

	// HTTPAddr is the address the HTTP+push server listens on.
	HTTPAddr string `yaml:"httpAddr"`

	// AudioDir is the directory the audio blob store is rooted at.
	AudioDir string `yaml:"audioDir"`

	// DeviceGracePeriodSeconds is how long a device may go unseen before
	// the registry marks it offline, per spec.md §4.3.
	DeviceGracePeriodSeconds int `yaml:"deviceGracePeriodSeconds"`
}

// Load reads the YAML file named by LIFXD_CONFIG_FILE, or defaultConfigPath
// if unset, and fills in defaults for anything the file omits.
func Load() (*Config, error) {
	filename := os.Getenv(configFileEnv)
	if filename == "" {
		filename = defaultConfigPath
	}
	log.WithField("filename", filename).Info("loading configuration")

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Annotate(err, "config: read file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Annotate(err, "config: unmarshal")
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if c.AudioDir == "" {
		c.AudioDir = defaultAudioDir
	}
	if c.DeviceGracePeriodSeconds == 0 {
		c.DeviceGracePeriodSeconds = defaultGracePeriodS
	}
}
