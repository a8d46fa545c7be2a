package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/imamik/kubernix/internal/kerrors"
)

// ToFile writes the current configuration to the root directory, replacing any
// previously persisted file atomically.
func (c *Config) ToFile() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return kerrors.IOErr("write config", fmt.Errorf("failed to marshal config: %w", err))
	}

	tmp, err := os.CreateTemp(c.Root, "."+FileName+".*")
	if err != nil {
		return kerrors.IOErr("write config", fmt.Errorf("failed to create temporary file: %w", err))
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return kerrors.IOErr("write config", fmt.Errorf("failed to write %s: %w", tmpName, err))
	}
	if err := tmp.Close(); err != nil {
		return kerrors.IOErr("write config", fmt.Errorf("failed to close %s: %w", tmpName, err))
	}
	if err := os.Rename(tmpName, c.File()); err != nil {
		return kerrors.IOErr("write config", fmt.Errorf("failed to replace %s: %w", c.File(), err))
	}

	return nil
}

// TryLoadFile reads a previously persisted configuration from the root
// directory. It returns false without error when there is no such file. A file
// that cannot be decoded or does not validate is a configuration error. On
// success the receiver is replaced by the loaded configuration; the root stays
// the one the receiver already points to.
func (c *Config) TryLoadFile() (bool, error) {
	// #nosec G304
	data, err := os.ReadFile(c.File())
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, kerrors.IOErr("read config", fmt.Errorf("failed to read %s: %w", c.File(), err))
	}

	loaded, err := Parse(data)
	if err != nil {
		return false, err
	}

	loaded.Root = c.Root
	if err := loaded.Validate(); err != nil {
		return false, fmt.Errorf("persisted configuration %s is invalid: %w", filepath.Base(c.File()), err)
	}

	*c = *loaded
	return true, nil
}

// Parse decodes YAML configuration data. Unknown keys and mismatched types are
// rejected. Fields absent from data keep their zero value.
func Parse(data []byte) (*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, kerrors.ConfigErr("file", fmt.Errorf("failed to unmarshal yaml: %w", err))
	}
	if raw == nil {
		return nil, kerrors.ConfigErr("file", errors.New("configuration file is empty"))
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return nil, kerrors.ConfigErr("file", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, kerrors.ConfigErr("file", fmt.Errorf("failed to decode config: %w", err))
	}

	return &cfg, nil
}
