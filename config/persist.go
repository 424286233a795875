package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/ipvc/tabx/errors"
)

// Save writes the configuration to the given path as TOML, keeping
// rotating backups (.back1, .back2, .back3) of any previous file.
func Save(cfg *Config, configPath string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if err := createBackup(configPath); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return errors.Wrapf(err, "write config %s", configPath)
	}

	return nil
}

// createBackup rotates backups before modifying config:
// .back3 is dropped, .back2 -> .back3, .back1 -> .back2, current -> .back1.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to back up
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove oldest backup")
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "read config for backup")
	}
	if err := os.WriteFile(back1, content, 0o644); err != nil {
		return errors.Wrap(err, "write backup")
	}

	return nil
}
