package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RahimMirani/scheduling-agent/internal/config"
)

func configPath(cfg *config.Config) string {
	return filepath.Join(cfg.HomeDir, "config.toml")
}

// bootstrapHome creates the home directory tree and a starter config file if
// missing. Returns true when this was a first run.
func bootstrapHome(cfg *config.Config) (bool, error) {
	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return false, fmt.Errorf("create home directory %q: %w", cfg.HomeDir, err)
	}

	path := configPath(cfg)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("stat config file %q: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return false, fmt.Errorf("create config file %q: %w", path, err)
	}
	defer f.Close()

	if err := config.Write(f); err != nil {
		return false, err
	}
	return true, nil
}
