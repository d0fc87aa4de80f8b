package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"photoshelf/internal/logging"
	"photoshelf/internal/tools"
)

// ensureDirectory creates path if it is missing.
func ensureDirectory(path, name string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
		logging.Debug("  Created %s directory %s", name, path)
		return nil
	case err != nil:
		return fmt.Errorf("stat directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("%s exists but is not a directory", path)
	}

	if logging.IsDebugEnabled() {
		if entries, err := os.ReadDir(path); err == nil {
			logging.Debug("  %s directory %s holds %d entries", name, path, len(entries))
		}
	}
	return nil
}

// probeTool logs the path and first version line of an external tool.
func probeTool(name string, versionArgs ...string) error {
	path, err := tools.Path(name)
	if err != nil {
		return err
	}
	out, err := tools.Run(context.Background(), 5*time.Second, name, versionArgs...)
	if err != nil {
		return fmt.Errorf("%s version check: %w", name, err)
	}
	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	logging.Info("  [OK] %s %s (%s)", name, version, path)
	return nil
}
