package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// PartialPrefix marks outputs still being written. Finished outputs are
// renamed into place, so anything left with this prefix is garbage.
const PartialPrefix = ".partial-"

// RemovePartialOutputs returns a hook that deletes PartialPrefix files in
// dir. Failures are logged, not returned, so they never hold up exit.
func RemovePartialOutputs(logger *zap.Logger, dir string) Func {
	return func(ctx context.Context) error {
		matches, err := filepath.Glob(filepath.Join(dir, PartialPrefix+"*"))
		if err != nil {
			logger.Warn("Failed to list partial outputs", zap.String("dir", dir), zap.Error(err))
			return nil
		}
		removed := 0
		for _, path := range matches {
			if ctx.Err() != nil {
				logger.Warn("Shutdown deadline reached during cleanup",
					zap.Int("removed", removed), zap.Int("remaining", len(matches)-removed))
				return nil
			}
			info, err := os.Lstat(path)
			if err != nil || info.IsDir() {
				continue
			}
			if err := os.Remove(path); err != nil {
				logger.Warn("Failed to remove partial output", zap.String("file", filepath.Base(path)), zap.Error(err))
				continue
			}
			removed++
		}
		if removed > 0 {
			logger.Info("Removed partial outputs", zap.String("dir", dir), zap.Int("count", removed))
		}
		return nil
	}
}
