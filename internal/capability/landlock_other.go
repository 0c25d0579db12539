//go:build !linux

package capability

import "log/slog"

// enforce is advisory-only on platforms without Landlock.
func enforce(entries []Entry, logger *slog.Logger) error {
	logger.Warn("kernel sandbox unavailable on this platform, capability checks are advisory only")
	return nil
}
