// Package migrate upgrades on-disk files written by older badgecord releases
// to the current schema, one version step at a time.
package migrate

import (
	"fmt"
	"log/slog"
	"sort"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Migration upgrades raw file contents to Version from the version before it.
type Migration struct {
	// Version is the schema version the upgrade produces.
	Version int
	// Description labels the step in log output.
	Description string
	// Upgrade rewrites data into the [Migration.Version] schema.
	Upgrade func(data []byte) ([]byte, error)
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Run applies, in version order, every migration newer than fromVersion.
// It returns the rewritten data and the last version reached. On failure the
// returned version is the one the data was at before the failing step.
func Run(data []byte, fromVersion int, migrations []Migration) ([]byte, int, error) {
	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Version < ordered[j].Version
	})

	version := fromVersion
	for _, m := range ordered {
		if m.Version <= version {
			continue
		}
		slog.Info("applying migration", "version", m.Version, "description", m.Description)
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
		}
		data, version = out, m.Version
	}
	return data, version, nil
}

// NeedsMigration reports whether a file stamped fileVersion has to be
// rewritten. force requests a rewrite whenever any migration exists.
func NeedsMigration(fileVersion, currentVersion int, force bool, migrations []Migration) bool {
	if fileVersion != currentVersion {
		return true
	}
	if force && len(migrations) > 0 {
		return true
	}
	for _, m := range migrations {
		if fileVersion < m.Version {
			return true
		}
	}
	return false
}
