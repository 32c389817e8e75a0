package migrate

import "fmt"

// Registry tracks the schema version and upgrade steps of one file kind.
type Registry struct {
	// CurrentVersion is the schema version this build writes.
	CurrentVersion int
	// Migrations are the versioned upgrade steps. Tests may swap the slice.
	Migrations []Migration
	// Dev holds local fix-ups that run on every load without changing the
	// version. See [Registry.RunDev].
	Dev []Migration
}

// Register adds m. Two steps producing the same version panic.
func (r *Registry) Register(m Migration) {
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate migration version %d (description: %q)", m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// RegisterDev adds a dev fix-up. Two fix-ups with the same description panic.
func (r *Registry) RegisterDev(m Migration) {
	for _, existing := range r.Dev {
		if existing.Description == m.Description {
			panic(fmt.Sprintf("migrate: duplicate dev transform %q", m.Description))
		}
	}
	r.Dev = append(r.Dev, m)
}

// NeedsMigration is [NeedsMigration] against the registry's version and steps.
func (r *Registry) NeedsMigration(fileVersion int, force bool) bool {
	return NeedsMigration(fileVersion, r.CurrentVersion, force, r.Migrations)
}

// Run is [Run] over the registered steps.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, int, error) {
	return Run(data, fromVersion, r.Migrations)
}

// RunDev applies every dev fix-up in registration order.
func (r *Registry) RunDev(data []byte) ([]byte, error) {
	for _, m := range r.Dev {
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, fmt.Errorf("dev transform %q: %w", m.Description, err)
		}
		data = out
	}
	return data, nil
}

// HasDev reports whether any dev fix-ups are registered.
func (r *Registry) HasDev() bool {
	return len(r.Dev) > 0
}

// Config is the registry for config.toml. Version 0 is a file written before
// the version key existed.
var Config = &Registry{CurrentVersion: 1}
