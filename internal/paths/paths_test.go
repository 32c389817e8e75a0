package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ///////////////////////////////////////////////
// Constant Value Tests
// ///////////////////////////////////////////////

func TestConstantValues(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DataDirRel", DataDirRel, ".badgecord"},
		{"PIDFile", PIDFile, "badgecord.pid"},
		{"ConfigFile", ConfigFile, "config.toml"},
		{"LogFile", LogFile, "badgecord.log"},
		{"BinaryName", BinaryName, "badgecord"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// DataDir Method Tests
// ///////////////////////////////////////////////

func TestDataDirMethods(t *testing.T) {
	root := filepath.Join("home", "user", ".badgecord")
	d := DataDir{Root: root}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"PID", d.PID(), filepath.Join(root, "badgecord.pid")},
		{"Config", d.Config(), filepath.Join(root, "config.toml")},
		{"Log", d.Log(), filepath.Join(root, "badgecord.log")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestDataDirEmptyRoot(t *testing.T) {
	d := DataDir{Root: ""}
	if got := d.Config(); got != ConfigFile {
		t.Errorf("Config() = %q, want %q", got, ConfigFile)
	}
}

func TestDefault(t *testing.T) {
	d := Default()
	if !strings.HasSuffix(d.Root, DataDirRel) {
		t.Errorf("Default().Root = %q, want suffix %q", d.Root, DataDirRel)
	}
}

func TestEnsure(t *testing.T) {
	d := DataDir{Root: filepath.Join(t.TempDir(), "nested", ".badgecord")}
	if err := d.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	info, err := os.Stat(d.Root)
	if err != nil || !info.IsDir() {
		t.Fatalf("data dir not created: %v", err)
	}
	if err := d.Ensure(); err != nil {
		t.Errorf("second Ensure: %v", err)
	}
}
