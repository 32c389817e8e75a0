package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/badgecord/internal/migrate"
)

func init() {
	migrate.Config.Register(migrate.Migration{
		Version:     1,
		Description: "stamp config schema version",
		Upgrade:     stampVersion(1),
	})
}

// stampVersion returns an upgrade step that sets the top-level version key
// and leaves every other key, known or not, as it was.
func stampVersion(v int) func([]byte) ([]byte, error) {
	return func(data []byte) ([]byte, error) {
		doc := map[string]any{}
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
		doc["version"] = v

		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, fmt.Errorf("encode: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads only the version key from raw TOML. A file without one,
// or one that does not parse, reports 0.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if _, err := toml.Decode(string(data), &v); err != nil {
		return 0
	}
	return v.Version
}
