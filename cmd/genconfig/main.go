// Package main implements the genconfig tool that writes config.default.toml
// from config.ExampleConfig(), annotated with config.ConfigDocs.
//
// It is invoked by go generate via the directive in internal/config/config.go.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/badgecord/internal/atomicfile"
	"tools.zach/dev/badgecord/internal/config"
)

func main() {
	// go generate runs from internal/config; the embedding package is the
	// module root.
	outPath := flag.String("o", "../../config.default.toml", "output path")
	flag.Parse()

	data, err := generate(config.ExampleConfig(), config.ConfigDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}
	if err := atomicfile.Write(*outPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *outPath)
}

// generate encodes cfg and interleaves the docs: section banners, a comment
// block above each key, and commented alternatives below it. Documented keys
// the encoder omitted appear as comments at the end of their section.
func generate(cfg *config.Config, docs map[string]config.FieldDoc) ([]byte, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(cfg); err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	out := []string{
		"# ///////////////////////////////////////////////",
		"# Badgecord Configuration",
		"# ///////////////////////////////////////////////",
		"#",
		"# Edits are picked up while badgecord is running.",
	}

	var section []string
	emitted := map[string]bool{}

	for _, line := range strings.Split(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[[") {
			out = appendOmitted(out, docs, section, emitted)

			name := strings.Trim(trimmed, "[] ")
			section = parseSectionPath(name)
			out = append(out, "", fmt.Sprintf("# ///// %s /////", sectionName(name)), "")
			if doc, ok := docs[name]; ok {
				out = appendComment(out, doc.Comment)
			}
			out = append(out, trimmed)
			continue
		}

		key, _, isKV := strings.Cut(trimmed, "=")
		if !isKV || strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
			continue
		}
		path := strings.Join(append(append([]string{}, section...), strings.TrimSpace(key)), ".")
		emitted[path] = true

		doc, ok := docs[path]
		if !ok {
			out = append(out, trimmed)
			continue
		}
		out = appendComment(out, doc.Comment)
		out = append(out, trimmed)
		for _, alt := range doc.Alternatives {
			out = append(out, "# "+alt)
		}
	}
	out = appendOmitted(out, docs, section, emitted)

	return []byte(strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"), nil
}

// appendComment adds comment as "# " lines. Empty comments add nothing.
func appendComment(out []string, comment string) []string {
	if comment == "" {
		return out
	}
	for _, cl := range strings.Split(comment, "\n") {
		out = append(out, "# "+cl)
	}
	return out
}

// appendOmitted adds commented entries for documented keys directly under
// section that the encoder left out (omitempty fields at their zero value).
// Keys are sorted for deterministic output.
func appendOmitted(out []string, docs map[string]config.FieldDoc, section []string, emitted map[string]bool) []string {
	if len(section) == 0 {
		return out
	}
	prefix := strings.Join(section, ".") + "."

	var omitted []string
	for path := range docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || emitted[path] {
			continue
		}
		omitted = append(omitted, path)
	}
	sort.Strings(omitted)

	for _, path := range omitted {
		doc := docs[path]
		out = append(out, "")
		out = appendComment(out, doc.Comment)
		for _, alt := range doc.Alternatives {
			out = append(out, "# "+alt)
		}
		emitted[path] = true
	}
	return out
}

// parseSectionPath splits a dotted TOML section header (e.g. "presence.cdn")
// into its path segments.
func parseSectionPath(section string) []string {
	return strings.Split(section, ".")
}

// sectionName returns the banner label for a section header: its last dotted
// segment with the first letter capitalized, so "presence" yields "Presence".
func sectionName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if len(last) == 0 {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
