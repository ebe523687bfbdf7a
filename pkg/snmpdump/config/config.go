// Package config loads the optional YAML settings file for the snmpdump
// front end. Command-line flags (see cmd/snmpdump) always take precedence
// over a loaded file; the file exists so a fixed set of flags can be
// checked into a repo and reused across invocations.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a snmpdump settings file.
type File struct {
	// Input names the input format: "pcap" or "xml".
	Input string `yaml:"input"`

	// Output names the output format: "xml" or "csv".
	Output string `yaml:"output"`

	// Filter is a regular expression matched against field names; see
	// filter.New for the exact matching rule.
	Filter string `yaml:"filter"`

	// Delete selects filter.ModeDelete instead of the default
	// filter.ModeClear when Filter is set.
	Delete bool `yaml:"delete"`

	// PcapFilter is stored and forwarded to the external capture layer;
	// this module never interprets it.
	PcapFilter string `yaml:"pcap_filter"`

	// FlowDir is the output directory for per-flow files.
	FlowDir string `yaml:"flow_dir"`

	// FlowPrefix is the "<prefix>" in "<prefix>-<flow_name>.<ext>".
	FlowPrefix string `yaml:"flow_prefix"`

	// FlowMaxBytes rotates an individual flow file once it grows past this
	// size. Zero disables rotation.
	FlowMaxBytes int64 `yaml:"flow_max_bytes"`

	// FlowMaxOpenFiles bounds how many flow files stay open at once. Zero
	// requests the platform-derived default.
	FlowMaxOpenFiles int `yaml:"flow_max_open_files"`
}

// Load reads and parses a YAML settings file. A missing path is not an
// error — it returns a zero File so callers can layer flag defaults over
// it unconditionally.
func Load(path string) (File, error) {
	if path == "" {
		return File{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}
