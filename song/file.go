package song

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the song from file. Files with .json extension are parsed
// as json, .yml and .yaml as yaml. Other files are tried as json first
// and then as yaml.
func Load(path string) (*Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read file %v: %w", path, err)
	}
	s, err := Unmarshal(filepath.Ext(path), data)
	if err != nil {
		return nil, fmt.Errorf("could not parse %v: %w", path, err)
	}
	return s, nil
}

// Unmarshal parses song of the format denoted by file extension.
func Unmarshal(ext string, data []byte) (*Song, error) {
	s := New()
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, s); err != nil {
			return nil, err
		}
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, err
		}
	default:
		if errJSON := json.Unmarshal(data, s); errJSON != nil {
			s = New()
			if errYaml := yaml.Unmarshal(data, s); errYaml != nil {
				return nil, fmt.Errorf("the song could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
			}
		}
	}
	return s, nil
}

// Save writes the song to file. Format is chosen by file extension, yaml
// is used by default.
func (s *Song) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("could not marshal song: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
