package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed corpora.yaml
var defaultCorpora []byte

// CorpusProfile describes one routable corpus: which index serves it and
// how its lexical query is shaped. Field boosts use the index's
// "field^boost" notation.
type CorpusProfile struct {
	Name          string   `yaml:"name"`
	Index         string   `yaml:"index"`
	LexicalFields []string `yaml:"lexical_fields"`
	VectorField   string   `yaml:"vector_field"`
}

type corporaFile struct {
	Primary string          `yaml:"primary"`
	Corpora []CorpusProfile `yaml:"corpora"`
}

// LoadCorpora reads corpus profiles from path, or the embedded defaults
// when path is empty. Returns the primary corpus name and the profile set.
func LoadCorpora(path string) (string, []CorpusProfile, error) {
	data := defaultCorpora
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("read corpora config: %w", err)
		}
		data = fileData
	}

	var file corporaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return "", nil, fmt.Errorf("parse corpora config: %w", err)
	}
	if len(file.Corpora) == 0 {
		return "", nil, fmt.Errorf("corpora config declares no corpora")
	}

	names := make(map[string]bool, len(file.Corpora))
	for i := range file.Corpora {
		profile := &file.Corpora[i]
		if profile.Name == "" || profile.Index == "" {
			return "", nil, fmt.Errorf("corpus entry %d is missing name or index", i)
		}
		if names[profile.Name] {
			return "", nil, fmt.Errorf("corpus %q declared twice", profile.Name)
		}
		if profile.VectorField == "" {
			profile.VectorField = "embedding"
		}
		if len(profile.LexicalFields) == 0 {
			profile.LexicalFields = []string{"chunk_text"}
		}
		names[profile.Name] = true
	}

	if file.Primary == "" {
		file.Primary = file.Corpora[0].Name
	}
	if !names[file.Primary] {
		return "", nil, fmt.Errorf("primary corpus %q is not declared", file.Primary)
	}
	return file.Primary, file.Corpora, nil
}
