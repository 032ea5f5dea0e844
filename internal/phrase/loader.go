package phrase

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// pack is the on-disk layout of a YAML rule pack:
//
//	categories:
//	  - name: connectors
//	    rules:
//	      - before: "יש לציין כי"
//	        after: ["יצוין"]
//	        comment: "ניסוח מקוצר"
type pack struct {
	Categories []Category `yaml:"categories"`
}

// LoadFile reads a YAML rule pack from path.
func LoadFile(path string) ([]Category, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("phrase: open %q: %w", path, err)
	}
	defer f.Close()

	cats, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("phrase: load %q: %w", path, err)
	}
	return cats, nil
}

// LoadFromReader decodes a YAML rule pack from r. Unknown keys are rejected.
// Rule-level problems are not reported here; [New] drops malformed rules and
// [Validate] lists them.
func LoadFromReader(r io.Reader) ([]Category, error) {
	var p pack
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("phrase: decode yaml: %w", err)
	}
	for i, c := range p.Categories {
		if c.Name == "" {
			return nil, fmt.Errorf("phrase: categories[%d].name is required", i)
		}
	}
	return p.Categories, nil
}
