package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed contracts.schema.json
var contractsSchema string

// LoadError lists structural problems found in a contracts document.
type LoadError struct {
	Path   string
	Issues []string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("schema: %s: %d problem(s): %s", e.Path, len(e.Issues), strings.Join(e.Issues, "; "))
}

type contractsFile struct {
	Contracts []Contract `json:"contracts"`
}

// LoadContracts reads contracts from a JSON or YAML file (by extension:
// .yaml/.yml are YAML, anything else JSON). The document is checked against
// the embedded JSON Schema before decoding.
func LoadContracts(path string) ([]Contract, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	yamlDoc := false
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		yamlDoc = true
	}
	return ParseContracts(path, b, yamlDoc)
}

// ParseContracts is LoadContracts over an in-memory document. name is used
// in error messages only.
func ParseContracts(name string, b []byte, yamlDoc bool) ([]Contract, error) {
	var doc any
	if yamlDoc {
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("schema: parse %s: %w", name, err)
		}
		// Round-trip through JSON so both formats hit the same decoder.
		jb, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("schema: parse %s: %w", name, err)
		}
		b = jb
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(contractsSchema),
		gojsonschema.NewBytesLoader(b),
	)
	if err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", name, err)
	}
	if !result.Valid() {
		le := &LoadError{Path: name}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			le.Issues = append(le.Issues, field+": "+desc.Description())
		}
		return nil, le
	}

	var f contractsFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("schema: decode %s: %w", name, err)
	}
	for i := range f.Contracts {
		if err := f.Contracts[i].compile(); err != nil {
			return nil, fmt.Errorf("schema: %s: contract %q: %w", name, f.Contracts[i].Name, err)
		}
	}
	return f.Contracts, nil
}
