package schema

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load parses a JSON or YAML definition and validates it.
func Load(data []byte) (*Definition, error) {
	return parse(data, "definition")
}

// LoadFile reads and parses the definition at path.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return parse(data, path)
}

// LoadFS reads and parses the definition at path within fsys.
func LoadFS(fsys fs.FS, path string) (*Definition, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return parse(data, path)
}

func parse(data []byte, source string) (*Definition, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("schema: %s is empty", source)
	}

	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		def = Definition{}
		if yerr := yaml.Unmarshal(data, &def); yerr != nil {
			return nil, fmt.Errorf("schema: parse %s: invalid JSON or YAML", source)
		}
	}
	normalise(&def)
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return &def, nil
}

func normalise(def *Definition) {
	def.Code = strings.TrimSpace(def.Code)
	for qi := range def.Questions {
		q := &def.Questions[qi]
		q.ID = strings.TrimSpace(q.ID)
		for fi := range q.Fields {
			f := &q.Fields[fi]
			f.Name = strings.TrimSpace(f.Name)
			f.Type = strings.ToLower(strings.TrimSpace(f.Type))
			if f.Label == "" {
				f.Label = humanize(f.Name)
			}
		}
		if q.Title == "" && len(q.Fields) > 0 {
			q.Title = q.Fields[0].Label
		}
	}
}

// humanize turns "claim_amount" into "Claim amount".
func humanize(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == '[' || r == ']'
	})
	if len(words) == 0 {
		return name
	}
	out := strings.ToLower(strings.Join(words, " "))
	return strings.ToUpper(out[:1]) + out[1:]
}
