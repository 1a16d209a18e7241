// Copyright 2026 The Rowpipe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rowpipe

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SchemaFileConfig is the top-level shape of a schema YAML file.
//
//	version: 1
//	fields:
//	  id: string required
//	  age: integer required range(18, 120)
//	  email:
//	    type: string
//	    pattern: "^[\\w.-]+@[\\w.-]+\\.\\w+$"
//
// A field value is either a compact expression string or a mapping with the
// long-form keys. Field declaration order in the file is preserved.
type SchemaFileConfig struct {
	Version string       `yaml:"version"`
	Fields  SchemaFields `yaml:"fields"`
}

// SchemaFields holds ordered field specifications decoded from YAML.
type SchemaFields struct {
	Specs []FieldSpec
}

type fieldDetails struct {
	Type      string   `yaml:"type"`
	Required  bool     `yaml:"required,omitempty"`
	Min       *float64 `yaml:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty"`
	MinLength *int     `yaml:"min_length,omitempty"`
	MaxLength *int     `yaml:"max_length,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty"`
	Choices   []any    `yaml:"choices,omitempty"`
}

func (sf *SchemaFields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fields must be a mapping")
	}

	// Walk the mapping node directly: decoding into a Go map would lose the
	// declaration order that rule compilation depends on.
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]
		name := keyNode.Value

		switch valueNode.Kind {
		case yaml.ScalarNode:
			spec, err := ParseFieldExpr(name, valueNode.Value)
			if err != nil {
				return err
			}
			sf.Specs = append(sf.Specs, spec)

		case yaml.MappingNode:
			var details fieldDetails
			if err := valueNode.Decode(&details); err != nil {
				return err
			}
			typ, ok := parseFieldType(details.Type)
			if !ok {
				return &SchemaError{Field: name, Reason: fmt.Sprintf("unknown field type %q", details.Type)}
			}
			sf.Specs = append(sf.Specs, FieldSpec{
				Name:      name,
				Type:      typ,
				Required:  details.Required,
				Min:       details.Min,
				Max:       details.Max,
				MinLength: details.MinLength,
				MaxLength: details.MaxLength,
				Pattern:   details.Pattern,
				Choices:   details.Choices,
			})

		default:
			return &SchemaError{Field: name, Reason: "field value must be an expression or a mapping"}
		}
	}

	return nil
}

// ParseSchemaConfig builds a Schema from schema file bytes.
func ParseSchemaConfig(data []byte) (*Schema, error) {
	var cfg SchemaFileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Fields.Specs) == 0 {
		return nil, &SchemaError{Reason: "schema file declares no fields"}
	}

	b := NewSchema()
	for _, spec := range cfg.Fields.Specs {
		b.Spec(spec)
	}
	return b.Build()
}

// LoadSchemaFile reads and builds a Schema from a YAML file.
func LoadSchemaFile(fileName string) (*Schema, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	return ParseSchemaConfig(data)
}
