package buildfile

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateJSONSchema produces a JSON Schema document for build files,
// for editors that validate kiln.yaml.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.FieldNameTag = "yaml"
	r.DoNotReference = false

	s := r.Reflect(&File{})
	s.ID = "https://github.com/aristath/kiln/schemas/build-file.json"
	s.Title = "kiln build file"
	s.Description = "Tasks, their tool steps and the chain that orders them"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// JSONSchema describes the two shapes a chain entry accepts.
func (ChainEntry) JSONSchema() *jsonschema.Schema {
	group := jsonschema.NewProperties()
	group.Set("group", &jsonschema.Schema{Type: "string", Description: "Group description"})
	group.Set("steps", &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Ref: "#/$defs/ChainEntry"},
	})

	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string", Description: "Task name"},
			{
				Type:                 "object",
				Properties:           group,
				Required:             []string{"steps"},
				AdditionalProperties: jsonschema.FalseSchema,
			},
		},
	}
}
