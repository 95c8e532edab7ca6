package provider

import (
	"encoding/json"
	"sort"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects T into a JSON schema accepted by strict structured outputs.
func GenerateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	schemaObj, err := schemaToMap(schema)
	if err != nil {
		panic(err)
	}
	ensureOpenAICompliance(schemaObj)
	return schemaObj
}

// AddStringProperty adds a required string property to an object schema.
func AddStringProperty(schema map[string]interface{}, name, description string) {
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		props = map[string]interface{}{}
		schema["properties"] = props
	}
	props[name] = map[string]interface{}{
		"type":        "string",
		"description": description,
	}
	ensureOpenAICompliance(schema)
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m, nil
}

// ensureOpenAICompliance closes every object schema reachable through properties, array items
// and map values, and marks all of its properties required, as strict mode demands.
func ensureOpenAICompliance(schema map[string]interface{}) {
	props, _ := schema["properties"].(map[string]interface{})
	if t, _ := schema["type"].(string); t == "object" {
		schema["additionalProperties"] = false
		if len(props) > 0 {
			names := make([]string, 0, len(props))
			for name := range props {
				names = append(names, name)
			}
			// Sorted so the schema, and any cache key built from it, is stable.
			sort.Strings(names)
			schema["required"] = names
		}
	}

	children := make([]interface{}, 0, len(props)+2)
	for _, p := range props {
		children = append(children, p)
	}
	children = append(children, schema["items"], schema["additionalProperties"])
	for _, c := range children {
		if m, ok := c.(map[string]interface{}); ok {
			ensureOpenAICompliance(m)
		}
	}
}
