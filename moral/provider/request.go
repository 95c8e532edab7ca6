package provider

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Section is one named block of input data sent alongside a system prompt.
type Section struct {
	Name  string
	Value any
}

// ObjectRequest asks for a JSON object matching Schema.
type ObjectRequest struct {
	// Name identifies the schema to the provider (letters, digits, '_' and '-').
	Name        string
	Prompt      string
	Data        []Section
	Schema      map[string]interface{}
	Temperature float64
}

// RenderSections renders sections as markdown headings followed by their content. Strings are
// used verbatim, slices become one JSON document per element and anything else is JSON.
func RenderSections(sections []Section) (string, error) {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		body, err := stringify(s.Value)
		if err != nil {
			return "", fmt.Errorf("render section %q: %w", s.Name, err)
		}
		parts = append(parts, "# "+s.Name+"\n\n"+body)
	}
	return strings.Join(parts, "\n\n"), nil
}

func stringify(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		items := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			s, err := stringify(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			items = append(items, s)
		}
		return strings.Join(items, "\n\n"), nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type cacheKeyFields struct {
	Prompt      string                 `json:"prompt"`
	Data        string                 `json:"data"`
	Schema      map[string]interface{} `json:"schema"`
	Model       string                 `json:"model"`
	Temperature float64                `json:"temperature"`
}

// CacheKey hashes everything that determines a generation result.
func CacheKey(prompt, renderedData string, schema map[string]interface{}, model string, temperature float64) (string, error) {
	b, err := json.Marshal(cacheKeyFields{
		Prompt:      prompt,
		Data:        renderedData,
		Schema:      schema,
		Model:       model,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
