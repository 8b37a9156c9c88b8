package chainz

import (
	"encoding/json"
	"strings"

	"github.com/zoobzio/sentinel"
)

// ToolArgs is the argument schema every tool accepts: a single string.
type ToolArgs struct {
	Input string `json:"input" desc:"Plain text input for the tool"`
}

// generateJSONSchema builds a JSON Schema object from a Go struct type using sentinel.
func generateJSONSchema[T any]() map[string]any {
	metadata := sentinel.Inspect[T]()

	return map[string]any{
		"type":                 "object",
		"properties":           buildProperties(metadata.Fields),
		"required":             buildRequiredFields(metadata.Fields),
		"additionalProperties": false,
	}
}

// toolArgsSchema returns the schema describing ToolArgs.
func toolArgsSchema() map[string]any {
	return generateJSONSchema[ToolArgs]()
}

// schemaString renders a schema for inclusion in a prompt.
func schemaString(schema map[string]any) string {
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// buildProperties converts field metadata to JSON Schema properties.
func buildProperties(fields []sentinel.FieldMetadata) map[string]any {
	properties := make(map[string]any)

	for _, field := range fields {
		jsonName := getJSONFieldName(field)
		if jsonName == "-" {
			continue
		}

		prop := map[string]any{
			"type": goTypeToJSONType(field.Type),
		}
		if desc, ok := field.Tags["desc"]; ok {
			prop["description"] = desc
		}
		properties[jsonName] = prop
	}

	return properties
}

// buildRequiredFields lists fields without omitempty.
func buildRequiredFields(fields []sentinel.FieldMetadata) []string {
	required := []string{}

	for _, field := range fields {
		jsonName := getJSONFieldName(field)
		if jsonName == "-" {
			continue
		}
		if !hasOmitempty(field) {
			required = append(required, jsonName)
		}
	}

	return required
}

// getJSONFieldName extracts the JSON field name from metadata.
func getJSONFieldName(field sentinel.FieldMetadata) string {
	if jsonTag, ok := field.Tags["json"]; ok {
		parts := strings.Split(jsonTag, ",")
		if len(parts) > 0 && parts[0] != "" {
			return parts[0]
		}
	}
	return strings.ToLower(field.Name[:1]) + field.Name[1:]
}

// hasOmitempty checks if the json tag contains omitempty.
func hasOmitempty(field sentinel.FieldMetadata) bool {
	if jsonTag, ok := field.Tags["json"]; ok {
		return strings.Contains(jsonTag, "omitempty")
	}
	return false
}

// goTypeToJSONType maps Go types to JSON Schema types.
func goTypeToJSONType(goType string) string {
	switch {
	case strings.HasPrefix(goType, "string"):
		return "string"
	case strings.HasPrefix(goType, "int"), strings.HasPrefix(goType, "uint"):
		return "integer"
	case strings.HasPrefix(goType, "float"):
		return "number"
	case strings.HasPrefix(goType, "bool"):
		return "boolean"
	case strings.HasPrefix(goType, "[]"):
		return "array"
	default:
		return "object"
	}
}
