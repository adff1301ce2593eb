package tools

import (
	"math"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// ValidateArguments checks required fields and declared property types.
// A null value counts as absent. Properties not declared in the schema are
// ignored. Required fields are checked first, in schema order; type checks
// then run in property-name order so the reported field is deterministic.
func ValidateArguments(schema mcp.ToolInputSchema, args map[string]any) error {
	for _, field := range schema.Required {
		if v, ok := args[field]; !ok || v == nil {
			return &ArgumentError{Field: field, Reason: "is required"}
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := args[name]
		if value == nil {
			continue
		}
		want := propertyType(schema, name)
		if want == "" {
			continue
		}
		if !matchesType(want, value) {
			return &ArgumentError{Field: name, Reason: "must be " + article(want) + " " + want}
		}
	}
	return nil
}

func propertyType(schema mcp.ToolInputSchema, name string) string {
	prop, ok := schema.Properties[name].(map[string]any)
	if !ok {
		return ""
	}
	t, _ := prop["type"].(string)
	return t
}

func matchesType(want string, value any) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == math.Trunc(f)
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	default:
		return true
	}
}

func article(typ string) string {
	switch typ[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an"
	}
	return "a"
}
