package graph

import (
	"fmt"
	"regexp"
)

// ============================================================================
// Helper Functions
// ============================================================================

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkIdentifier guards labels, relationship types and property keys that
// end up spliced into queries or storage keys.
func checkIdentifier(kind, name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid %s %q", kind, name)
	}
	return nil
}

// normalizeValue turns decoded list values back into []string where every
// element is a string. Both Neo4j records and JSON hand lists back as []any.
func normalizeValue(val any) any {
	slice, ok := val.([]interface{})
	if !ok {
		return val
	}
	result := make([]string, 0, len(slice))
	for _, v := range slice {
		str, ok := v.(string)
		if !ok {
			return val
		}
		result = append(result, str)
	}
	return result
}

func normalizeProperties(props map[string]any) map[string]any {
	result := make(map[string]any, len(props))
	for k, v := range props {
		result[k] = normalizeValue(v)
	}
	return result
}

// GetString returns the string property key of n, or "" when absent
func GetString(n *Node, key string) string {
	if n == nil {
		return ""
	}
	if str, ok := n.Properties[key].(string); ok {
		return str
	}
	return ""
}

// GetStringSlice returns the list property key of n, or nil when absent
func GetStringSlice(n *Node, key string) []string {
	if n == nil {
		return nil
	}
	if slice, ok := n.Properties[key].([]string); ok {
		return slice
	}
	return nil
}
