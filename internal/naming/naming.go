// Package naming provides string conversion utilities for controller binding defaults.
package naming

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser handles proper title casing (strings.Title is deprecated).
var titleCaser = cases.Title(language.English)

// ToPascalCase converts a string to PascalCase.
// Separators (underscore, hyphen, dot, slash) trigger capitalization of the next word.
// Example: "user_profile" -> "UserProfile"
// Example: "api-client" -> "ApiClient"
func ToPascalCase(s string) string {
	if s == "" {
		return ""
	}

	var result strings.Builder
	for _, word := range strings.FieldsFunc(s, isSeparator) {
		result.WriteString(titleCaser.String(word))
	}
	return result.String()
}

// ToCamelCase converts a string to camelCase.
// Like PascalCase but with the first letter lowercase.
// Example: "user_profile" -> "userProfile"
func ToCamelCase(s string) string {
	pascal := ToPascalCase(s)
	if pascal == "" {
		return ""
	}
	runes := []rune(pascal)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || r == '.' || r == '/'
}

// ControllerName derives the default controller module name from a path
// template when no x-controller override appears at any level. The first
// non-parameter path segment is converted to PascalCase.
// Example: "/user-profiles/{id}" -> "UserProfiles"
// Example: "/" -> "Default"
func ControllerName(pathTemplate string) string {
	for _, seg := range strings.Split(pathTemplate, "/") {
		if seg == "" || strings.HasPrefix(seg, "{") {
			continue
		}
		return ToPascalCase(seg)
	}
	return "Default"
}

// FunctionName derives the default controller function name for an operation
// when no x-operation override appears. The operationId wins verbatim when
// present; otherwise the lowercase HTTP method is used.
// Example: operationId "listPets" -> "listPets"
// Example: no operationId, method "GET" -> "get"
func FunctionName(operationID, method string) string {
	if operationID != "" {
		return operationID
	}
	return strings.ToLower(method)
}
