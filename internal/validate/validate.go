// Package validate holds the identifier grammars the session registry
// enforces on context ids and variable names. The context store and the
// expression engine do not import it; the engine's variable helpers reach
// these checks through the registry.
package validate

import "regexp"

// ContextIDPattern is the grammar for session-local context ids:
// letters, digits, underscore, hyphen, max 100 chars.
var ContextIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

const MaxContextIDLen = 100

// VariableNamePattern is the grammar for session variable names: a
// valid identifier, max 100 chars.
var VariableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const MaxVariableNameLen = 100

// reservedVariableNames blocks prototype-pollution-style names even
// though this implementation never touches a JS prototype chain — callers
// scripting against the sandbox may still expect these names to be off
// limits.
var reservedVariableNames = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// ContextID reports whether id is a legal context identifier.
func ContextID(id string) bool {
	return id != "" && len(id) <= MaxContextIDLen && ContextIDPattern.MatchString(id)
}

// VariableName reports whether name is a legal, non-reserved variable name.
func VariableName(name string) bool {
	if name == "" || len(name) > MaxVariableNameLen {
		return false
	}
	if reservedVariableNames[name] {
		return false
	}
	return VariableNamePattern.MatchString(name)
}
