// Package redos validates untrusted regular expressions before they ever
// reach regexp.Compile, rejecting shapes known to backtrack catastrophically
// under Go's RE2-adjacent engine misuse (nested quantifiers, quantified
// nested groups, excessive alternation) and enforcing a hard length cap.
// It is a leaf package with no dependency on the search or decompose
// components, so either can call it without creating a cross-component edge.
package redos

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxPatternLen is the hard length cap; longer patterns are rejected
// outright regardless of shape.
const MaxPatternLen = 500

// nestedQuantifier matches a quantified group whose own body ends in a
// quantifier, e.g. (a+)+ or (a*)+ — the classic catastrophic-backtracking
// shape.
var nestedQuantifier = regexp.MustCompile(`\([^()]*[+*][^()]*\)[+*]`)

// nestedGroupQuantifier matches a quantified group that itself contains
// another group, e.g. ((a)(b))+.
var nestedGroupQuantifier = regexp.MustCompile(`\([^()]*(?:\([^()]*\)[^()]*)+\)[+*]`)

const maxAlternations = 20

// Validate rejects patterns that are too long or match a known
// catastrophic-backtracking shape. It does not compile the pattern; a
// caller must still call regexp.Compile (or CompilePOSIX) and surface
// INVALID_REGEX on failure.
func Validate(pattern string) error {
	if len(pattern) > MaxPatternLen {
		return fmt.Errorf("pattern exceeds %d characters", MaxPatternLen)
	}
	if nestedQuantifier.MatchString(pattern) {
		return fmt.Errorf("nested quantifier shape rejected")
	}
	if nestedGroupQuantifier.MatchString(pattern) {
		return fmt.Errorf("nested-group quantifier shape rejected")
	}
	if n := strings.Count(pattern, "|"); n > maxAlternations {
		return fmt.Errorf("excessive alternation: %d branches (max %d)", n, maxAlternations)
	}
	return nil
}

// Warnings returns non-fatal advisories for shapes that are legal but
// expensive: high counts of optional groups or alternations. Callers may
// surface these to a client without rejecting the pattern.
func Warnings(pattern string) []string {
	var warnings []string
	if n := strings.Count(pattern, "?"); n > 10 {
		warnings = append(warnings, fmt.Sprintf("%d optional markers may slow matching", n))
	}
	if n := strings.Count(pattern, "|"); n > 8 {
		warnings = append(warnings, fmt.Sprintf("%d alternation branches may slow matching", n))
	}
	return warnings
}
