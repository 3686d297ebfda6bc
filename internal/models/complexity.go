package models

import (
	"fmt"
	"strings"
)

// Complexity is the closed severity classification of an issue report.
type Complexity string

const (
	ComplexityNA     Complexity = "NA" // not a defect, e.g. a feature request
	ComplexityLow    Complexity = "LOW"
	ComplexityMedium Complexity = "MEDIUM"
	ComplexityHigh   Complexity = "HIGH"
)

// Complexities lists every member of the closed set in advisory order.
func Complexities() []Complexity {
	return []Complexity{ComplexityNA, ComplexityLow, ComplexityMedium, ComplexityHigh}
}

// Valid reports whether c is a member of the closed set.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexityNA, ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// IsDefect reports whether c classifies a defect. It is the view of the
// enum without NA.
func (c Complexity) IsDefect() bool {
	return c.Valid() && c != ComplexityNA
}

// Rank returns the advisory ordering NA < LOW < MEDIUM < HIGH, or -1 for
// values outside the closed set. Do not persist it.
func (c Complexity) Rank() int {
	for i, v := range Complexities() {
		if v == c {
			return i
		}
	}
	return -1
}

// ParseComplexity accepts the canonical names case-insensitively, plus the
// numeric forms 0-3.
func ParseComplexity(s string) (Complexity, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "0", "N/A":
		v = string(ComplexityNA)
	case "1":
		v = string(ComplexityLow)
	case "2":
		v = string(ComplexityMedium)
	case "3":
		v = string(ComplexityHigh)
	}
	c := Complexity(v)
	if !c.Valid() {
		return "", fmt.Errorf("unknown complexity %q (want one of NA, LOW, MEDIUM, HIGH)", s)
	}
	return c, nil
}
