package monitor

import (
	"fmt"
	"regexp"
	"strings"
)

// Class is the severity assigned to a diagnostic line.
type Class int

const (
	// ClassBenign covers banners, statistics and other informational output.
	ClassBenign Class = iota
	// ClassWarning is logged but never raised.
	ClassWarning
	// ClassFatal puts the session into the fatal state.
	ClassFatal
)

// String returns the lower-case name used in config files.
func (c Class) String() string {
	switch c {
	case ClassBenign:
		return "benign"
	case ClassWarning:
		return "warning"
	case ClassFatal:
		return "fatal"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// ParseClass parses a class name as written in config files.
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "benign", "info", "":
		return ClassBenign, nil
	case "warning", "warn":
		return ClassWarning, nil
	case "fatal", "error":
		return ClassFatal, nil
	default:
		return ClassBenign, fmt.Errorf("unknown diagnostic class %q", s)
	}
}

// Diagnostic is one classified line from the diagnostic channel.
type Diagnostic struct {
	Line  string
	Class Class
}

// Rule matches diagnostic lines to a class.
// Contains is a plain substring test; Regexp, when set, is used instead.
type Rule struct {
	Contains string
	Regexp   *regexp.Regexp
	Class    Class
}

// Match reports whether the rule applies to line.
func (r Rule) Match(line string) bool {
	if r.Regexp != nil {
		return r.Regexp.MatchString(line)
	}

	return r.Contains != "" && strings.Contains(line, r.Contains)
}

// DefaultRules returns the built-in classification table.
//
// FORM marks compile and runtime errors with "-->" or "==>" and prints
// "Program terminated" when it gives up. The list is not exhaustive; callers
// extend it through Options.DiagnosticRules.
func DefaultRules() []Rule {
	return []Rule{
		{Contains: "-->", Class: ClassFatal},
		{Contains: "==>", Class: ClassFatal},
		{Contains: "Program terminated", Class: ClassFatal},
		{Contains: "Warning", Class: ClassWarning},
	}
}

// Classifier assigns a Class to diagnostic lines using an ordered rule table.
// The first matching rule wins; unmatched lines are benign.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier from rules, evaluated in order.
func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// DefaultClassifier returns a classifier using DefaultRules.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules()...)
}

// Rules returns a copy of the rule table.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify returns the diagnostic for line.
func (c *Classifier) Classify(line string) Diagnostic {
	for _, r := range c.rules {
		if r.Match(line) {
			return Diagnostic{Line: line, Class: r.Class}
		}
	}

	return Diagnostic{Line: line, Class: ClassBenign}
}
