package monitor

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultClassifier(t *testing.T) {
	t.Parallel()

	c := DefaultClassifier()

	tests := []struct {
		line string
		want Class
	}{
		{"FORM 4.3.1 (Apr 11 2023, v4.3.1) 64-bits", ClassBenign},
		{"init.frm Line 7 --> Illegal character", ClassFatal},
		{"==> Undefined symbol x", ClassFatal},
		{"Program terminated at line 12", ClassFatal},
		{"Warning: output truncated", ClassWarning},
		{"  Time =       0.00 sec    Generated terms =          1", ClassBenign},
		{"", ClassBenign},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()

			d := c.Classify(tt.line)
			require.Equal(t, tt.want, d.Class)
			require.Equal(t, tt.line, d.Line)
		})
	}
}

func TestClassifier_FirstMatchWins(t *testing.T) {
	t.Parallel()

	rules := append([]Rule{
		{Contains: "--> Warning", Class: ClassWarning},
	}, DefaultRules()...)

	c := NewClassifier(rules...)

	require.Equal(t, ClassWarning, c.Classify("x.frm Line 1 --> Warning: unused").Class)
	require.Equal(t, ClassFatal, c.Classify("x.frm Line 1 --> Illegal").Class)
}

func TestClassifier_Regexp(t *testing.T) {
	t.Parallel()

	c := NewClassifier(Rule{Regexp: regexp.MustCompile(`^Error\b`), Class: ClassFatal})

	require.Equal(t, ClassFatal, c.Classify("Error reading file").Class)
	require.Equal(t, ClassBenign, c.Classify("No Error here").Class)
}

func TestClassifier_RulesIsCopy(t *testing.T) {
	t.Parallel()

	c := DefaultClassifier()
	rules := c.Rules()
	rules[0].Class = ClassBenign

	require.Equal(t, ClassFatal, c.Classify("-->").Class)
}

func TestParseClass(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Class{
		"fatal":   ClassFatal,
		"ERROR":   ClassFatal,
		"warning": ClassWarning,
		"warn":    ClassWarning,
		"benign":  ClassBenign,
		"":        ClassBenign,
	} {
		got, err := ParseClass(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseClass("loud")
	require.Error(t, err)
}

func TestClass_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "fatal", ClassFatal.String())
	require.Equal(t, "warning", ClassWarning.String())
	require.Equal(t, "benign", ClassBenign.String())
	require.Equal(t, "class(9)", Class(9).String())
}
