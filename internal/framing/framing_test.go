package framing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "__END_1__", Sentinel(1))
	require.Equal(t, "__END_18446744073709551615__", Sentinel(^uint64(0)))
}

func TestFrame(t *testing.T) {
	t.Parallel()

	got := string(Frame(3, "\n  Local F = 1;\n.sort\n\n"))

	require.Equal(t,
		"Local F = 1;\n.sort\n"+
			"#toexternal \"__END_3__\"\n"+
			"#redefine FORMLINKLOOPVAR \"0\"\n"+
			"__READY__\n",
		got,
	)
}

func TestFrame_EmptySource(t *testing.T) {
	t.Parallel()

	got := string(Frame(1, "   \n"))

	require.True(t, strings.HasPrefix(got, "#toexternal \"__END_1__\"\n"))
}

func TestFrame_DirectiveOnFreshLine(t *testing.T) {
	t.Parallel()

	// A block whose last statement has no trailing newline.
	got := string(Frame(2, "Local G = a+b;"))

	require.Contains(t, got, "Local G = a+b;\n#toexternal")
}

func TestFrameRead_Kinds(t *testing.T) {
	t.Parallel()

	got, err := FrameRead(5, []string{"F", "$n", "`ZERO_F'"})
	require.NoError(t, err)

	require.Equal(t,
		"#toexternal \"%E__END_5__\",F\n"+
			"#toexternal \"%$__END_6__\",$n\n"+
			"#toexternal \"`ZERO_F'__END_7__\"\n"+
			"#redefine FORMLINKLOOPVAR \"0\"\n"+
			"__READY__\n",
		string(got),
	)
}

func TestFrameRead_Factorized(t *testing.T) {
	t.Parallel()

	got, err := FrameRead(9, []string{"$x[]"})
	require.NoError(t, err)

	s := string(got)
	require.Contains(t, s, "#if `$x[0]'\n")
	require.Contains(t, s, "#toexternal \"(%$)\",$x[1]\n")
	require.Contains(t, s, "#toexternal \"*(%$)\",$x[`i']\n")
	require.Contains(t, s, "#toexternal \"(0)\"\n")
	require.Contains(t, s, "#toexternal \"__END_9__\"\n")
}

func TestFrameRead_InvalidNames(t *testing.T) {
	t.Parallel()

	for _, names := range [][]string{
		nil,
		{""},
		{"F", "  "},
		{"F\"G"},
		{"F\n"},
		{"F;"},
	} {
		_, err := FrameRead(1, names)
		require.Error(t, err, "%q", names)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindExpression, KindOf("F"))
	require.Equal(t, KindDollar, KindOf("$x"))
	require.Equal(t, KindFactorizedDollar, KindOf("$x[]"))
	require.Equal(t, KindPreprocessor, KindOf("`A'"))
	require.Equal(t, KindDollar, KindOf("$"))
}

func TestControlStatements(t *testing.T) {
	t.Parallel()

	require.Equal(t, "\n__READY__\n", string(Goodbye()))
	require.Equal(t, "#prompt __READY__\n", string(PromptDirective()))
	require.Equal(t, "#-\n", string(ListingOff()))
	require.Equal(t, "4242,17\n", string(HandshakeReply("4242\n", 17)))
}
