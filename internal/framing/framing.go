package framing

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// SentinelPrefix starts every sentinel token.
	SentinelPrefix = "__END_"
	// SentinelSuffix ends every sentinel token.
	SentinelSuffix = "__"

	// Prompt is the line that ends one block of external input.
	Prompt = "__READY__"

	// LoopVariable is the preprocessor variable driving the engine's input loop.
	// Redefining it before the prompt keeps the loop running; a prompt without
	// the redefinition lets the loop, and the engine, terminate.
	LoopVariable = "FORMLINKLOOPVAR"

	// HandshakeOK is what the engine prints once its init script is running.
	HandshakeOK = "OK"
)

// Kind identifies how a named entity is extracted from the engine.
type Kind int

const (
	// KindExpression is an expression such as F.
	KindExpression Kind = iota
	// KindDollar is a $-variable such as $x.
	KindDollar
	// KindFactorizedDollar is a factorized $-variable written $x[].
	KindFactorizedDollar
	// KindPreprocessor is a preprocessor variable written `A'.
	KindPreprocessor
)

// KindOf classifies a read name.
func KindOf(name string) Kind {
	switch {
	case len(name) >= 2 && name[0] == '`' && name[len(name)-1] == '\'':
		return KindPreprocessor
	case len(name) >= 3 && name[0] == '$' && strings.HasSuffix(name, "[]"):
		return KindFactorizedDollar
	case len(name) >= 1 && name[0] == '$':
		return KindDollar
	default:
		return KindExpression
	}
}

// Sentinel returns the token marking the end of output for seq.
func Sentinel(seq uint64) string {
	return SentinelPrefix + strconv.FormatUint(seq, 10) + SentinelSuffix
}

// Frame encodes a statement block followed by the sentinel directive for seq.
//
// The source is trimmed like the engine's own input reader would see it, and
// the directive always starts on a fresh line so it stays valid whatever the
// block ends with.
func Frame(seq uint64, src string) []byte {
	var b strings.Builder

	if src = strings.TrimSpace(src); src != "" {
		b.WriteString(src)
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "#toexternal \"%s\"\n", Sentinel(seq))
	writeContinue(&b)

	return []byte(b.String())
}

// FrameRead encodes the directives printing each name followed by its sentinel.
// Names get consecutive sequence numbers starting at first.
func FrameRead(first uint64, names []string) ([]byte, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("frame read: no names")
	}

	var b strings.Builder

	for i, name := range names {
		if err := validateName(name); err != nil {
			return nil, err
		}

		end := Sentinel(first + uint64(i))

		switch KindOf(name) {
		case KindPreprocessor:
			fmt.Fprintf(&b, "#toexternal \"%s%s\"\n", name, end)
		case KindFactorizedDollar:
			writeFactorized(&b, name[1:len(name)-2], end)
		case KindDollar:
			fmt.Fprintf(&b, "#toexternal \"%%$%s\",%s\n", end, name)
		default:
			fmt.Fprintf(&b, "#toexternal \"%%E%s\",%s\n", end, name)
		}
	}

	writeContinue(&b)

	return []byte(b.String()), nil
}

// writeFactorized prints a factorized $-variable as a product of
// parenthesised factors, or the plain value when it was never factorized.
func writeFactorized(b *strings.Builder, v, end string) {
	fmt.Fprintf(b, "#if `$%s[0]'\n", v)
	fmt.Fprintf(b, "#toexternal \"(%%$)\",$%s[1]\n", v)
	fmt.Fprintf(b, "#do i=2,`$%s[0]'\n", v)
	fmt.Fprintf(b, "#toexternal \"*(%%$)\",$%s[`i']\n", v)
	b.WriteString("#enddo\n")
	b.WriteString("#else\n")
	fmt.Fprintf(b, "#if termsin($%s)\n", v)
	fmt.Fprintf(b, "#toexternal \"%%$\",$%s\n", v)
	b.WriteString("#else\n")
	b.WriteString("#toexternal \"(0)\"\n")
	b.WriteString("#endif\n")
	b.WriteString("#endif\n")
	fmt.Fprintf(b, "#toexternal \"%s\"\n", end)
}

// writeContinue ends the block and keeps the engine's input loop alive.
func writeContinue(b *strings.Builder) {
	fmt.Fprintf(b, "#redefine %s \"0\"\n%s\n", LoopVariable, Prompt)
}

// validateName rejects names that would break the directive syntax.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("frame read: empty name")
	}

	if strings.ContainsAny(name, "\"\n\r;") {
		return fmt.Errorf("frame read: invalid name %q", name)
	}

	return nil
}

// Goodbye is the graceful termination statement: a prompt without the loop
// redefinition, which ends the engine's input loop.
func Goodbye() []byte {
	return []byte("\n" + Prompt + "\n")
}

// PromptDirective sets the engine's input prompt to Prompt.
func PromptDirective() []byte {
	return []byte("#prompt " + Prompt + "\n")
}

// ListingOff turns off the echo of input statements on the diagnostic channel.
func ListingOff() []byte {
	return []byte("#-\n")
}

// HandshakeReply answers the engine's "pid" greeting with "pid,ppid".
func HandshakeReply(enginePID string, hostPID int) []byte {
	return []byte(strings.TrimSpace(enginePID) + "," + strconv.Itoa(hostPID) + "\n")
}
