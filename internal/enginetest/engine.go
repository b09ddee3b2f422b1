package enginetest

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/wagiedev/formlink-go/internal/framing"
)

// DefaultBanner is the first diagnostic line of the simulated engine.
const DefaultBanner = "FORM 4.3.1 (Apr 11 2023, v4.3.1) 64-bits"

// ErrTerminated is returned by Serve when the simulated engine stopped on an error.
var ErrTerminated = stderrors.New("program terminated")

// Options configures the simulated engine.
type Options struct {
	// Banner is written to the diagnostic stream at startup. Empty means
	// DefaultBanner; use "-" to write nothing.
	Banner string

	// Handshake performs FORM's pid exchange before reading blocks.
	Handshake bool

	// Pid is the process ID announced in the handshake.
	Pid int

	// Delay is slept before each #toexternal directive is answered.
	Delay time.Duration

	// WrapWidth wraps printed expressions at this width the way FORM wraps
	// long output for a terminal. Zero disables wrapping.
	WrapWidth int

	// ChunkSize splits every write on the result channel into pieces of at
	// most this many bytes. Zero writes whole directives.
	ChunkSize int

	// Hang makes the engine ignore the end of its input loop and block
	// until the context is cancelled.
	Hang bool

	// Extra is appended to the output of every #toexternal directive, to
	// simulate a desynchronised engine.
	Extra string

	// Warnings are written to the diagnostic stream after the banner.
	Warnings []string
}

// Engine is the simulated engine state.
type Engine struct {
	opts Options

	out  io.Writer
	diag io.Writer

	pending     map[string]string
	expressions map[string]string
	dollars     map[string]string
	defines     map[string]string

	line int
}

// New creates a simulated engine writing results to out and messages to diag.
func New(out, diag io.Writer, opts Options) *Engine {
	return &Engine{
		opts:        opts,
		out:         out,
		diag:        diag,
		pending:     make(map[string]string),
		expressions: make(map[string]string),
		dollars:     make(map[string]string),
		defines:     make(map[string]string),
	}
}

// Serve runs a simulated engine until its input loop ends, in is exhausted
// or ctx is cancelled. A statement error is reported on diag and returns
// ErrTerminated.
func Serve(ctx context.Context, in io.Reader, out, diag io.Writer, opts Options) error {
	return New(out, diag, opts).Run(ctx, in)
}

// Run reads and executes blocks from in.
func (e *Engine) Run(ctx context.Context, in io.Reader) error {
	switch e.opts.Banner {
	case "-":
	case "":
		fmt.Fprintln(e.diag, DefaultBanner)
	default:
		fmt.Fprintln(e.diag, e.opts.Banner)
	}

	for _, w := range e.opts.Warnings {
		fmt.Fprintln(e.diag, w)
	}

	r := bufio.NewReader(in)

	if e.opts.Handshake {
		if err := e.handshake(r); err != nil {
			return err
		}
	}

	for {
		block, err := readBlock(r)
		if err != nil {
			return e.finish(ctx, nil)
		}

		more, err := e.execute(ctx, block)
		if err != nil {
			return err
		}

		if !more {
			return e.finish(ctx, nil)
		}
	}
}

// finish ends the engine, or blocks until ctx is done when Hang is set.
func (e *Engine) finish(ctx context.Context, err error) error {
	if e.opts.Hang {
		<-ctx.Done()

		return ctx.Err()
	}

	return err
}

func (e *Engine) handshake(r *bufio.Reader) error {
	pid := strconv.Itoa(e.opts.Pid)
	if _, err := fmt.Fprintf(e.out, "%s\n", pid); err != nil {
		return err
	}

	reply, err := r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	if !strings.HasPrefix(strings.TrimSpace(reply), pid+",") {
		fmt.Fprintf(e.diag, "Bad handshake reply %q\n", strings.TrimSpace(reply))

		return ErrTerminated
	}

	_, err = io.WriteString(e.out, framing.HandshakeOK)

	return err
}

// readBlock reads lines up to the prompt line. It returns io.EOF if the
// input ends before a prompt.
func readBlock(r *bufio.Reader) ([]string, error) {
	var lines []string

	for {
		line, err := r.ReadString('\n')
		if line != "" || err == nil {
			line = strings.TrimRight(line, "\r\n")
			if line == framing.Prompt {
				return lines, nil
			}

			lines = append(lines, line)
		}

		if err != nil {
			return lines, io.EOF
		}
	}
}

var (
	defineRe     = regexp.MustCompile(`^#(re)?define\s+([A-Za-z][A-Za-z0-9_]*)\s+"([^"]*)"\s*$`)
	dollarRe     = regexp.MustCompile(`^#\s*\$([A-Za-z][A-Za-z0-9_]*)\s*=\s*(.*);\s*$`)
	toexternalRe = regexp.MustCompile(`^#toexternal\s+"([^"]*)"\s*(?:,(.*))?$`)
	preprocRe    = regexp.MustCompile("`([A-Za-z][A-Za-z0-9_]*)'")
	assignRe     = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_]*)\s*=\s*(.*)$`)
)

// execute runs one block and reports whether the input loop continues.
func (e *Engine) execute(ctx context.Context, block []string) (bool, error) {
	more := false

	var stmt strings.Builder

	for _, raw := range block {
		e.line++

		line := strings.TrimSpace(e.substitute(raw))

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			if stmt.Len() > 0 {
				return false, e.fail("Missing ; before preprocessor instruction")
			}

			loop, err := e.directive(ctx, line)
			if err != nil {
				return false, err
			}

			more = more || loop
		case strings.HasPrefix(line, "."):
			if stmt.Len() > 0 {
				return false, e.fail("Missing ; before module instruction")
			}

			done, err := e.module(line)
			if err != nil {
				return false, err
			}

			if done {
				return false, nil
			}
		default:
			stmt.WriteString(line)

			for {
				text := stmt.String()

				i := strings.IndexByte(text, ';')
				if i < 0 {
					break
				}

				if err := e.statement(text[:i]); err != nil {
					return false, err
				}

				stmt.Reset()
				stmt.WriteString(strings.TrimSpace(text[i+1:]))
			}
		}
	}

	if stmt.Len() > 0 {
		return false, e.fail("Missing ; at end of statement: " + stmt.String())
	}

	return more, nil
}

// substitute replaces `NAME' with the preprocessor variable, except in the
// definition itself.
func (e *Engine) substitute(line string) string {
	return preprocRe.ReplaceAllStringFunc(line, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := e.defines[name]; ok {
			return v
		}

		return m
	})
}

func (e *Engine) directive(ctx context.Context, line string) (bool, error) {
	if m := defineRe.FindStringSubmatch(line); m != nil {
		e.defines[m[2]] = m[3]

		return m[2] == framing.LoopVariable, nil
	}

	if m := dollarRe.FindStringSubmatch(line); m != nil {
		value, err := e.rhs(m[2])
		if err != nil {
			return false, err
		}

		e.dollars[m[1]] = value

		return false, nil
	}

	if m := toexternalRe.FindStringSubmatch(line); m != nil {
		return false, e.toexternal(ctx, m[1], m[2])
	}

	switch {
	case line == "#-", line == "#+", strings.HasPrefix(line, "#prompt"):
		return false, nil
	default:
		return false, e.fail("Unrecognized preprocessor instruction: " + line)
	}
}

func (e *Engine) toexternal(ctx context.Context, format, rawArgs string) error {
	if e.opts.Delay > 0 {
		timer := time.NewTimer(e.opts.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()

			return ctx.Err()
		}
	}

	var args []string

	if strings.TrimSpace(rawArgs) != "" {
		for a := range strings.SplitSeq(rawArgs, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}

	var b strings.Builder

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' || i+1 == len(format) {
			b.WriteByte(c)

			continue
		}

		i++

		switch format[i] {
		case '%':
			b.WriteByte('%')
		case 'E', '$':
			if len(args) == 0 {
				return e.fail("Not enough arguments in #toexternal")
			}

			v, err := e.lookup(format[i], args[0])
			if err != nil {
				return err
			}

			args = args[1:]

			b.WriteString(e.wrap(v))
		default:
			b.WriteByte('%')
			b.WriteByte(format[i])
		}
	}

	b.WriteString(e.opts.Extra)

	return e.emit(b.String())
}

func (e *Engine) lookup(kind byte, name string) (string, error) {
	if kind == '$' {
		v, ok := e.dollars[strings.TrimPrefix(name, "$")]
		if !ok {
			return "", e.fail("Undefined $-variable " + name)
		}

		return v, nil
	}

	v, ok := e.expressions[name]
	if !ok {
		return "", e.fail("Unknown expression " + name)
	}

	return v, nil
}

// module runs a module instruction and reports whether the program ended.
func (e *Engine) module(line string) (bool, error) {
	switch strings.ToLower(strings.TrimSuffix(line, ";")) {
	case ".sort", ".store", ".global":
		e.commit()

		return false, nil
	case ".clear":
		e.pending = make(map[string]string)
		e.expressions = make(map[string]string)

		return false, nil
	case ".end":
		e.commit()

		return true, nil
	default:
		return false, e.fail("Illegal module instruction: " + line)
	}
}

func (e *Engine) commit() {
	for k, v := range e.pending {
		e.expressions[k] = v
	}

	e.pending = make(map[string]string)
}

var ignoredStatements = map[string]bool{
	"s": true, "symbol": true, "symbols": true,
	"v": true, "vector": true, "vectors": true,
	"i": true, "index": true, "indices": true,
	"f": true, "function": true, "functions": true,
	"cf": true, "cfunction": true, "cfunctions": true,
	"autodeclare": true, "format": true, "print": true,
	"on": true, "off": true, "id": true, "identify": true,
	"multiply": true, "b": true, "bracket": true,
}

func (e *Engine) statement(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	keyword, rest, _ := strings.Cut(text, " ")
	keyword = strings.ToLower(keyword)

	switch {
	case keyword == "l" || keyword == "local" || keyword == "g" || keyword == "global":
		m := assignRe.FindStringSubmatch(strings.TrimSpace(rest))
		if m == nil {
			return e.fail("Illegal definition of expression: " + text)
		}

		value, err := e.rhs(m[2])
		if err != nil {
			return err
		}

		e.pending[m[1]] = value

		return nil
	case ignoredStatements[keyword]:
		return nil
	default:
		return e.fail("Unrecognized statement: " + text)
	}
}

// rhs validates an expression and returns it in printed form.
func (e *Engine) rhs(text string) (string, error) {
	text = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}

		return r
	}, text)

	if text == "" {
		return "", e.fail("Expression expected")
	}

	depth := 0

	for _, r := range text {
		switch {
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return "", e.fail("Unmatched parenthesis")
			}
		case unicode.IsLetter(r), unicode.IsDigit(r), strings.ContainsRune("+-*/^_$,.[]?", r):
		default:
			return "", e.fail(fmt.Sprintf("Illegal character: %c", r))
		}
	}

	if depth != 0 {
		return "", e.fail("Unmatched parenthesis")
	}

	if v, ok := sumIntegers(text); ok {
		return v, nil
	}

	return text, nil
}

// sumIntegers evaluates a sum of integer terms such as 1+2-3.
func sumIntegers(text string) (string, bool) {
	total := 0

	for i := 0; i < len(text); {
		sign := 1

		switch text[i] {
		case '+':
			i++
		case '-':
			sign = -1
			i++
		}

		j := i
		for j < len(text) && text[j] >= '0' && text[j] <= '9' {
			j++
		}

		if j == i {
			return "", false
		}

		n, err := strconv.Atoi(text[i:j])
		if err != nil {
			return "", false
		}

		total += sign * n
		i = j
	}

	return strconv.Itoa(total), true
}

// wrap formats a printed value like FORM does for a terminal: long values
// are split across lines, with a backslash when the split falls inside a
// number.
func (e *Engine) wrap(v string) string {
	w := e.opts.WrapWidth
	if w <= 0 || len(v) <= w {
		return v
	}

	var b strings.Builder

	b.WriteString("\n      ")

	for len(v) > w {
		b.WriteString(v[:w])

		if isDigit(v[w-1]) && isDigit(v[w]) {
			b.WriteString("\\")
		}

		b.WriteString("\n      ")

		v = v[w:]
	}

	b.WriteString(v)

	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// emit writes s to the result channel, in pieces if ChunkSize is set.
func (e *Engine) emit(s string) error {
	n := e.opts.ChunkSize
	if n <= 0 {
		n = len(s)
	}

	for len(s) > 0 {
		k := min(n, len(s))

		if _, err := io.WriteString(e.out, s[:k]); err != nil {
			return err
		}

		s = s[k:]
	}

	return nil
}

// fail reports a statement error the way FORM does and stops the engine.
func (e *Engine) fail(msg string) error {
	fmt.Fprintf(e.diag, "formlink Line %d --> %s\n", e.line, msg)
	fmt.Fprintln(e.diag, "Program terminated")

	return ErrTerminated
}
