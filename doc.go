// Package formlink drives a FORM engine process from Go.
//
// A Session owns one engine subprocess. Statements are written in blocks;
// the printed value of an expression, $-variable or preprocessor variable is
// read back by name. Output is delimited with sentinels so each read returns
// exactly one value, and the engine's diagnostic channel is watched so an
// engine error surfaces as a FormError instead of a hang.
//
// # Basic Usage
//
//	ctx := context.Background()
//	s, err := formlink.Open(ctx, formlink.WithNativeMode())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Write(ctx, "Symbols x,y;\nLocal F = (x+y)^2;\n.sort"); err != nil {
//	    log.Fatal(err)
//	}
//
//	f, err := s.Read(ctx, "F")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(f)
//
// For one-shot programs use Eval, and for scoped use WithSession:
//
//	values, err := formlink.Eval(ctx, "Local F = 1+2;\n.sort", []string{"F"}, formlink.WithNativeMode())
//
// WithNativeMode selects FORM's own external mode, descriptors 3 and 4 with
// the startup handshake, which a stock FORM binary requires. Without it the
// session uses the engine's stdin and stdout.
//
// # Configuration
//
// Options are functional: WithExecutable, WithLayout, WithReadTimeout and so
// on. The engine command defaults to $FORM, then "form". A TOML file can
// provide the same settings:
//
//	opt, err := formlink.LoadConfigFile("formlink.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s, err := formlink.Open(ctx, opt, formlink.WithLogger(logger))
//
// # Error Handling
//
// The session becomes unusable after an engine error, a protocol violation
// or a timeout. The operation that hits the failure returns it; later ones
// return a ClosedError wrapping it:
//
//	_, err := s.Read(ctx, "F")
//	if formErr, ok := errors.AsType[*formlink.FormError](err); ok {
//	    log.Printf("engine error: %s\n%s", formErr.Message, strings.Join(formErr.Log, "\n"))
//	}
//	if errors.Is(err, formlink.ErrClosed) {
//	    // start a new session
//	}
//
// A Session runs one operation at a time. Calls made while another is in
// progress fail with ErrBusy.
package formlink
