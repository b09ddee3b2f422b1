package formlink

import (
	"context"
	"fmt"
)

// WithSession opens a session, runs fn with it and closes it afterwards.
//
// The error from fn is returned unchanged. Close never fails, so cleanup
// cannot mask it.
//
// Example usage:
//
//	err := formlink.WithSession(ctx, func(s formlink.Session) error {
//	    if err := s.Write(ctx, "Local F = 1+2;\n.sort"); err != nil {
//	        return err
//	    }
//	    f, err := s.Read(ctx, "F")
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(f)
//	    return nil
//	},
//	    formlink.WithLogger(log),
//	)
func WithSession(ctx context.Context, fn func(Session) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s, err := Open(ctx, opts...)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	defer func() { _ = s.Close() }()

	return fn(s)
}
