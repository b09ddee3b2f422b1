package formlink

import (
	"context"

	"github.com/wagiedev/formlink-go/internal/framing"
)

// Eval runs program in a fresh session and returns the values of names.
//
// The program should leave the expressions to read active, usually by ending
// with a .sort. With no names Eval only checks that the program runs.
func Eval(ctx context.Context, program string, names []string, opts ...Option) ([]string, error) {
	var values []string

	err := WithSession(ctx, func(s Session) error {
		if err := s.Write(ctx, program); err != nil {
			return err
		}

		if len(names) == 0 {
			// A read round trip surfaces errors in the program.
			_, err := s.Read(ctx, "`"+framing.LoopVariable+"'")

			return err
		}

		var err error

		values, err = s.ReadMany(ctx, names...)

		return err
	}, opts...)
	if err != nil {
		return nil, err
	}

	return values, nil
}
