//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	formlink "github.com/wagiedev/formlink-go"
)

// openForm starts a real FORM engine in its native pipe mode, skipping the
// test when none is installed.
func openForm(t *testing.T, opts ...formlink.Option) formlink.Session {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	base := []formlink.Option{
		formlink.WithNativeMode(),
		formlink.WithLogScrollback(50),
	}

	s, err := formlink.Open(ctx, append(base, opts...)...)
	skipIfFormNotInstalled(t, err)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func skipIfFormNotInstalled(t *testing.T, err error) {
	t.Helper()

	if launchErr, ok := errors.AsType[*formlink.LaunchError](err); ok && len(launchErr.SearchedPaths) > 0 {
		t.Skip("FORM not installed")
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	return ctx
}
