package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLaunchError_NotFound(t *testing.T) {
	err := &LaunchError{
		Executable:    "form",
		SearchedPaths: []string{"$PATH"},
	}

	require.Equal(t, `launch "form": not found in: [$PATH]`, err.Error())
	require.True(t, err.IsFormLinkError())
}

func TestLaunchError_StartFailure(t *testing.T) {
	root := errors.New("permission denied")
	err := &LaunchError{Executable: "/opt/form", Err: root}

	require.Equal(t, `launch "/opt/form": permission denied`, err.Error())
	require.ErrorIs(t, err, root)
}

func TestFormError_WithLog(t *testing.T) {
	err := &FormError{
		Message: "test.frm Line 3 --> Illegal character",
		Log:     []string{"FORM 4.3.1", "test.frm Line 3 --> Illegal character"},
	}

	require.Equal(t,
		"form: test.frm Line 3 --> Illegal character\nFORM 4.3.1\ntest.frm Line 3 --> Illegal character",
		err.Error(),
	)
	require.NoError(t, err.Unwrap())
	require.True(t, err.IsFormLinkError())
}

func TestFormError_WithUnderlyingError(t *testing.T) {
	root := errors.New("exit status 1")
	err := &FormError{Message: "engine exited unexpectedly", Err: root}

	require.Equal(t, "form: engine exited unexpectedly: exit status 1", err.Error())
	require.ErrorIs(t, err, root)
}

func TestProtocolError(t *testing.T) {
	err := &ProtocolError{Sequence: 4, Reason: "unexpected sentinel", Data: "__END_7__"}
	require.Equal(t, `protocol error (seq 4): unexpected sentinel: "__END_7__"`, err.Error())

	err = &ProtocolError{Sequence: 2, Reason: "output channel closed"}
	require.Equal(t, "protocol error (seq 2): output channel closed", err.Error())
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Op: "read", Sequence: 3, Err: context.DeadlineExceeded}

	require.Equal(t, "read timed out (seq 3): context deadline exceeded", err.Error())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClosedError(t *testing.T) {
	plain := &ClosedError{}
	require.Equal(t, "session closed", plain.Error())
	require.ErrorIs(t, plain, ErrClosed)

	cause := &FormError{Message: "==> Illegal statement"}
	wrapped := &ClosedError{Cause: cause}

	require.ErrorIs(t, wrapped, ErrClosed)

	formErr, ok := errors.AsType[*FormError](wrapped)
	require.True(t, ok)
	require.Same(t, cause, formErr)
}

func TestClosedError_UnwrapsToCause(t *testing.T) {
	cause := &TimeoutError{Op: "read", Sequence: 3, Err: context.DeadlineExceeded}
	err := error(&ClosedError{Cause: cause})

	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	got, ok := errors.AsType[*TimeoutError](err)
	require.True(t, ok)
	require.Same(t, cause, got)
}
