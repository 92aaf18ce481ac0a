package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageIncludesInternal(t *testing.T) {
	base := New("TEST", "something failed", http.StatusBadRequest)
	require.Equal(t, "something failed", base.Error())

	wrapped := base.WithInternal(stderrors.New("disk full"))
	require.Equal(t, "something failed: disk full", wrapped.Error())
	require.Equal(t, base.Code, wrapped.Code)
}

func TestWrapPreservesOriginal(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, "operation failed")

	require.ErrorIs(t, err, cause)
	require.Equal(t, http.StatusInternalServerError, err.StatusCode)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrNotFound)
	require.Equal(t, ErrNotFound.Code, appErr.Code)

	generic := FromError(stderrors.New("unexpected"))
	require.Equal(t, ErrInternalServer.Code, generic.Code)
	require.Error(t, generic.Internal)
}

func TestSessionClosedStatus(t *testing.T) {
	require.Equal(t, http.StatusGone, ErrSessionClosed.StatusCode)
}
