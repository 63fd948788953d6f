package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := InvalidQuantity("transfer quantity %.3f exceeds available balance %.3f", 1200.0, 1000.0)

	assert.Equal(t, KindInvalidQuantity, KindOf(err))
	assert.Equal(t, "transfer quantity 1200.000 exceeds available balance 1000.000", err.Error())
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	base := NotFound("credit not found")
	wrapped := fmt.Errorf("loading ledger entry: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindUnauthorized))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, KindInvalidState, "vote could not be recorded")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindInvalidState, KindOf(err))
	assert.Equal(t, "vote could not be recorded", err.Error())
}

func TestUnclassifiedErrorHasEmptyKind(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain failure")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
