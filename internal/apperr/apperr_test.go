package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := fmt.Errorf("handler: %w", AggregationFailure("portfolio.calculate_value", "failed to calculate portfolio value", cause))

	assert.Equal(t, KindAggregationFailure, KindOf(err))
	assert.True(t, Is(err, KindAggregationFailure))
	assert.ErrorIs(t, err, cause)
}

func TestKindOfPlainError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.False(t, Is(nil, KindUnknown))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	err := Unauthenticated("auth.verify", "token has expired", nil)
	assert.Equal(t, "auth.verify: token has expired", err.Error())

	err = Configuration("", "", errors.New("secret missing"))
	assert.Equal(t, "configuration_error: secret missing", err.Error())
}

func TestIsServerFault(t *testing.T) {
	t.Parallel()

	assert.False(t, IsServerFault(KindUnauthenticated))
	assert.True(t, IsServerFault(KindConfiguration))
	assert.True(t, IsServerFault(KindAggregationFailure))
	assert.True(t, IsServerFault(KindHistoryFetchFailure))
}
