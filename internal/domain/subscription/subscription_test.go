package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusActive, StatusCancelling, true},
		{StatusActive, StatusCancelled, true},
		{StatusCancelling, StatusCancelled, true},
		{StatusCancelling, StatusActive, false},
		{StatusCancelled, StatusActive, false},
		{StatusCancelled, StatusCancelling, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestCancelDeferredThenFinal(t *testing.T) {
	s, err := NewSubscription("usr_abc", "sub_ext_1", "ctm_1", []string{"pro_monthly"})
	require.NoError(t, err)
	require.Equal(t, StatusActive, s.Status)

	require.NoError(t, s.Cancel(false))
	assert.Equal(t, StatusCancelling, s.Status)

	require.NoError(t, s.Transition(StatusCancelled))
	assert.Equal(t, StatusCancelled, s.Status)

	assert.Error(t, s.Transition(StatusActive), "no backward transition")
}

func TestCancelImmediateSkipsCancelling(t *testing.T) {
	s, err := NewSubscription("usr_abc", "sub_ext_1", "ctm_1", nil)
	require.NoError(t, err)

	require.NoError(t, s.Cancel(true))
	assert.Equal(t, StatusCancelled, s.Status)
}

func TestTransitionIdempotent(t *testing.T) {
	s, err := NewSubscription("usr_abc", "sub_ext_1", "ctm_1", nil)
	require.NoError(t, err)

	require.NoError(t, s.Cancel(true))
	assert.NoError(t, s.Transition(StatusCancelled), "same-state transition is a no-op")
}

func TestNewActiveEntryValidation(t *testing.T) {
	_, err := NewActiveEntry("", "pro_monthly", "sub_ext_1")
	assert.Error(t, err)
	_, err = NewActiveEntry("usr_abc", "", "sub_ext_1")
	assert.Error(t, err)
	_, err = NewActiveEntry("usr_abc", "pro_monthly", "")
	assert.Error(t, err)

	e, err := NewActiveEntry("usr_abc", "pro_monthly", "sub_ext_1")
	require.NoError(t, err)
	assert.Equal(t, "usr_abc", e.UID)
}
