package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreditStateMachine(t *testing.T) {
	sm := NewCreditStateMachine()

	assert.True(t, sm.CanTransition("active", "transferred"))
	assert.True(t, sm.CanTransition("active", "retired"))

	// Terminal states never re-enter circulation.
	assert.False(t, sm.CanTransition("retired", "active"))
	assert.False(t, sm.CanTransition("retired", "transferred"))
	assert.False(t, sm.CanTransition("transferred", "active"))

	assert.Empty(t, sm.GetAllowedTransitions("retired"))
}

func TestVerificationStateMachine(t *testing.T) {
	sm := NewVerificationStateMachine()

	assert.True(t, sm.CanTransition("pending", "in_review"))
	assert.True(t, sm.CanTransition("in_review", "approved"))
	assert.True(t, sm.CanTransition("in_review", "rejected"))

	assert.False(t, sm.CanTransition("pending", "approved"))
	assert.False(t, sm.CanTransition("approved", "in_review"))
	assert.False(t, sm.CanTransition("rejected", "in_review"))
}

func TestProjectStateMachine(t *testing.T) {
	sm := NewProjectStateMachine()

	assert.True(t, sm.CanTransition("SUBMITTED", "UNDER_REVIEW"))
	assert.True(t, sm.CanTransition("UNDER_REVIEW", "VERIFIED"))
	assert.True(t, sm.CanTransition("REJECTED", "SUBMITTED"))

	assert.False(t, sm.CanTransition("COMPLETED", "ACTIVE"))
	assert.False(t, sm.CanTransition("DRAFT", "VERIFIED"))
}

func TestUnknownStateHasNoTransitions(t *testing.T) {
	sm := NewCreditStateMachine()

	assert.False(t, sm.CanTransition("nonexistent", "active"))
	assert.Empty(t, sm.GetAllowedTransitions("nonexistent"))
}
