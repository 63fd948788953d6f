package workflows

// StateMachine enforces allowed status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewCreditStateMachine returns the state machine for credit entries.
// Transfers and retirements are one-way: nothing leaves a terminal state.
func NewCreditStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"active":      {"transferred", "retired"},
			"transferred": {},
			"retired":     {},
		},
	}
}

// NewVerificationStateMachine returns the state machine for verification requests
func NewVerificationStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"pending":   {"in_review"},
			"in_review": {"approved", "rejected"},
			"approved":  {},
			"rejected":  {},
		},
	}
}

// NewProjectStateMachine returns the state machine for project statuses
func NewProjectStateMachine() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"DRAFT":        {"SUBMITTED"},
			"SUBMITTED":    {"UNDER_REVIEW"},
			"UNDER_REVIEW": {"VERIFIED", "REJECTED"},
			"VERIFIED":     {"ACTIVE"},
			"ACTIVE":       {"COMPLETED", "SUSPENDED"},
			"COMPLETED":    {},
			"REJECTED":     {"SUBMITTED"}, // allow resubmission after rejection
			"SUSPENDED":    {"ACTIVE"},
		},
	}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
