package telegram

import (
	"sync"
	"time"
)

// UserState represents the current state of a user's conversation
type UserState struct {
	UserID      int64
	CurrentStep Step
	Data        map[string]string
	LastUpdated time.Time
}

// Step represents the current step in the conversation flow
type Step int

const (
	StepNone Step = iota
	StepInputDomainForCheck
	StepInputDomainForPlan
	StepInputDomainForFix
	StepConfirmFix
	StepInputRUA
	StepInputMXTarget
	StepInputSPFInclude
)

// State data keys
const (
	keyFixDomain = "fix_domain"
)

const stateTTL = 30 * time.Minute

// StateManager manages user states
type StateManager struct {
	states map[int64]*UserState
	mu     sync.RWMutex
	now    func() time.Time
}

// NewStateManager creates a new state manager
func NewStateManager() *StateManager {
	sm := newStateManager(time.Now)
	// Start cleanup goroutine
	go sm.cleanup()
	return sm
}

func newStateManager(now func() time.Time) *StateManager {
	return &StateManager{
		states: make(map[int64]*UserState),
		now:    now,
	}
}

// getState gets or creates a user state. Callers hold sm.mu.
func (sm *StateManager) getState(userID int64) *UserState {
	if state, exists := sm.states[userID]; exists && sm.now().Sub(state.LastUpdated) <= stateTTL {
		state.LastUpdated = sm.now()
		return state
	}

	state := &UserState{
		UserID:      userID,
		CurrentStep: StepNone,
		Data:        make(map[string]string),
		LastUpdated: sm.now(),
	}
	sm.states[userID] = state
	return state
}

// SetStep sets the current step for a user
func (sm *StateManager) SetStep(userID int64, step Step) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.getState(userID).CurrentStep = step
}

// SetData sets data for a user
func (sm *StateManager) SetData(userID int64, key, value string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.getState(userID).Data[key] = value
}

// GetData gets data for a user
func (sm *StateManager) GetData(userID int64, key string) (string, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	val, exists := sm.getState(userID).Data[key]
	return val, exists
}

// ClearState clears a user's state
func (sm *StateManager) ClearState(userID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.states, userID)
}

// GetCurrentStep gets the current step for a user
func (sm *StateManager) GetCurrentStep(userID int64) Step {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.getState(userID).CurrentStep
}

// TakePendingFix returns and clears the domain awaiting fix confirmation
func (sm *StateManager) TakePendingFix(userID int64) (string, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	state := sm.getState(userID)
	domainName, ok := state.Data[keyFixDomain]
	if !ok || state.CurrentStep != StepConfirmFix {
		return "", false
	}
	delete(sm.states, userID)
	return domainName, true
}

// cleanup removes old states periodically
func (sm *StateManager) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		sm.expire()
	}
}

func (sm *StateManager) expire() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	now := sm.now()
	for userID, state := range sm.states {
		if now.Sub(state.LastUpdated) > stateTTL {
			delete(sm.states, userID)
		}
	}
}
