// Package workflow defines the workflow and step model shared by the engine,
// the webhook lifecycle manager and the storage adapters.
package workflow

import "time"

// StepType distinguishes the two step kinds. Action steps originate or
// advance execution (triggers and getters), reaction steps are terminal side
// effects.
type StepType string

const (
	StepTypeAction   StepType = "action"
	StepTypeReaction StepType = "reaction"
)

// Visibility controls who can see a workflow. It is stored but never
// consulted by dispatch.
type Visibility string

const (
	VisibilityPrivate    Visibility = "private"
	VisibilityPublic     Visibility = "public"
	VisibilityFriendOnly Visibility = "friend_only"
)

// Workflow is a user-owned ordered sequence of steps.
type Workflow struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Visibility  Visibility `json:"visibility"`
	Active      bool       `json:"active"`
	Steps       []Step     `json:"steps"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Step belongs to exactly one workflow. Order is a dense 0-based sequence
// unique within the workflow.
type Step struct {
	ID         int64    `json:"id"`
	WorkflowID int64    `json:"workflow_id"`
	Order      int      `json:"step_order"`
	Type       StepType `json:"type"`
	Service    string   `json:"service"`
	Event      string   `json:"event"`
	Params     Params   `json:"params,omitempty"`
}

// Label returns the step's capability key, used in execution traces.
func (s *Step) Label() string {
	return s.Service + "." + s.Event
}

// Matches reports whether the step invokes the given capability.
func (s *Step) Matches(service, event string) bool {
	return s.Service == service && s.Event == event
}

// OrderedSteps returns the workflow's steps sorted by step order.
// The receiver's slice is not modified.
func (w *Workflow) OrderedSteps() []Step {
	steps := make([]Step, len(w.Steps))
	copy(steps, w.Steps)
	for i := 1; i < len(steps); i++ {
		for j := i; j > 0 && steps[j-1].Order > steps[j].Order; j-- {
			steps[j-1], steps[j] = steps[j], steps[j-1]
		}
	}
	return steps
}
