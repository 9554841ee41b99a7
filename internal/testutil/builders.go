package testutil

import (
	"workflow-engine/internal/workflow"
)

// WorkflowBuilder helps build test workflows
type WorkflowBuilder struct {
	wf *workflow.Workflow
}

// NewWorkflowBuilder creates a new workflow builder
func NewWorkflowBuilder() *WorkflowBuilder {
	return &WorkflowBuilder{
		wf: &workflow.Workflow{
			UserID:     1,
			Name:       "test-workflow",
			Visibility: workflow.VisibilityPrivate,
			Active:     true,
		},
	}
}

func (b *WorkflowBuilder) WithUser(userID int64) *WorkflowBuilder {
	b.wf.UserID = userID
	return b
}

func (b *WorkflowBuilder) WithName(name string) *WorkflowBuilder {
	b.wf.Name = name
	return b
}

func (b *WorkflowBuilder) Inactive() *WorkflowBuilder {
	b.wf.Active = false
	return b
}

// WithTrigger appends an action step for (service, event) at the next order
func (b *WorkflowBuilder) WithTrigger(service, event string, params workflow.Params) *WorkflowBuilder {
	return b.withStep(workflow.StepTypeAction, service, event, params)
}

// WithAction is an alias of WithTrigger; trigger and mid-workflow getter
// steps share the action step type
func (b *WorkflowBuilder) WithAction(service, event string, params workflow.Params) *WorkflowBuilder {
	return b.withStep(workflow.StepTypeAction, service, event, params)
}

func (b *WorkflowBuilder) WithReaction(service, event string, params workflow.Params) *WorkflowBuilder {
	return b.withStep(workflow.StepTypeReaction, service, event, params)
}

func (b *WorkflowBuilder) withStep(stepType workflow.StepType, service, event string, params workflow.Params) *WorkflowBuilder {
	if params == nil {
		params = workflow.Params{}
	}
	b.wf.Steps = append(b.wf.Steps, workflow.Step{
		Order:   len(b.wf.Steps),
		Type:    stepType,
		Service: service,
		Event:   event,
		Params:  params,
	})
	return b
}

func (b *WorkflowBuilder) Build() *workflow.Workflow {
	return b.wf
}
