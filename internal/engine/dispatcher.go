package engine

import (
	"context"
	"fmt"
	"strconv"

	"workflow-engine/internal/catalog"
	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/storage"
	"workflow-engine/internal/workflow"
)

// Executor runs one capability for a user with fully resolved parameters.
// Implemented by the action and reaction executors.
type Executor interface {
	Execute(ctx context.Context, service, event string, userID int64, params map[string]interface{}) (map[string]interface{}, error)
}

// StepResult records the outcome of one executed step. The slice returned by
// Dispatch is the auditable trace for one inbound event.
type StepResult struct {
	Success bool        `json:"success"`
	Step    string      `json:"step"`
	Result  interface{} `json:"result,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Dispatcher matches inbound events to workflows and runs them.
type Dispatcher struct {
	store     storage.Storage
	catalog   *catalog.Registry
	actions   Executor
	reactions Executor
	logger    logging.Logger
}

// NewDispatcher wires the dispatcher to its storage, capability table and
// executors.
func NewDispatcher(store storage.Storage, caps *catalog.Registry, actions, reactions Executor) *Dispatcher {
	return &Dispatcher{
		store:     store,
		catalog:   caps,
		actions:   actions,
		reactions: reactions,
		logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "dispatcher"}),
	}
}

// Dispatch runs every active workflow whose trigger matches the inbound
// (service, event, payload) and returns one StepResult per executed step, in
// execution order. The workflow set is read once up front; edits made while
// a dispatch is in flight do not affect it.
func (d *Dispatcher) Dispatch(ctx context.Context, service, event string, payload map[string]interface{}) ([]StepResult, error) {
	workflows, err := d.store.MatchingWorkflows(ctx, service, event)
	if err != nil {
		return nil, err
	}

	results := []StepResult{}
	matched := 0
	for _, wf := range workflows {
		if !d.workflowMatches(wf, service, event, payload) {
			continue
		}
		matched++
		results = append(results, d.runWorkflow(ctx, wf, service, event, payload)...)
	}

	d.logger.Info("Dispatched event",
		logging.Field{Key: "service", Value: service},
		logging.Field{Key: "event", Value: event},
		logging.Field{Key: "workflows", Value: matched},
		logging.Field{Key: "steps", Value: len(results)})
	return results, nil
}

// workflowMatches reports whether any trigger step in the workflow matches
// the payload's correlation field. A step that does not store the field is
// an open match; a step that stores it matches only the identical value.
func (d *Dispatcher) workflowMatches(wf *workflow.Workflow, service, event string, payload map[string]interface{}) bool {
	capability, ok := d.catalog.Lookup(service, event)
	if !ok {
		return false
	}

	for _, step := range wf.Steps {
		if step.Type != workflow.StepTypeAction || !step.Matches(service, event) {
			continue
		}
		if d.stepMatches(&step, capability, payload) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) stepMatches(step *workflow.Step, capability catalog.Capability, payload map[string]interface{}) bool {
	if capability.CorrelationKey == "" {
		return true
	}
	incoming, ok := payload[capability.CorrelationKey]
	if !ok {
		return true
	}

	if capability.CorrelationSource == catalog.CorrelateOnStepID {
		return equalValues(incoming, step.ID)
	}

	stored, ok := step.Params.GetLiteral(capability.CorrelationKey)
	if !ok || workflow.Empty(stored) {
		return true
	}
	return equalValues(incoming, stored)
}

func (d *Dispatcher) runWorkflow(ctx context.Context, wf *workflow.Workflow, service, event string, payload map[string]interface{}) []StepResult {
	steps := wf.OrderedSteps()
	runCtx := NewContext(payload)

	// every step matching the triggering pair shares the raw payload
	for _, step := range steps {
		if step.Type == workflow.StepTypeAction && step.Matches(service, event) {
			runCtx.SetOutput(step.Order, payload)
		}
	}

	var results []StepResult
	for _, step := range steps {
		if step.Type != workflow.StepTypeAction || step.Matches(service, event) {
			continue
		}
		params := ResolveParams(step.Params, runCtx)
		output, err := d.actions.Execute(ctx, step.Service, step.Event, wf.UserID, params)
		if err != nil {
			runCtx.SetOutput(step.Order, nil)
			results = append(results, failedResult(&step, err))
			d.logger.Warn("Action step failed",
				logging.Field{Key: "workflow_id", Value: wf.ID},
				logging.Field{Key: "step", Value: step.Label()},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		runCtx.SetOutput(step.Order, outputValue(output))
		results = append(results, StepResult{Success: true, Step: step.Label(), Result: output})
	}

	for _, step := range steps {
		if step.Type != workflow.StepTypeReaction {
			continue
		}
		params := ResolveParams(step.Params, runCtx)
		ApplyMessageFallback(params, runCtx)
		output, err := d.reactions.Execute(ctx, step.Service, step.Event, wf.UserID, params)
		if err != nil {
			results = append(results, failedResult(&step, err))
			d.logger.Warn("Reaction step failed",
				logging.Field{Key: "workflow_id", Value: wf.ID},
				logging.Field{Key: "step", Value: step.Label()},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		results = append(results, StepResult{Success: true, Step: step.Label(), Result: output})
	}

	return results
}

func failedResult(step *workflow.Step, err error) StepResult {
	return StepResult{Success: false, Step: step.Label(), Error: err.Error()}
}

// outputValue keeps nil maps out of the context so links against an empty
// output degrade to their fallback.
func outputValue(output map[string]interface{}) interface{} {
	if output == nil {
		return nil
	}
	return output
}

// equalValues compares a payload value against a stored correlation value.
// JSON decoding leaves numbers as float64 and ids often arrive as strings,
// so both sides compare by their canonical string form.
func equalValues(a, b interface{}) bool {
	return canonical(a) == canonical(b)
}

func canonical(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
