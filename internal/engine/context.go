// Package engine executes triggered workflow runs: it matches inbound events
// to workflows, resolves linked parameters against prior step outputs and
// drives the action and reaction executors in step order.
package engine

// TriggerSlot is the reserved context key holding the inbound payload.
const TriggerSlot = "trigger"

// Context holds one run's step outputs, keyed by step order. It is built
// fresh per matched workflow and discarded when the run ends.
type Context struct {
	trigger map[string]interface{}
	outputs map[int]interface{}
}

// NewContext seeds a run context with the triggering payload.
func NewContext(trigger map[string]interface{}) *Context {
	return &Context{
		trigger: trigger,
		outputs: make(map[int]interface{}),
	}
}

// Trigger returns the inbound payload the run was started with.
func (c *Context) Trigger() map[string]interface{} {
	return c.trigger
}

// SetOutput records a step's output at its order. A failed step records nil
// so downstream links degrade to their fallback.
func (c *Context) SetOutput(order int, output interface{}) {
	c.outputs[order] = output
}

// Output returns the recorded output for a step order, or nil if the step
// has not run or failed.
func (c *Context) Output(order int) interface{} {
	return c.outputs[order]
}
