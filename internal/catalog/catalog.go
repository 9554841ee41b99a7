// Package catalog holds the static table of capabilities the engine can
// trigger on or execute. The registry is built once at startup and immutable
// afterwards; unknown or duplicate capability keys are rejected at build
// time, not at call time.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"workflow-engine/internal/workflow"
)

// TriggerMode describes how a trigger-capable capability is driven.
type TriggerMode string

const (
	// TriggerNone marks getter capabilities invoked mid-workflow only
	TriggerNone TriggerMode = ""
	// TriggerPush requires a remote webhook subscription
	TriggerPush TriggerMode = "push"
	// TriggerTimer is driven by the internal polling scheduler
	TriggerTimer TriggerMode = "timer"
	// TriggerEvent is fed by an inbound delivery that needs no subscription
	TriggerEvent TriggerMode = "event"
)

// CorrelationSource says where the step-side value for correlation matching
// comes from.
type CorrelationSource string

const (
	// CorrelateOnParam compares the payload field against the same field in
	// the step's parameters; a step without the parameter matches any payload
	CorrelateOnParam CorrelationSource = "param"
	// CorrelateOnStepID compares the payload field against the step's own id
	CorrelateOnStepID CorrelationSource = "step_id"
)

// Capability describes one (service, event) pair.
type Capability struct {
	Service string
	Event   string
	Title   string
	Kind    workflow.StepType

	// Trigger mode; meaningful for action capabilities only
	Trigger TriggerMode

	// CorrelationKey is the payload field narrowing which trigger steps an
	// inbound event matches; empty means every step of this capability
	// matches. The keys mirror what each provider actually delivers.
	CorrelationKey    string
	CorrelationSource CorrelationSource

	RequiredParams []string
	OptionalParams []string
}

// Key returns the capability's registry key.
func (c Capability) Key() string {
	return c.Service + "." + c.Event
}

// Registry is an immutable capability table.
type Registry struct {
	mu   sync.RWMutex
	caps map[string]Capability
}

// New builds a registry from the given capabilities. Duplicate or malformed
// entries fail the build.
func New(caps []Capability) (*Registry, error) {
	r := &Registry{caps: make(map[string]Capability, len(caps))}
	for _, c := range caps {
		if c.Service == "" || c.Event == "" {
			return nil, fmt.Errorf("capability missing service or event: %+v", c)
		}
		if c.Kind != workflow.StepTypeAction && c.Kind != workflow.StepTypeReaction {
			return nil, fmt.Errorf("capability %s has unknown kind %q", c.Key(), c.Kind)
		}
		if c.Kind == workflow.StepTypeReaction && c.Trigger != TriggerNone {
			return nil, fmt.Errorf("reaction capability %s cannot be a trigger", c.Key())
		}
		if _, exists := r.caps[c.Key()]; exists {
			return nil, fmt.Errorf("duplicate capability %s", c.Key())
		}
		if c.CorrelationKey != "" && c.CorrelationSource == "" {
			c.CorrelationSource = CorrelateOnParam
		}
		r.caps[c.Key()] = c
	}
	return r, nil
}

// MustNew builds a registry and panics on error. Intended for the static
// default table.
func MustNew(caps []Capability) *Registry {
	r, err := New(caps)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the capability for (service, event).
func (r *Registry) Lookup(service, event string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caps[service+"."+event]
	return c, ok
}

// All returns every registered capability sorted by key.
func (r *Registry) All() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caps)
}
