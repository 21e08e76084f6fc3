package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Call events plugins can be bound to.
const (
	EventRinging  = "ringing"
	EventAccepted = "accepted"
	EventDeclined = "declined"
)

// Event describes a call transition.
type Event struct {
	Name     string
	CallID   string
	Decision string
	Gesture  string
}

// Binding runs Plugin's Action whenever Event occurs.
type Binding struct {
	Event  string
	Plugin string
	Action string
	Config json.RawMessage
	Params json.RawMessage
}

// Run is the outcome of one bound action.
type Run struct {
	Event    Event
	Binding  Binding
	Response *Response
	Err      error
	Duration time.Duration
}

// Failed reports whether the action did not complete successfully.
func (r Run) Failed() bool {
	return r.Err != nil || r.Response == nil || !r.Response.Success
}

// Error describes why the run failed, or "" if it succeeded.
func (r Run) Error() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Response == nil:
		return "no response"
	case !r.Response.Success:
		return r.Response.Error
	}
	return ""
}

// Dispatcher runs the actions bound to call events.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	bindings []Binding
	log      *logrus.Entry
}

// NewDispatcher creates a Dispatcher for bindings.
func NewDispatcher(manager *Manager, executor *Executor, bindings []Binding, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		bindings: bindings,
		log:      log,
	}
}

// Bound reports whether any action is bound to event.
func (d *Dispatcher) Bound(event string) bool {
	for _, b := range d.bindings {
		if b.Event == event {
			return true
		}
	}
	return false
}

// Dispatch runs every action bound to ev, in binding order. Failures are
// logged and reported in the returned runs; they never stop later actions.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) []Run {
	var runs []Run
	for _, b := range d.bindings {
		if b.Event != ev.Name {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		run := d.run(ctx, ev, b)
		runs = append(runs, run)

		entry := d.log.WithFields(logrus.Fields{
			"event":    ev.Name,
			"call_id":  ev.CallID,
			"plugin":   b.Plugin,
			"action":   b.Action,
			"duration": run.Duration,
		})
		if run.Failed() {
			entry.WithField("error", run.Error()).Warn("plugin action failed")
		} else {
			entry.Info("plugin action executed")
		}
	}
	return runs
}

func (d *Dispatcher) run(ctx context.Context, ev Event, b Binding) Run {
	run := Run{Event: ev, Binding: b}

	plug, err := d.manager.Get(b.Plugin)
	if err != nil {
		run.Err = fmt.Errorf("%s: %w", b.Plugin, err)
		return run
	}
	if !plug.Manifest.HasAction(b.Action) {
		run.Err = fmt.Errorf("plugin %s has no action %q", b.Plugin, b.Action)
		return run
	}

	req := &Request{
		Action:   b.Action,
		Event:    ev.Name,
		CallID:   ev.CallID,
		Decision: ev.Decision,
		Gesture:  ev.Gesture,
		Config:   orEmptyObject(b.Config),
		Params:   orEmptyObject(b.Params),
	}

	start := time.Now()
	run.Response, run.Err = d.executor.Execute(ctx, plug, req)
	run.Duration = time.Since(start)
	return run
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}
