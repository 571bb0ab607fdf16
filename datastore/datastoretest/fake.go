// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package datastoretest

import (
	"context"
	"sync"

	"github.com/diffeo/go-datastore/datastore"
)

// Call records a single invocation of a Fake action.
type Call struct {
	// Action is the name of the action called.
	Action string

	// Params is a shallow copy of the parameters it was called
	// with.
	Params datastore.Dict

	// User is the user attached to the call's context.
	User string
}

// Response is a scripted action response.
type Response struct {
	Result datastore.Dict
	Err    error
}

// Fake is a scripted datastore that records every call.  Responses
// are queued per action with On; the last queued response for an
// action repeats.  An action with no queued response returns an
// empty dictionary.
type Fake struct {
	mu        sync.Mutex
	calls     []Call
	responses map[string][]Response
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{responses: make(map[string][]Response)}
}

// On queues a response for an action.  Returns the Fake for
// chaining.
func (f *Fake) On(action string, result datastore.Dict, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[action] = append(f.responses[action], Response{Result: result, Err: err})
	return f
}

// Action returns a recording action for any name.
func (f *Fake) Action(name string) (datastore.Action, error) {
	return func(ctx context.Context, params datastore.Dict) (datastore.Dict, error) {
		return f.call(ctx, name, params)
	}, nil
}

func (f *Fake) call(ctx context.Context, name string, params datastore.Dict) (datastore.Dict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := make(datastore.Dict, len(params))
	for k, v := range params {
		copied[k] = v
	}
	f.calls = append(f.calls, Call{Action: name, Params: copied, User: datastore.User(ctx)})

	queue := f.responses[name]
	if len(queue) == 0 {
		return datastore.Dict{}, nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[name] = queue[1:]
	}
	return resp.Result, resp.Err
}

// Calls returns every call made so far, in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the calls made to a single action, in order.
func (f *Fake) CallsTo(action string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []Call
	for _, call := range f.calls {
		if call.Action == action {
			result = append(result, call)
		}
	}
	return result
}
