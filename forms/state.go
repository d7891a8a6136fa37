// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package forms

import (
	"errors"
	"fmt"
)

// State is where a form is in its submit cycle.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateResult     State = "showing-result"
	StateError      State = "showing-error"
)

// Event moves a form between states.
type Event string

const (
	EventSubmit  Event = "submit"
	EventSucceed Event = "succeed"
	EventFail    Event = "fail"
	EventEdit    Event = "edit"
)

var ErrInvalidTransition = errors.New("invalid form transition")

// Next returns the state reached from s on ev. Submitting is allowed from any
// state since double submits are not guarded; the last response wins.
func (s State) Next(ev Event) (State, error) {
	switch ev {
	case EventSubmit:
		return StateSubmitting, nil
	case EventEdit:
		return StateIdle, nil
	case EventSucceed:
		if s == StateSubmitting {
			return StateResult, nil
		}
	case EventFail:
		if s == StateSubmitting {
			return StateError, nil
		}
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}

// Submission is the response body of one predict call.
type Submission struct {
	App    string         `json:"app"`
	State  State          `json:"state"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Errors []FieldError   `json:"errors,omitempty"`
}

// NewSubmission starts a submission in the submitting state.
func NewSubmission(app string) *Submission {
	s := &Submission{App: app, State: StateIdle}
	s.State, _ = s.State.Next(EventSubmit)
	return s
}

// Succeed records the prediction fields.
func (s *Submission) Succeed(result map[string]any) error {
	next, err := s.State.Next(EventSucceed)
	if err != nil {
		return err
	}
	s.State, s.Result = next, result
	return nil
}

// Fail records the message shown to the user.
func (s *Submission) Fail(msg string) error {
	next, err := s.State.Next(EventFail)
	if err != nil {
		return err
	}
	s.State, s.Error = next, msg
	return nil
}

// Reject sends the form back to idle with the field errors to show inline.
func (s *Submission) Reject(errs []FieldError) {
	s.State, _ = s.State.Next(EventEdit)
	s.Errors = errs
}
