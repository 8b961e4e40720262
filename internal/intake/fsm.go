// Package intake implements the per-user registration conversation.
//
// The conversation is a linear state machine. Step is the pure transition
// function; Engine owns one Machine per user and performs the commit into
// the registry when the last answer is accepted.
package intake

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

// State is a position in the intake conversation.
type State int

const (
	Idle State = iota
	AwaitName
	AwaitDays
	AwaitArrivalDate
	AwaitCity
	AwaitPhone
	AwaitBirthDate
	AwaitGender
)

var stateNames = map[State]string{
	Idle:             "idle",
	AwaitName:        "name",
	AwaitDays:        "days",
	AwaitArrivalDate: "arrival_date",
	AwaitCity:        "city",
	AwaitPhone:       "phone",
	AwaitBirthDate:   "birth_date",
	AwaitGender:      "gender",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// EventKind classifies an intake event.
type EventKind int

const (
	// EventBegin starts (or restarts) the conversation.
	EventBegin EventKind = iota
	// EventAnswer carries the user's answer to the current question.
	EventAnswer
	// EventCancel abandons the conversation.
	EventCancel
)

// Event is one input to the machine.
type Event struct {
	Kind  EventKind
	Value string
	// Handle is the sender's public username, captured alongside the city.
	Handle string
}

// Begin, Answer and Cancel build events.
func Begin() Event { return Event{Kind: EventBegin} }

func Answer(value, handle string) Event {
	return Event{Kind: EventAnswer, Value: value, Handle: handle}
}

func Cancel() Event { return Event{Kind: EventCancel} }

// Scratch accumulates answers until commit. It is never visible to the
// registry before then.
type Scratch struct {
	model.RegistrationInput
}

// Outcome describes what the caller should do after a step.
type Outcome struct {
	// Err is a validation error; the state did not change and the same
	// question should be asked again.
	Err error
	// Commit is set once the last answer is accepted. Scratch then holds
	// a complete input.
	Commit bool
	// Cancelled is set when a running conversation was abandoned.
	Cancelled bool
	// Ignored is set when the event means nothing in the current state.
	Ignored bool
}

// HandlePlaceholder is stored when the sender has no public username.
const HandlePlaceholder = "-"

// Step is the transition function. It touches only scratch.
func Step(state State, scratch *Scratch, ev Event) (State, Outcome) {
	switch ev.Kind {
	case EventCancel:
		*scratch = Scratch{}
		return Idle, Outcome{Cancelled: state != Idle}
	case EventBegin:
		*scratch = Scratch{}
		return AwaitName, Outcome{}
	}

	value := strings.TrimSpace(ev.Value)
	switch state {
	case AwaitName:
		if err := model.ValidateField(value, "fullname"); err != nil {
			return state, Outcome{Err: err}
		}
		scratch.Name = value
		return AwaitDays, Outcome{}

	case AwaitDays:
		days, err := strconv.Atoi(value)
		if err != nil {
			return state, Outcome{Err: fmt.Errorf("%w: days must be a number", model.ErrValidation)}
		}
		if err := model.ValidateField(days, "min=1,max=4"); err != nil {
			return state, Outcome{Err: err}
		}
		scratch.Days = days
		return AwaitArrivalDate, Outcome{}

	case AwaitArrivalDate:
		if err := model.ValidateField(value, "arrival"); err != nil {
			return state, Outcome{Err: err}
		}
		scratch.ArrivalDate = value
		return AwaitCity, Outcome{}

	case AwaitCity:
		if err := model.ValidateField(value, "min=2"); err != nil {
			return state, Outcome{Err: err}
		}
		scratch.City = value
		scratch.Handle = HandlePlaceholder
		if ev.Handle != "" {
			scratch.Handle = "@" + strings.TrimPrefix(ev.Handle, "@")
		}
		return AwaitPhone, Outcome{}

	case AwaitPhone:
		if err := model.ValidateField(value, "phone"); err != nil {
			return state, Outcome{Err: err}
		}
		scratch.Phone = value
		return AwaitBirthDate, Outcome{}

	case AwaitBirthDate:
		if err := model.ValidateField(value, "birthdate"); err != nil {
			return state, Outcome{Err: err}
		}
		scratch.BirthDate = value
		return AwaitGender, Outcome{}

	case AwaitGender:
		g := model.ParseGender(value)
		if err := model.ValidateField(g, "gender"); err != nil {
			return state, Outcome{Err: err}
		}
		scratch.Gender = g
		return Idle, Outcome{Commit: true}
	}

	return state, Outcome{Ignored: true}
}
