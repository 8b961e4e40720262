package service

import (
	"fmt"
	"strconv"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/intake"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/registry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
)

// Persistent keyboard buttons.
const (
	btnRegister            = "Register"
	btnCancelAccommodation = "Cancel accommodation"
	btnAccommodate         = "Accommodate"
	btnSchedule            = "Schedule"
	btnSpeakers            = "Speakers"
	btnVenue               = "Venue"
	btnContacts            = "Contacts"
	btnQRCode              = "QR Code"
)

// Admin keyboard buttons.
const (
	btnStats            = "Stats"
	btnClear            = "Clear registrations"
	btnStartRound       = "Start accommodation"
	btnSendNotification = "Send notification"
	btnLogout           = "Log out"
	btnCancel           = "Cancel"
	btnShareContact     = "Share contact"
)

// Callback data.
const (
	cbAgree                   = "agree"
	cbDaysPrefix              = "days_"
	cbDatePrefix              = "date_"
	cbGenderPrefix            = "gender_"
	cbRoomPrefix              = "room_"
	cbCancelAccommodationUser = "cancel_accommodation_user"
	cbRequestAccommodation    = "request_accommodation"
	cbShowQR                  = "show_qr"
	cbConfirmClear            = "confirm_clear"
	cbCancelClear             = "cancel_clear"
	cbConfirmSleep            = "confirm_sleep"
	cbCancelSleep             = "cancel_sleep"
)

var adminKeyboard = [][]string{
	{btnStats, btnClear},
	{btnStartRound, btnSendNotification},
	{btnLogout},
}

// ParticipantKeyboard returns the builder of the persistent keyboard. The
// first row depends on where the user is: not registered, housed, or
// offered lodging.
func ParticipantKeyboard(reg *registry.Registry) func(model.UserID) [][]string {
	return func(user model.UserID) [][]string {
		var rows [][]string
		switch _, housed := reg.RoomOf(user); {
		case !reg.IsRegistered(user):
			rows = append(rows, []string{btnRegister})
		case housed:
			rows = append(rows, []string{btnCancelAccommodation})
		case reg.AccommodationInitiated(user):
			rows = append(rows, []string{btnAccommodate})
		}
		return append(rows,
			[]string{btnSchedule, btnSpeakers},
			[]string{btnVenue, btnContacts},
			[]string{btnQRCode},
		)
	}
}

func (s *BotService) keyboardFor(user model.UserID) [][]string {
	return ParticipantKeyboard(s.reg)(user)
}

func (s *BotService) menuFor(user model.UserID) [][]string {
	if s.admin.IsAdmin(user) {
		return adminKeyboard
	}
	return s.keyboardFor(user)
}

// prompt is the question asked in state, with the input widget it needs.
func prompt(state intake.State) transport.Message {
	switch state {
	case intake.AwaitName:
		return transport.Message{Text: "Enter your full name (first and last):", RemoveKeyboard: true}
	case intake.AwaitDays:
		var rows [][]transport.Button
		for i := 0; i < len(model.StayLengths); i += 2 {
			var row []transport.Button
			for _, d := range model.StayLengths[i:min(i+2, len(model.StayLengths))] {
				row = append(row, transport.Button{
					Text: fmt.Sprintf("%d %s: %d$", d, dayWord(d), d*10),
					Data: cbDaysPrefix + strconv.Itoa(d),
				})
			}
			rows = append(rows, row)
		}
		return transport.Message{Text: "How many days will you stay?", Inline: rows}
	case intake.AwaitArrivalDate:
		rows := make([][]transport.Button, len(model.ArrivalDates))
		for i, d := range model.ArrivalDates {
			rows[i] = []transport.Button{{Text: d, Data: cbDatePrefix + d}}
		}
		return transport.Message{Text: "Choose your arrival date:", Inline: rows}
	case intake.AwaitCity:
		return transport.Message{Text: "Which city are you from?", RemoveKeyboard: true}
	case intake.AwaitPhone:
		return transport.Message{
			Text:           "Share your phone number:",
			Keyboard:       [][]string{{btnShareContact}},
			RequestContact: true,
		}
	case intake.AwaitBirthDate:
		return transport.Message{Text: "Birth date (DD.MM.YYYY):", RemoveKeyboard: true}
	case intake.AwaitGender:
		return transport.Message{Text: "Choose your gender:", Inline: [][]transport.Button{
			{{Text: model.GenderMale.String(), Data: cbGenderPrefix + model.GenderMale.String()}},
			{{Text: model.GenderFemale.String(), Data: cbGenderPrefix + model.GenderFemale.String()}},
		}}
	}
	return transport.Message{}
}

// reprompt is sent when an answer was rejected in state.
func reprompt(state intake.State) transport.Message {
	msg := prompt(state)
	switch state {
	case intake.AwaitName:
		msg.Text = "Please enter your full name, at least two words:"
	case intake.AwaitDays:
		msg.Text = "Pick the number of days with the buttons:"
	case intake.AwaitArrivalDate:
		msg.Text = "Pick one of the offered dates:"
	case intake.AwaitCity:
		msg.Text = "Enter your city:"
	case intake.AwaitPhone:
		msg.Text = "Enter a valid phone number, e.g. +375291234567:"
	case intake.AwaitBirthDate:
		msg.Text = "Enter the date as DD.MM.YYYY:"
	case intake.AwaitGender:
		msg.Text = "Pick your gender with the buttons:"
	}
	return msg
}

func dayWord(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}

// roomKeyboard lays the offered rooms out three per row.
func roomKeyboard(rooms []model.RoomAvailability) [][]transport.Button {
	var rows [][]transport.Button
	var row []transport.Button
	for _, r := range rooms {
		row = append(row, transport.Button{
			Text: fmt.Sprintf("House %d (%d/%d)", r.Room, r.Occupied, model.RoomCapacity),
			Data: cbRoomPrefix + strconv.Itoa(int(r.Room)),
		})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

func confirmKeyboard(confirm, cancel string) [][]transport.Button {
	return [][]transport.Button{
		{{Text: "Confirm", Data: confirm}},
		{{Text: "Cancel", Data: cancel}},
	}
}
