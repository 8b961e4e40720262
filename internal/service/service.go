// Package service routes inbound chat updates to the intake flow, the
// allocator and the admin session, and renders their results as replies.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/admin"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/allocator"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/content"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/credential"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/intake"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/notify"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/registry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/retry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/syncer"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
)

// Operator receives failures that need human attention.
type Operator interface {
	Alert(ctx context.Context, message string)
}

// Persister schedules background saves.
type Persister interface {
	Schedule(targets syncer.Target)
}

// Deps are the collaborators of a BotService.
type Deps struct {
	Bot       transport.Bot
	Registry  *registry.Registry
	Intake    *intake.Engine
	Allocator *allocator.Allocator
	Admin     *admin.Session
	Sync      Persister
	Operator  Operator
	Content   content.Content
	// Organizer is shown on the contacts screen.
	Organizer string
	Policy    retry.Policy
	Logger    *zap.Logger
}

// BotService handles one update at a time per user; different users run
// concurrently.
type BotService struct {
	bot       transport.Bot
	reg       *registry.Registry
	intake    *intake.Engine
	allocator *allocator.Allocator
	admin     *admin.Session
	sync      Persister
	operator  Operator
	content   content.Content
	organizer string
	policy    retry.Policy
	log       *zap.Logger

	mu    sync.Mutex
	locks map[model.UserID]*sync.Mutex
}

// NewBotService constructs a BotService with its dependencies.
func NewBotService(d Deps) *BotService {
	return &BotService{
		bot:       d.Bot,
		reg:       d.Registry,
		intake:    d.Intake,
		allocator: d.Allocator,
		admin:     d.Admin,
		sync:      d.Sync,
		operator:  d.Operator,
		content:   d.Content,
		organizer: d.Organizer,
		policy:    d.Policy,
		log:       d.Logger,
		locks:     make(map[model.UserID]*sync.Mutex),
	}
}

func (s *BotService) lock(user model.UserID) func() {
	s.mu.Lock()
	l, ok := s.locks[user]
	if !ok {
		l = &sync.Mutex{}
		s.locks[user] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Handle processes one update. Errors are delivery failures of the reply;
// domain errors are turned into replies and never returned.
func (s *BotService) Handle(ctx context.Context, u transport.Update) error {
	user := model.UserID(u.UserID)
	defer s.lock(user)()

	switch {
	case u.Callback != nil:
		if err := s.bot.AnswerCallback(ctx, u.Callback.ID); err != nil {
			s.log.Warn("answer callback failed", zap.String("callback_id", u.Callback.ID), zap.Error(err))
		}
		return s.handleCallback(ctx, user, u)
	case u.Command != "":
		return s.handleCommand(ctx, user, u)
	case u.Contact != "":
		if s.intake.State(user) != intake.AwaitPhone {
			return s.reply(ctx, u.ChatID, transport.Message{Text: "Use the menu buttons below.", Keyboard: s.menuFor(user)})
		}
		return s.handleAnswer(ctx, user, u, u.Contact)
	case u.PhotoFileID != "":
		return s.handlePhoto(ctx, user, u)
	case u.Text != "":
		return s.handleText(ctx, user, u)
	}
	return nil
}

func (s *BotService) handleCommand(ctx context.Context, user model.UserID, u transport.Update) error {
	switch u.Command {
	case "start":
		return s.start(ctx, user, u.ChatID)

	case "admin":
		if len(u.CommandArgs) == 0 {
			return s.reply(ctx, u.ChatID, transport.Message{Text: "Usage: /admin <password>"})
		}
		if err := s.admin.Login(u.CommandArgs[0], user); err != nil {
			return s.reply(ctx, u.ChatID, transport.Message{
				Text:     "Wrong password or access denied.",
				Keyboard: s.keyboardFor(user),
			})
		}
		return s.reply(ctx, u.ChatID, transport.Message{Text: "You are logged in as admin.", Keyboard: adminKeyboard})

	case "cancel":
		return s.cancel(ctx, user, u.ChatID)

	case "check", "check_qr":
		if len(u.CommandArgs) == 0 {
			return s.reply(ctx, u.ChatID, transport.Message{Text: "Usage: /check <registration id>"})
		}
		reg, err := s.admin.Lookup(user, u.CommandArgs[0])
		if err != nil {
			return s.replyError(ctx, user, u.ChatID, err)
		}
		return s.reply(ctx, u.ChatID, transport.Message{
			Text:     "*Registration found!*\n" + describeWithRoom(reg),
			Markdown: true,
			Keyboard: adminKeyboard,
		})
	}

	return s.reply(ctx, u.ChatID, transport.Message{Text: "Unknown command.", Keyboard: s.menuFor(user)})
}

func (s *BotService) start(ctx context.Context, user model.UserID, chat transport.ChatID) error {
	if s.reg.MarkOpened(user) {
		s.sync.Schedule(syncer.TargetCounters)
	}
	return s.reply(ctx, chat, transport.Message{
		Text:     s.content.Welcome,
		Markdown: true,
		Keyboard: s.menuFor(user),
	})
}

func (s *BotService) cancel(ctx context.Context, user model.UserID, chat transport.ChatID) error {
	s.admin.CancelNotification(user)
	if _, err := s.intake.Handle(ctx, user, intake.Cancel()); err != nil {
		s.log.Warn("cancel intake", zap.Int64("user_id", int64(user)), zap.Error(err))
	}
	return s.reply(ctx, chat, transport.Message{Text: "Action cancelled.", Keyboard: s.menuFor(user)})
}

func (s *BotService) handleText(ctx context.Context, user model.UserID, u transport.Update) error {
	text := strings.TrimSpace(u.Text)

	if s.admin.AwaitingNotification(user) {
		return s.sendNotification(ctx, user, u.ChatID, text)
	}
	if s.intake.Active(user) {
		if text == btnCancel {
			return s.cancel(ctx, user, u.ChatID)
		}
		return s.handleAnswer(ctx, user, u, text)
	}
	if s.admin.IsAdmin(user) {
		return s.handleAdminButton(ctx, user, u.ChatID, text)
	}

	switch text {
	case btnRegister:
		return s.offerRegistration(ctx, user, u.ChatID)
	case btnSchedule:
		return s.reply(ctx, u.ChatID, transport.Message{Text: s.content.Schedule, Keyboard: s.keyboardFor(user)})
	case btnSpeakers:
		return s.reply(ctx, u.ChatID, transport.Message{Text: s.content.Speakers, Keyboard: s.keyboardFor(user)})
	case btnVenue:
		return s.reply(ctx, u.ChatID, transport.Message{Text: s.content.Venue, Keyboard: s.keyboardFor(user)})
	case btnContacts:
		return s.reply(ctx, u.ChatID, transport.Message{Text: s.content.ContactsFor(s.organizer), Keyboard: s.keyboardFor(user)})
	case btnQRCode:
		return s.sendCredential(ctx, user, u.ChatID)
	case btnCancelAccommodation:
		return s.releaseRoom(ctx, user, u.ChatID, 0)
	case btnAccommodate:
		return s.offerAccommodation(ctx, user, u.ChatID)
	}
	return s.reply(ctx, u.ChatID, transport.Message{Text: "Use the menu buttons below.", Keyboard: s.keyboardFor(user)})
}

func (s *BotService) offerRegistration(ctx context.Context, user model.UserID, chat transport.ChatID) error {
	if !s.reg.IsRegistered(user) {
		return s.reply(ctx, chat, transport.Message{
			Text:     s.content.Rules,
			Markdown: true,
			Inline:   [][]transport.Button{{{Text: "I agree", Data: cbAgree}}},
		})
	}

	var rows [][]transport.Button
	if _, housed := s.reg.RoomOf(user); housed {
		rows = append(rows, []transport.Button{{Text: btnCancelAccommodation, Data: cbCancelAccommodationUser}})
	} else if s.reg.AccommodationInitiated(user) {
		rows = append(rows, []transport.Button{{Text: btnAccommodate, Data: cbRequestAccommodation}})
	}
	rows = append(rows, []transport.Button{{Text: btnQRCode, Data: cbShowQR}})
	return s.reply(ctx, chat, transport.Message{Text: "You are already registered!", Inline: rows})
}

// handleAnswer feeds value to the user's intake conversation and asks the
// next question.
func (s *BotService) handleAnswer(ctx context.Context, user model.UserID, u transport.Update, value string) error {
	if !s.intake.Active(user) {
		return s.reply(ctx, u.ChatID, transport.Message{Text: "Use the menu buttons below.", Keyboard: s.menuFor(user)})
	}

	res, err := s.intake.Handle(ctx, user, intake.Answer(value, u.Username))
	if err != nil {
		return s.replyError(ctx, user, u.ChatID, err)
	}
	if res.Outcome.Err != nil {
		return s.reply(ctx, u.ChatID, reprompt(res.State))
	}
	if res.Registration != nil {
		return s.confirmRegistration(ctx, user, u.ChatID, *res.Registration)
	}
	return s.reply(ctx, u.ChatID, prompt(res.State))
}

func (s *BotService) confirmRegistration(ctx context.Context, user model.UserID, chat transport.ChatID, reg model.Registration) error {
	return s.replyWithCredential(ctx, chat, reg.ID, transport.Message{
		Text:     "Registration complete!\n" + notify.Describe(reg),
		Markdown: true,
		Keyboard: s.keyboardFor(user),
	})
}

func (s *BotService) sendCredential(ctx context.Context, user model.UserID, chat transport.ChatID) error {
	reg, ok := s.reg.ByUser(user)
	if !ok {
		return s.reply(ctx, chat, transport.Message{Text: "Finish registration first.", Keyboard: s.keyboardFor(user)})
	}
	return s.replyWithCredential(ctx, chat, reg.ID, transport.Message{
		Text:     "Your QR code for check-in.",
		Keyboard: s.keyboardFor(user),
	})
}

// replyWithCredential sends msg as the caption of the credential QR. When
// the photo cannot be delivered the operator is told and msg goes out as
// plain text.
func (s *BotService) replyWithCredential(ctx context.Context, chat transport.ChatID, registrationID string, msg transport.Message) error {
	png, err := credential.Encode(registrationID)
	if err == nil {
		photo := msg
		photo.Photo = png
		if err = s.reply(ctx, chat, photo); err == nil {
			return nil
		}
	}
	s.operator.Alert(ctx, fmt.Sprintf("credential for %s not delivered: %v", registrationID, err))
	return s.reply(ctx, chat, msg)
}

func (s *BotService) handlePhoto(ctx context.Context, user model.UserID, u transport.Update) error {
	if !s.admin.IsAdmin(user) {
		return s.reply(ctx, u.ChatID, transport.Message{Text: "You are not an admin.", Keyboard: s.keyboardFor(user)})
	}

	photo, err := s.bot.DownloadPhoto(ctx, u.PhotoFileID)
	if err != nil {
		s.log.Error("download check-in photo", zap.Error(err))
		return s.reply(ctx, u.ChatID, transport.Message{Text: "Could not download the photo.", Keyboard: adminKeyboard})
	}
	id, err := credential.Decode(photo)
	if err != nil {
		return s.reply(ctx, u.ChatID, transport.Message{Text: "Could not read the QR code.", Keyboard: adminKeyboard})
	}

	reg, first, err := s.admin.CheckIn(ctx, user, id)
	if err != nil {
		return s.replyError(ctx, user, u.ChatID, err)
	}
	status := "Participant checked in."
	if !first {
		status = "Participant was already checked in."
	}
	return s.reply(ctx, u.ChatID, transport.Message{
		Text:     "*Registration found!*\n" + describeWithRoom(reg) + "\n" + status,
		Markdown: true,
		Keyboard: adminKeyboard,
	})
}

func (s *BotService) handleAdminButton(ctx context.Context, user model.UserID, chat transport.ChatID, text string) error {
	switch text {
	case btnStats:
		st, err := s.admin.Stats(user)
		if err != nil {
			return s.replyError(ctx, user, chat, err)
		}
		return s.reply(ctx, chat, transport.Message{
			Text: fmt.Sprintf("*Stats:*\nOpened the bot: %d\nRegistered: %d\nChecked in: %d\nAccommodated: %d",
				st.Opened, st.Registered, st.CheckedIn, st.Accommodated),
			Markdown: true,
			Keyboard: adminKeyboard,
		})
	case btnClear:
		return s.reply(ctx, chat, transport.Message{
			Text:   "Clear all registrations?",
			Inline: confirmKeyboard(cbConfirmClear, cbCancelClear),
		})
	case btnStartRound:
		return s.reply(ctx, chat, transport.Message{
			Text:   "Start the accommodation round?",
			Inline: confirmKeyboard(cbConfirmSleep, cbCancelSleep),
		})
	case btnSendNotification:
		if err := s.admin.BeginNotification(user); err != nil {
			return s.replyError(ctx, user, chat, err)
		}
		return s.reply(ctx, chat, transport.Message{Text: "Enter the notification text:", Keyboard: [][]string{{btnCancel}}})
	case btnLogout:
		s.admin.Logout(user)
		return s.reply(ctx, chat, transport.Message{Text: "You have left admin mode.", Keyboard: s.keyboardFor(user)})
	}
	return s.reply(ctx, chat, transport.Message{Text: "You are in admin mode.", Keyboard: adminKeyboard})
}

func (s *BotService) sendNotification(ctx context.Context, user model.UserID, chat transport.ChatID, text string) error {
	if text == btnCancel {
		s.admin.CancelNotification(user)
		return s.reply(ctx, chat, transport.Message{Text: "Notification cancelled.", Keyboard: adminKeyboard})
	}
	if text == "" {
		return s.reply(ctx, chat, transport.Message{Text: "The text cannot be empty:", Keyboard: [][]string{{btnCancel}}})
	}
	res, err := s.admin.SendNotification(ctx, user, text)
	if err != nil {
		return s.replyError(ctx, user, chat, err)
	}
	return s.reply(ctx, chat, transport.Message{
		Text:     fmt.Sprintf("Sent to %d users. Failed: %d.", res.Sent, res.Failed),
		Keyboard: adminKeyboard,
	})
}

// reply sends msg with bounded retry.
func (s *BotService) reply(ctx context.Context, chat transport.ChatID, msg transport.Message) error {
	err := s.policy.Do(ctx, func(attempt int) error {
		err := s.bot.Send(ctx, chat, msg)
		if err != nil {
			s.log.Warn("reply failed", zap.Int64("chat_id", int64(chat)), zap.Int("attempt", attempt+1), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("reply to %d: %w", chat, err)
	}
	return nil
}

func (s *BotService) edit(ctx context.Context, chat transport.ChatID, messageID int64, msg transport.Message) {
	if messageID == 0 {
		if err := s.reply(ctx, chat, msg); err != nil {
			s.log.Warn("edit fallback failed", zap.Error(err))
		}
		return
	}
	if err := s.bot.Edit(ctx, chat, messageID, msg); err != nil {
		s.log.Warn("edit message failed", zap.Int64("chat_id", int64(chat)), zap.Error(err))
	}
}

// replyError maps a domain error to the user-facing text.
func (s *BotService) replyError(ctx context.Context, user model.UserID, chat transport.ChatID, err error) error {
	var text string
	switch {
	case errors.Is(err, model.ErrAlreadyRegistered):
		text = "You are already registered!"
	case errors.Is(err, model.ErrNotRegistered):
		text = "Registration not found."
	case errors.Is(err, model.ErrNotAssigned):
		text = "You are not accommodated."
	case errors.Is(err, model.ErrGenderUnset):
		text = "Gender is not set."
	case errors.Is(err, model.ErrAllRoomsFull):
		text = "All houses are full."
	case errors.Is(err, model.ErrRoomFull):
		text = "This house is full."
	case errors.Is(err, model.ErrWrongPartition):
		text = "This house is not available to you."
	case errors.Is(err, model.ErrInvalidRoom):
		text = "Invalid house."
	case errors.Is(err, model.ErrUnauthorized):
		text = "You are not an admin."
	case errors.Is(err, model.ErrValidation):
		text = "Invalid input."
	default:
		s.log.Error("request failed", zap.Int64("user_id", int64(user)), zap.Error(err))
		text = "Something went wrong, please try again."
	}
	return s.reply(ctx, chat, transport.Message{Text: text, Keyboard: s.menuFor(user)})
}

func describeWithRoom(reg model.Registration) string {
	line := "Accommodation: not needed"
	if reg.Accommodation.Assigned() {
		line = fmt.Sprintf("Accommodation: house %d", reg.Accommodation.Room)
	}
	return notify.Describe(reg) + "\n" + line
}
