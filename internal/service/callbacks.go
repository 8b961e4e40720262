package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/admin"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/intake"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
)

func (s *BotService) handleCallback(ctx context.Context, user model.UserID, u transport.Update) error {
	data := u.Callback.Data
	msgID := u.Callback.MessageID

	switch {
	case data == cbAgree:
		return s.beginIntake(ctx, user, u.ChatID)

	case strings.HasPrefix(data, cbDaysPrefix):
		return s.handleChoice(ctx, user, u, intake.AwaitDays, strings.TrimPrefix(data, cbDaysPrefix))
	case strings.HasPrefix(data, cbDatePrefix):
		return s.handleChoice(ctx, user, u, intake.AwaitArrivalDate, strings.TrimPrefix(data, cbDatePrefix))
	case strings.HasPrefix(data, cbGenderPrefix):
		return s.handleChoice(ctx, user, u, intake.AwaitGender, strings.TrimPrefix(data, cbGenderPrefix))

	case data == admin.CallbackNeedAccommodation, data == cbRequestAccommodation:
		return s.offerAccommodation(ctx, user, u.ChatID)
	case data == admin.CallbackNoAccommodation:
		s.edit(ctx, u.ChatID, msgID, transport.Message{Text: "Stock up on bug spray."})
		return s.reply(ctx, u.ChatID, transport.Message{Text: "You declined accommodation.", Keyboard: s.keyboardFor(user)})

	case strings.HasPrefix(data, cbRoomPrefix):
		n, err := strconv.Atoi(strings.TrimPrefix(data, cbRoomPrefix))
		if err != nil {
			return s.replyError(ctx, user, u.ChatID, fmt.Errorf("room %q: %w", data, model.ErrInvalidRoom))
		}
		return s.assignRoom(ctx, user, u.ChatID, msgID, model.RoomNumber(n))

	case data == cbCancelAccommodationUser:
		return s.releaseRoom(ctx, user, u.ChatID, msgID)
	case data == cbShowQR:
		return s.sendCredential(ctx, user, u.ChatID)

	case data == cbConfirmClear:
		s.edit(ctx, u.ChatID, msgID, transport.Message{Text: "Clearing registrations..."})
		res, err := s.admin.ClearAll(ctx, user)
		if errors.Is(err, model.ErrUnauthorized) {
			return s.replyError(ctx, user, u.ChatID, err)
		}
		if err != nil {
			s.log.Error("clear registrations", zap.Int64("user_id", int64(user)), zap.Error(err))
			return s.reply(ctx, u.ChatID, transport.Message{
				Text:     fmt.Sprintf("Registrations cleared, but saving failed. Notified %d users.", res.Sent),
				Keyboard: s.menuFor(user),
			})
		}
		return s.reply(ctx, u.ChatID, transport.Message{
			Text:     fmt.Sprintf("Registrations cleared. Notified %d users, failed %d.", res.Sent, res.Failed),
			Keyboard: adminKeyboard,
		})
	case data == cbCancelClear:
		s.edit(ctx, u.ChatID, msgID, transport.Message{Text: "Clearing cancelled."})
		return nil

	case data == cbConfirmSleep:
		s.edit(ctx, u.ChatID, msgID, transport.Message{Text: "Starting the accommodation round..."})
		res, err := s.admin.StartAccommodationRound(ctx, user)
		if err != nil {
			return s.replyError(ctx, user, u.ChatID, err)
		}
		return s.reply(ctx, u.ChatID, transport.Message{
			Text:     fmt.Sprintf("Accommodation offer sent to %d users, failed %d.", res.Sent, res.Failed),
			Keyboard: adminKeyboard,
		})
	case data == cbCancelSleep:
		s.edit(ctx, u.ChatID, msgID, transport.Message{Text: "Accommodation round cancelled."})
		return nil
	}

	s.log.Debug("unknown callback", zap.String("data", data))
	return nil
}

// handleChoice feeds an inline button answer, but only to the question the
// button was attached to. A stale button re-asks the current question.
func (s *BotService) handleChoice(ctx context.Context, user model.UserID, u transport.Update, want intake.State, value string) error {
	current := s.intake.State(user)
	if current == want {
		return s.handleAnswer(ctx, user, u, value)
	}
	s.log.Debug("stale intake button",
		zap.Int64("user_id", int64(user)),
		zap.Stringer("button_state", want),
		zap.Stringer("state", current),
	)
	if current == intake.Idle {
		return nil
	}
	return s.reply(ctx, u.ChatID, prompt(current))
}

func (s *BotService) beginIntake(ctx context.Context, user model.UserID, chat transport.ChatID) error {
	res, err := s.intake.Handle(ctx, user, intake.Begin())
	if err != nil {
		return s.replyError(ctx, user, chat, err)
	}
	return s.reply(ctx, chat, prompt(res.State))
}

func (s *BotService) offerAccommodation(ctx context.Context, user model.UserID, chat transport.ChatID) error {
	if room, housed := s.reg.RoomOf(user); housed {
		return s.reply(ctx, chat, transport.Message{
			Text:     fmt.Sprintf("You already booked house %d.", room),
			Keyboard: s.keyboardFor(user),
		})
	}
	rooms, err := s.allocator.ListAvailableRooms(user)
	if err != nil {
		return s.replyError(ctx, user, chat, err)
	}
	return s.reply(ctx, chat, transport.Message{Text: "Choose a house:", Inline: roomKeyboard(rooms)})
}

func (s *BotService) assignRoom(ctx context.Context, user model.UserID, chat transport.ChatID, msgID int64, room model.RoomNumber) error {
	reg, err := s.allocator.Assign(ctx, user, room)
	if err != nil {
		return s.replyError(ctx, user, chat, err)
	}

	s.edit(ctx, chat, msgID, transport.Message{Text: fmt.Sprintf("You booked house %d.", room)})
	if err := s.replyWithCredential(ctx, chat, reg.ID, transport.Message{
		Text:     describeWithRoom(reg),
		Markdown: true,
	}); err != nil {
		return err
	}
	return s.reply(ctx, chat, transport.Message{
		Text:     "You can cancel the booking with the button below.",
		Keyboard: s.keyboardFor(user),
	})
}

func (s *BotService) releaseRoom(ctx context.Context, user model.UserID, chat transport.ChatID, msgID int64) error {
	if err := s.allocator.Release(ctx, user); err != nil {
		return s.replyError(ctx, user, chat, err)
	}
	msg := transport.Message{Text: "Your accommodation was cancelled.", Keyboard: s.keyboardFor(user)}
	if msgID != 0 {
		s.edit(ctx, chat, msgID, transport.Message{Text: msg.Text})
		msg.Text = "You can book another house with the button below."
	}
	return s.reply(ctx, chat, msg)
}
