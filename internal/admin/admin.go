// Package admin gates the operator commands behind a password session and
// runs the bulk operations: clear-all, the accommodation round, broadcast
// notifications and check-in.
package admin

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/broadcast"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/notify"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/registry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/syncer"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
)

// Callback data carried by the lodging prompt buttons.
const (
	CallbackNeedAccommodation = "need_accommodation"
	CallbackNoAccommodation   = "no_accommodation"
)

// Saver persists registry state.
type Saver interface {
	Save(ctx context.Context, targets syncer.Target) error
	Schedule(targets syncer.Target)
}

// Broadcaster fans a message out to many users.
type Broadcaster interface {
	FanOut(ctx context.Context, recipients []model.UserID, msg transport.Message) broadcast.Result
	FanOutFunc(ctx context.Context, recipients []model.UserID, build func(model.UserID) transport.Message) broadcast.Result
}

// Announcer posts check-ins to the organisers' channel.
type Announcer interface {
	AnnounceCheckIn(ctx context.Context, reg model.Registration) error
	Alert(ctx context.Context, message string)
}

// ResetNotice is sent to everyone after ClearAll.
const ResetNotice = "Registration data has been reset. Please register again with /start."

// Config holds the session credentials.
type Config struct {
	Password string
	// AllowedIDs restricts who may log in. Empty allows anyone with the
	// password.
	AllowedIDs []model.UserID
	// Keyboard builds a participant's reply keyboard. It is attached to
	// the reset notice so nobody keeps buttons for a booking that is gone.
	Keyboard func(model.UserID) [][]string
}

// Session is the admin surface.
type Session struct {
	cfg         Config
	reg         *registry.Registry
	saver       Saver
	broadcaster Broadcaster
	announcer   Announcer
	log         *zap.Logger

	mu        sync.Mutex
	composing map[model.UserID]struct{}
}

// New constructs a Session.
func New(cfg Config, reg *registry.Registry, saver Saver, broadcaster Broadcaster, announcer Announcer, log *zap.Logger) *Session {
	return &Session{
		cfg:         cfg,
		reg:         reg,
		saver:       saver,
		broadcaster: broadcaster,
		announcer:   announcer,
		log:         log,
		composing:   make(map[model.UserID]struct{}),
	}
}

// Login opens an admin session for user.
func (s *Session) Login(password string, user model.UserID) error {
	if s.cfg.Password == "" ||
		subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) != 1 {
		s.log.Warn("admin login rejected", zap.Int64("user_id", int64(user)), zap.String("reason", "password"))
		return fmt.Errorf("admin login: %w", model.ErrUnauthorized)
	}
	if len(s.cfg.AllowedIDs) > 0 && !lo.Contains(s.cfg.AllowedIDs, user) {
		s.log.Warn("admin login rejected", zap.Int64("user_id", int64(user)), zap.String("reason", "not allowed"))
		return fmt.Errorf("admin login: %w", model.ErrUnauthorized)
	}

	s.reg.AddAdmin(user)
	s.saver.Schedule(syncer.TargetCounters)
	s.log.Info("admin logged in", zap.Int64("user_id", int64(user)))
	return nil
}

// Logout closes user's session. It reports whether one was open.
func (s *Session) Logout(user model.UserID) bool {
	s.CancelNotification(user)
	if !s.reg.RemoveAdmin(user) {
		return false
	}
	s.saver.Schedule(syncer.TargetCounters)
	s.log.Info("admin logged out", zap.Int64("user_id", int64(user)))
	return true
}

// IsAdmin reports whether user holds a session.
func (s *Session) IsAdmin(user model.UserID) bool {
	return s.reg.IsAdmin(user)
}

func (s *Session) authorize(actor model.UserID) error {
	if !s.reg.IsAdmin(actor) {
		return fmt.Errorf("user %d: %w", actor, model.ErrUnauthorized)
	}
	return nil
}

// ClearAll wipes registrations and lodging, writes the empty state to the
// store and then tells everyone who ever opened the bot to register again.
// The notice goes out even when the save failed; the save error is
// returned alongside the broadcast result.
func (s *Session) ClearAll(ctx context.Context, actor model.UserID) (broadcast.Result, error) {
	if err := s.authorize(actor); err != nil {
		return broadcast.Result{}, err
	}

	s.reg.ClearAll()
	s.log.Warn("all registrations cleared", zap.Int64("actor", int64(actor)))

	saveErr := s.saver.Save(ctx, syncer.TargetAll)
	if saveErr != nil {
		saveErr = fmt.Errorf("clear all: %w", saveErr)
	}

	res := s.broadcaster.FanOutFunc(ctx, s.reg.Opened(), func(user model.UserID) transport.Message {
		msg := transport.Message{Text: ResetNotice}
		if s.cfg.Keyboard != nil {
			msg.Keyboard = s.cfg.Keyboard(user)
		}
		return msg
	})
	return res, saveErr
}

// StartAccommodationRound offers lodging to every registered user.
func (s *Session) StartAccommodationRound(ctx context.Context, actor model.UserID) (broadcast.Result, error) {
	if err := s.authorize(actor); err != nil {
		return broadcast.Result{}, err
	}

	users := s.reg.InitiateAccommodation()
	s.saver.Schedule(syncer.TargetCounters)
	s.log.Info("accommodation round started", zap.Int64("actor", int64(actor)), zap.Int("users", len(users)))

	return s.broadcaster.FanOut(ctx, users, AccommodationPrompt()), nil
}

// AccommodationPrompt is the yes/no lodging question.
func AccommodationPrompt() transport.Message {
	return transport.Message{
		Text: "Accommodation is open. Do you need a place to stay?",
		Inline: [][]transport.Button{{
			{Text: "Yes", Data: CallbackNeedAccommodation},
			{Text: "No", Data: CallbackNoAccommodation},
		}},
	}
}

// Broadcast sends text to everyone who opened the bot.
func (s *Session) Broadcast(ctx context.Context, actor model.UserID, text string) (broadcast.Result, error) {
	if err := s.authorize(actor); err != nil {
		return broadcast.Result{}, err
	}
	if text == "" {
		return broadcast.Result{}, fmt.Errorf("empty notification: %w", model.ErrValidation)
	}
	return s.broadcaster.FanOut(ctx, s.reg.Opened(), transport.Message{
		Text:     "*Notification:*\n" + notify.EscapeMarkdown(text),
		Markdown: true,
	}), nil
}

// Lookup returns the registration with id.
func (s *Session) Lookup(actor model.UserID, id string) (model.Registration, error) {
	if err := s.authorize(actor); err != nil {
		return model.Registration{}, err
	}
	return s.reg.Lookup(id)
}

// CheckIn records the arrival of registration id. A repeated check-in
// returns the registration with firstTime false and announces nothing.
func (s *Session) CheckIn(ctx context.Context, actor model.UserID, id string) (reg model.Registration, firstTime bool, err error) {
	if err := s.authorize(actor); err != nil {
		return model.Registration{}, false, err
	}

	reg, firstTime, err = s.reg.CheckIn(id)
	if err != nil {
		return model.Registration{}, false, err
	}
	if !firstTime {
		return reg, false, nil
	}

	s.saver.Schedule(syncer.TargetCounters)
	s.log.Info("checked in", zap.String("registration_id", id), zap.Int64("actor", int64(actor)))

	if err := s.announcer.AnnounceCheckIn(ctx, reg); err != nil {
		s.announcer.Alert(ctx, fmt.Sprintf("check-in announcement for %s failed: %v", id, err))
	}
	return reg, true, nil
}

// Stats returns the counters.
func (s *Session) Stats(actor model.UserID) (model.Stats, error) {
	if err := s.authorize(actor); err != nil {
		return model.Stats{}, err
	}
	return s.reg.Stats(), nil
}

// BeginNotification makes actor's next free text the broadcast body.
func (s *Session) BeginNotification(actor model.UserID) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composing[actor] = struct{}{}
	return nil
}

// AwaitingNotification reports whether actor's next text is a broadcast.
// A lapsed session clears the pending state.
func (s *Session) AwaitingNotification(actor model.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.composing[actor]; !ok {
		return false
	}
	if !s.reg.IsAdmin(actor) {
		delete(s.composing, actor)
		return false
	}
	return true
}

// CancelNotification drops actor's pending broadcast.
func (s *Session) CancelNotification(actor model.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.composing, actor)
}

// SendNotification consumes the pending state and broadcasts text.
func (s *Session) SendNotification(ctx context.Context, actor model.UserID, text string) (broadcast.Result, error) {
	if !s.AwaitingNotification(actor) {
		return broadcast.Result{}, fmt.Errorf("no notification pending: %w", model.ErrValidation)
	}
	s.CancelNotification(actor)
	return s.Broadcast(ctx, actor, text)
}
