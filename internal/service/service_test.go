package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/admin"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/allocator"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/broadcast"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/content"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/credential"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/intake"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/registry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/retry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/syncer"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
)

type sent struct {
	chat transport.ChatID
	msg  transport.Message
}

type fakeBot struct {
	mu        sync.Mutex
	sends     []sent
	edits     []sent
	answered  []string
	photo     []byte
	failPhoto bool
}

func (b *fakeBot) Send(_ context.Context, chat transport.ChatID, msg transport.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPhoto && msg.Photo != nil {
		return model.ErrTransport
	}
	b.sends = append(b.sends, sent{chat, msg})
	return nil
}

func (b *fakeBot) Edit(_ context.Context, chat transport.ChatID, _ int64, msg transport.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edits = append(b.edits, sent{chat, msg})
	return nil
}

func (b *fakeBot) AnswerCallback(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answered = append(b.answered, id)
	return nil
}

func (b *fakeBot) DownloadPhoto(context.Context, string) ([]byte, error) {
	if b.photo == nil {
		return nil, errors.New("no such file")
	}
	return b.photo, nil
}

func (b *fakeBot) last() transport.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sends) == 0 {
		return transport.Message{}
	}
	return b.sends[len(b.sends)-1].msg
}

type fakeChannel struct {
	mu        sync.Mutex
	announced []model.Registration
	checkIns  []model.Registration
	alerts    []string
}

func (c *fakeChannel) AnnounceRegistration(_ context.Context, reg model.Registration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.announced = append(c.announced, reg)
	return nil
}

func (c *fakeChannel) AnnounceCheckIn(_ context.Context, reg model.Registration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkIns = append(c.checkIns, reg)
	return nil
}

func (c *fakeChannel) Alert(_ context.Context, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, msg)
}

type fakeSync struct {
	mu        sync.Mutex
	scheduled syncer.Target
}

func (s *fakeSync) Schedule(t syncer.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled |= t
}

func (s *fakeSync) Save(_ context.Context, t syncer.Target) error {
	s.Schedule(t)
	return nil
}

type fakeBroadcaster struct {
	recipients []model.UserID
	msg        transport.Message
	perUser    map[model.UserID]transport.Message
}

func (f *fakeBroadcaster) FanOut(_ context.Context, recipients []model.UserID, msg transport.Message) broadcast.Result {
	f.recipients, f.msg = recipients, msg
	return broadcast.Result{Sent: len(recipients)}
}

func (f *fakeBroadcaster) FanOutFunc(_ context.Context, recipients []model.UserID, build func(model.UserID) transport.Message) broadcast.Result {
	f.recipients, f.perUser = recipients, make(map[model.UserID]transport.Message)
	for _, u := range recipients {
		f.perUser[u] = build(u)
	}
	return broadcast.Result{Sent: len(recipients)}
}

type fixture struct {
	svc     *BotService
	bot     *fakeBot
	reg     *registry.Registry
	channel *fakeChannel
	sync    *fakeSync
	fanout  *fakeBroadcaster
}

const password = "s3cret"

func newFixture() fixture {
	log := zap.NewNop()
	f := fixture{
		bot:     &fakeBot{},
		reg:     registry.New(log),
		channel: &fakeChannel{},
		sync:    &fakeSync{},
		fanout:  &fakeBroadcaster{},
	}
	session := admin.New(admin.Config{Password: password, Keyboard: ParticipantKeyboard(f.reg)},
		f.reg, f.sync, f.fanout, f.channel, log)
	f.svc = NewBotService(Deps{
		Bot:       f.bot,
		Registry:  f.reg,
		Intake:    intake.NewEngine(f.reg, f.sync, f.channel, f.channel, log),
		Allocator: allocator.New(f.reg, f.sync, log),
		Admin:     session,
		Sync:      f.sync,
		Operator:  f.channel,
		Content:   content.Default(),
		Organizer: "@org",
		Policy:    retry.Policy{Attempts: 1},
		Logger:    log,
	})
	return f
}

func text(user int64, s string) transport.Update {
	return transport.Update{UserID: user, ChatID: transport.ChatID(user), Text: s}
}

func command(user int64, cmd string, args ...string) transport.Update {
	return transport.Update{UserID: user, ChatID: transport.ChatID(user), Command: cmd, CommandArgs: args}
}

func callback(user int64, data string) transport.Update {
	return transport.Update{
		UserID:   user,
		ChatID:   transport.ChatID(user),
		Username: "maria",
		Callback: &transport.Callback{ID: "cb-" + data, Data: data, MessageID: 100},
	}
}

func (f fixture) handle(t *testing.T, u transport.Update) {
	t.Helper()
	require.NoError(t, f.svc.Handle(context.Background(), u))
}

func registrationSteps(user int64) []transport.Update {
	chat := transport.ChatID(user)
	return []transport.Update{
		callback(user, cbAgree),
		text(user, "Maria Ivanova"),
		callback(user, "days_2"),
		callback(user, "date_03.07.2025"),
		{UserID: user, ChatID: chat, Username: "maria", Text: "Vitebsk"},
		{UserID: user, ChatID: chat, Contact: "+375447654321"},
		text(user, "12.12.1995"),
		callback(user, "gender_Female"),
	}
}

func (f fixture) register(t *testing.T, user int64) {
	t.Helper()
	for _, u := range registrationSteps(user) {
		f.handle(t, u)
	}
}

func TestStart_MarksOpenedAndShowsRegister(t *testing.T) {
	f := newFixture()
	f.handle(t, command(1, "start"))

	assert.Equal(t, []model.UserID{1}, f.reg.Opened())
	assert.NotZero(t, f.sync.scheduled&syncer.TargetCounters)
	assert.Equal(t, []string{btnRegister}, f.bot.last().Keyboard[0])
}

func TestRegistrationFlow(t *testing.T) {
	f := newFixture()
	f.register(t, 7)

	reg, ok := f.reg.ByUser(7)
	require.True(t, ok)
	assert.Equal(t, "Maria Ivanova", reg.Name)
	assert.Equal(t, 2, reg.Days)
	assert.Equal(t, "@maria", reg.Handle)
	assert.Equal(t, model.GenderFemale, reg.Gender)
	assert.Len(t, f.channel.announced, 1)

	last := f.bot.last()
	assert.NotEmpty(t, last.Photo)
	assert.Contains(t, last.Text, "Registration complete")
	assert.Contains(t, f.bot.answered, "cb-gender_Female")

	id, err := credential.Decode(last.Photo)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, id)
}

func TestRegistration_RejectedAnswerReprompts(t *testing.T) {
	f := newFixture()
	f.handle(t, callback(3, cbAgree))
	f.handle(t, text(3, "Maria"))

	assert.Equal(t, intake.AwaitName, f.svc.intake.State(3))
	assert.Contains(t, f.bot.last().Text, "at least two words")
}

func TestRegistration_StaleButtonDoesNotAnswerOtherStep(t *testing.T) {
	f := newFixture()
	steps := registrationSteps(9)
	for _, u := range steps[:4] {
		f.handle(t, u)
	}
	require.Equal(t, intake.AwaitCity, f.svc.intake.State(9))

	f.handle(t, callback(9, "gender_Female"))
	f.handle(t, callback(9, "date_04.07.2025"))
	f.handle(t, callback(9, "days_3"))

	assert.Equal(t, intake.AwaitCity, f.svc.intake.State(9))
	assert.Equal(t, prompt(intake.AwaitCity).Text, f.bot.last().Text)

	for _, u := range steps[4:] {
		f.handle(t, u)
	}
	reg, ok := f.reg.ByUser(9)
	require.True(t, ok)
	assert.Equal(t, "Vitebsk", reg.City)
	assert.Equal(t, "03.07.2025", reg.ArrivalDate)
	assert.Equal(t, 2, reg.Days)
}

func TestRegistration_ButtonWhileIdleIsIgnored(t *testing.T) {
	f := newFixture()
	f.handle(t, callback(4, "days_2"))

	assert.Equal(t, intake.Idle, f.svc.intake.State(4))
	assert.Empty(t, f.bot.sends)
	assert.Equal(t, []string{"cb-days_2"}, f.bot.answered)
}

func TestRegistration_CancelCommand(t *testing.T) {
	f := newFixture()
	f.handle(t, callback(3, cbAgree))
	f.handle(t, text(3, "Maria Ivanova"))
	f.handle(t, command(3, "cancel"))

	assert.Equal(t, intake.Idle, f.svc.intake.State(3))
	assert.False(t, f.reg.IsRegistered(3))
	assert.Equal(t, "Action cancelled.", f.bot.last().Text)
}

func TestRegistration_AlreadyRegistered(t *testing.T) {
	f := newFixture()
	f.register(t, 7)
	f.handle(t, callback(7, cbAgree))

	assert.Equal(t, "You are already registered!", f.bot.last().Text)
	assert.Equal(t, intake.Idle, f.svc.intake.State(7))
}

func TestCredentialFallsBackToText(t *testing.T) {
	f := newFixture()
	f.bot.failPhoto = true
	f.register(t, 7)

	last := f.bot.last()
	assert.Nil(t, last.Photo)
	assert.Contains(t, last.Text, "Registration complete")
	require.Len(t, f.channel.alerts, 1)
	assert.Contains(t, f.channel.alerts[0], "not delivered")
}

func TestRoomAssignment(t *testing.T) {
	f := newFixture()
	f.register(t, 7)

	f.handle(t, callback(7, "room_6"))

	room, ok := f.reg.RoomOf(7)
	require.True(t, ok)
	assert.Equal(t, model.RoomNumber(6), room)
	require.NotEmpty(t, f.bot.edits)
	assert.Equal(t, "You booked house 6.", f.bot.edits[len(f.bot.edits)-1].msg.Text)
	assert.Equal(t, []string{btnCancelAccommodation}, f.bot.last().Keyboard[0])
}

func TestRoomAssignment_WrongPartition(t *testing.T) {
	f := newFixture()
	f.register(t, 7)

	f.handle(t, callback(7, "room_2"))

	_, ok := f.reg.RoomOf(7)
	assert.False(t, ok)
	assert.Equal(t, "This house is not available to you.", f.bot.last().Text)
}

func TestReleaseRoom(t *testing.T) {
	f := newFixture()
	f.register(t, 7)
	f.handle(t, callback(7, "room_6"))

	f.handle(t, text(7, btnCancelAccommodation))

	_, ok := f.reg.RoomOf(7)
	assert.False(t, ok)
	assert.Equal(t, "Your accommodation was cancelled.", f.bot.last().Text)

	f.handle(t, text(7, btnCancelAccommodation))
	assert.Equal(t, "You are not accommodated.", f.bot.last().Text)
}

func TestOfferAccommodation_ListsPartition(t *testing.T) {
	f := newFixture()
	f.register(t, 7)

	f.handle(t, callback(7, admin.CallbackNeedAccommodation))

	rows := f.bot.last().Inline
	require.Len(t, rows, 2)
	assert.Equal(t, "room_6", rows[0][0].Data)
	assert.Equal(t, "House 6 (0/15)", rows[0][0].Text)
}

func TestDeclineAccommodation(t *testing.T) {
	f := newFixture()
	f.register(t, 7)

	f.handle(t, callback(7, admin.CallbackNoAccommodation))

	assert.Equal(t, "Stock up on bug spray.", f.bot.edits[len(f.bot.edits)-1].msg.Text)
	assert.Equal(t, "You declined accommodation.", f.bot.last().Text)
}

func TestAdminLogin(t *testing.T) {
	f := newFixture()

	f.handle(t, command(9, "admin", "wrong"))
	assert.False(t, f.reg.IsAdmin(9))

	f.handle(t, command(9, "admin", password))
	assert.True(t, f.reg.IsAdmin(9))
	assert.Equal(t, adminKeyboard, f.bot.last().Keyboard)

	f.handle(t, text(9, btnSchedule))
	assert.Equal(t, "You are in admin mode.", f.bot.last().Text)

	f.handle(t, text(9, btnLogout))
	assert.False(t, f.reg.IsAdmin(9))
}

func TestAdminCheckInByPhoto(t *testing.T) {
	f := newFixture()
	f.register(t, 7)
	reg, _ := f.reg.ByUser(7)
	png, err := credential.Encode(reg.ID)
	require.NoError(t, err)
	f.bot.photo = png

	f.handle(t, command(9, "admin", password))
	f.handle(t, transport.Update{UserID: 9, ChatID: 9, PhotoFileID: "file"})

	assert.Contains(t, f.bot.last().Text, "Participant checked in.")
	assert.Equal(t, 1, f.reg.Stats().CheckedIn)
	assert.Len(t, f.channel.checkIns, 1)

	f.handle(t, transport.Update{UserID: 9, ChatID: 9, PhotoFileID: "file"})
	assert.Contains(t, f.bot.last().Text, "already checked in")
	assert.Len(t, f.channel.checkIns, 1)
}

func TestPhotoFromParticipantIsRefused(t *testing.T) {
	f := newFixture()
	f.handle(t, transport.Update{UserID: 5, ChatID: 5, PhotoFileID: "file"})
	assert.Equal(t, "You are not an admin.", f.bot.last().Text)
}

func TestCheckCommand(t *testing.T) {
	f := newFixture()
	f.register(t, 7)
	reg, _ := f.reg.ByUser(7)

	f.handle(t, command(9, "check", reg.ID))
	assert.Equal(t, "You are not an admin.", f.bot.last().Text)

	f.handle(t, command(9, "admin", password))
	f.handle(t, command(9, "check", reg.ID))
	assert.Contains(t, f.bot.last().Text, "Accommodation: not needed")

	f.handle(t, command(9, "check", "missing"))
	assert.Equal(t, "Registration not found.", f.bot.last().Text)
}

func TestAdminNotification(t *testing.T) {
	f := newFixture()
	f.handle(t, command(1, "start"))
	f.handle(t, command(9, "admin", password))

	f.handle(t, text(9, btnSendNotification))
	f.handle(t, text(9, "Bus leaves at 9"))

	assert.Equal(t, []model.UserID{1}, f.fanout.recipients)
	assert.Contains(t, f.fanout.msg.Text, "Bus leaves at 9")
	assert.Equal(t, "Sent to 1 users. Failed: 0.", f.bot.last().Text)
}

func TestAdminNotification_Cancel(t *testing.T) {
	f := newFixture()
	f.handle(t, command(9, "admin", password))

	f.handle(t, text(9, btnSendNotification))
	f.handle(t, text(9, btnCancel))

	assert.Nil(t, f.fanout.recipients)
	assert.Equal(t, "Notification cancelled.", f.bot.last().Text)
}

func TestAdminClearAll(t *testing.T) {
	f := newFixture()
	f.register(t, 7)
	f.handle(t, command(9, "admin", password))

	f.handle(t, text(9, btnClear))
	assert.Equal(t, cbConfirmClear, f.bot.last().Inline[0][0].Data)

	f.handle(t, command(7, "start"))
	f.handle(t, callback(7, "room_6"))
	require.Equal(t, []string{btnCancelAccommodation}, f.svc.keyboardFor(7)[0])

	f.handle(t, callback(9, cbConfirmClear))
	assert.False(t, f.reg.IsRegistered(7))
	assert.Contains(t, f.bot.last().Text, "Registrations cleared.")

	notice := f.fanout.perUser[7]
	assert.Equal(t, admin.ResetNotice, notice.Text)
	assert.Equal(t, []string{btnRegister}, notice.Keyboard[0])
}

func TestAdminAccommodationRound(t *testing.T) {
	f := newFixture()
	f.register(t, 7)
	f.handle(t, command(9, "admin", password))

	f.handle(t, callback(9, cbConfirmSleep))

	assert.Equal(t, []model.UserID{7}, f.fanout.recipients)
	assert.True(t, f.reg.AccommodationInitiated(7))
	assert.Equal(t, []string{btnAccommodate}, f.svc.keyboardFor(7)[0])
}

func TestStaticScreens(t *testing.T) {
	f := newFixture()

	f.handle(t, text(2, btnContacts))
	assert.Contains(t, f.bot.last().Text, "@org")

	f.handle(t, text(2, btnQRCode))
	assert.Equal(t, "Finish registration first.", f.bot.last().Text)
}

func TestUsersAreIndependent(t *testing.T) {
	f := newFixture()
	var wg sync.WaitGroup
	for user := int64(100); user < 110; user++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, u := range registrationSteps(user) {
				assert.NoError(t, f.svc.Handle(context.Background(), u))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, f.reg.Stats().Registered)
}
