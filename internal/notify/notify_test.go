package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/retry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
)

type countingSender struct {
	fail  bool
	sent  []transport.Message
	calls int
}

func (s *countingSender) Send(_ context.Context, _ transport.ChatID, msg transport.Message) error {
	s.calls++
	if s.fail {
		return errors.New("forbidden")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func instant() retry.Policy {
	return retry.Policy{Attempts: 3, BaseDelay: time.Second, Sleep: func(context.Context, time.Duration) error { return nil }}
}

func TestChannel_AlertDoesNotRecurse(t *testing.T) {
	sender := &countingSender{fail: true}
	ch := NewChannel(sender, -100, instant(), zap.NewNop())

	ch.Alert(context.Background(), "disk on fire")

	assert.Equal(t, 3, sender.calls, "one bounded retry loop and nothing more")
}

func TestChannel_AnnounceRegistration(t *testing.T) {
	sender := &countingSender{}
	ch := NewChannel(sender, -100, instant(), zap.NewNop())

	err := ch.AnnounceRegistration(context.Background(), model.Registration{
		Name: "John_Smith Jr", Days: 2, Gender: model.GenderMale,
	})

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.True(t, sender.sent[0].Markdown)
	assert.Contains(t, sender.sent[0].Text, `John\_Smith Jr`)
	assert.Contains(t, sender.sent[0].Text, "Gender: Male")
}

func TestChannel_AnnounceFailureIsTransportError(t *testing.T) {
	ch := NewChannel(&countingSender{fail: true}, -100, instant(), zap.NewNop())

	err := ch.AnnounceCheckIn(context.Background(), model.Registration{Name: "A B"})

	require.ErrorIs(t, err, model.ErrTransport)
}
