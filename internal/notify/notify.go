// Package notify posts to the organisers' channel: operator alerts about
// failures and public announcements about new registrations and
// check-ins.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/retry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
)

// Sender is the slice of transport.Bot needed here.
type Sender interface {
	Send(ctx context.Context, chat transport.ChatID, msg transport.Message) error
}

// Channel posts to one chat with bounded retry.
//
// Alert is the end of the failure path: when the channel itself cannot be
// reached the failure is logged and dropped. It never reports to itself.
type Channel struct {
	sender Sender
	chat   transport.ChatID
	policy retry.Policy
	log    *zap.Logger
}

// NewChannel constructs a Channel posting to chat.
func NewChannel(sender Sender, chat transport.ChatID, policy retry.Policy, log *zap.Logger) *Channel {
	return &Channel{sender: sender, chat: chat, policy: policy, log: log}
}

// Alert relays an operator-facing failure.
func (c *Channel) Alert(ctx context.Context, message string) {
	c.log.Error("operator alert", zap.String("message", message))
	if err := c.post(ctx, transport.Message{Text: "Bot error: " + message}); err != nil {
		c.log.Error("operator alert not delivered", zap.String("message", message), zap.Error(err))
	}
}

// AnnounceRegistration posts a new registration publicly.
func (c *Channel) AnnounceRegistration(ctx context.Context, reg model.Registration) error {
	return c.post(ctx, transport.Message{
		Text:     "*New registration!*\n" + Describe(reg),
		Markdown: true,
	})
}

// AnnounceCheckIn posts an arrival.
func (c *Channel) AnnounceCheckIn(ctx context.Context, reg model.Registration) error {
	return c.post(ctx, transport.Message{
		Text:     "*Checked in*\n" + Describe(reg),
		Markdown: true,
	})
}

func (c *Channel) post(ctx context.Context, msg transport.Message) error {
	err := c.policy.Do(ctx, func(attempt int) error {
		err := c.sender.Send(ctx, c.chat, msg)
		if err != nil {
			c.log.Warn("channel post failed", zap.Int("attempt", attempt+1), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("post to channel %d: %w: %w", c.chat, model.ErrTransport, err)
	}
	return nil
}

// Describe renders a registration as Markdown lines.
func Describe(reg model.Registration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", EscapeMarkdown(reg.Name))
	fmt.Fprintf(&b, "Days: %d\n", reg.Days)
	fmt.Fprintf(&b, "Arrival: %s\n", reg.ArrivalDate)
	fmt.Fprintf(&b, "City: %s\n", EscapeMarkdown(reg.City))
	fmt.Fprintf(&b, "Handle: %s\n", EscapeMarkdown(reg.Handle))
	fmt.Fprintf(&b, "Phone: %s\n", EscapeMarkdown(reg.Phone))
	fmt.Fprintf(&b, "Born: %s\n", reg.BirthDate)
	fmt.Fprintf(&b, "Gender: %s", reg.Gender)
	return b.String()
}

var markdownEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"[", `\[`,
	"`", "\\`",
)

// EscapeMarkdown escapes the characters that legacy Markdown treats as
// entity delimiters.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
