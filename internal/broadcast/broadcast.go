// Package broadcast delivers one message to many recipients.
//
// Delivery is sequential with a fixed pacing delay to stay under the chat
// platform's rate limits. Each recipient gets its own bounded retry; a
// recipient that keeps failing is counted and skipped, never aborting the
// rest.
package broadcast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/retry"
	"github.com/Shivanand-hulikatti/gathering-registration/internal/transport"
)

// Sender is the slice of transport.Bot the broadcaster needs.
type Sender interface {
	Send(ctx context.Context, chat transport.ChatID, msg transport.Message) error
}

// Operator receives the aggregate failure report.
type Operator interface {
	Alert(ctx context.Context, message string)
}

// Result counts delivered and permanently failed recipients.
type Result struct {
	Sent   int
	Failed int
}

// Broadcaster fans messages out.
type Broadcaster struct {
	sender   Sender
	operator Operator
	policy   retry.Policy
	pacing   time.Duration
	log      *zap.Logger
}

// New constructs a Broadcaster. pacing is waited after every successful
// delivery.
func New(sender Sender, operator Operator, policy retry.Policy, pacing time.Duration, log *zap.Logger) *Broadcaster {
	return &Broadcaster{
		sender:   sender,
		operator: operator,
		policy:   policy,
		pacing:   pacing,
		log:      log,
	}
}

// FanOut sends msg to every recipient.
func (b *Broadcaster) FanOut(ctx context.Context, recipients []model.UserID, msg transport.Message) Result {
	return b.FanOutFunc(ctx, recipients, func(model.UserID) transport.Message { return msg })
}

// FanOutFunc is FanOut with a per-recipient message, used when the reply
// keyboard depends on the recipient's state.
func (b *Broadcaster) FanOutFunc(ctx context.Context, recipients []model.UserID, build func(model.UserID) transport.Message) Result {
	var res Result
	for _, user := range recipients {
		if ctx.Err() != nil {
			// Whatever was not attempted counts as failed.
			res.Failed += len(recipients) - res.Sent - res.Failed
			break
		}
		msg := build(user)
		err := b.policy.Do(ctx, func(attempt int) error {
			err := b.sender.Send(ctx, transport.ChatID(user), msg)
			if err != nil {
				b.log.Warn("broadcast delivery failed",
					zap.Int64("user_id", int64(user)),
					zap.Int("attempt", attempt+1),
					zap.Error(err),
				)
			}
			return err
		})
		if err != nil {
			res.Failed++
			continue
		}
		res.Sent++
		if b.pacing > 0 {
			_ = b.policy.Wait(ctx, b.pacing)
		}
	}

	b.log.Info("broadcast finished",
		zap.Int("recipients", len(recipients)),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	if res.Failed > 0 {
		b.operator.Alert(ctx, fmt.Sprintf("broadcast could not reach %d of %d recipients", res.Failed, len(recipients)))
	}
	return res
}
