package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"
	"go.uber.org/zap"
)

// ErrSendFailed wraps Postmark delivery failures.
var ErrSendFailed = errors.New("failed to send notification email")

func init() {
	Register("email", func(s Settings, _ *zap.SugaredLogger) (Backend, error) {
		return NewEmailBackend(s)
	})
}

// EmailBackend sends plain-text email through Postmark.
type EmailBackend struct {
	client *postmark.Client
}

// NewEmailBackend validates the Postmark settings.
func NewEmailBackend(s Settings) (*EmailBackend, error) {
	switch {
	case s.ServerToken == "":
		return nil, fmt.Errorf("%w: email channel needs server_token", ErrInvalidSettings)
	case s.Sender == "":
		return nil, fmt.Errorf("%w: email channel needs sender", ErrInvalidSettings)
	case len(s.Destination) == 0:
		return nil, fmt.Errorf("%w: email channel needs a destination", ErrInvalidSettings)
	}
	return &EmailBackend{client: postmark.NewClient(s.ServerToken, s.AccountToken)}, nil
}

// Send implements Backend.
func (b *EmailBackend) Send(ctx context.Context, msg Message, s Settings) error {
	resp, err := b.client.SendEmail(ctx, postmark.Email{
		From:     s.Sender,
		To:       strings.Join(s.Destination, ","),
		Subject:  msg.Subject,
		Tag:      "harvest-" + msg.ChannelOr(s.Channel),
		TextBody: msg.Content,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrSendFailed,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
