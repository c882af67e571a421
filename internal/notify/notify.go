// internal/notify/notify.go
//
// Outbound notifications.
//
// Context
// -------
// A harvest run tells people about three things: the catalogue could not be
// reached, a record failed validation, and the run finished.  Service turns
// those events into a Message (subject + plain-text content) and hands it to
// one Backend chosen by the `notifications.channel` setting:
//
//	file   one text file per message under output_dir
//	email  Postmark transactional email to every destination
//	log    structured log line, for development
//
// Backends register themselves by channel name (see registry.go), so adding
// a channel never touches Service.
//
// Notes
// -----
//   - A Message may name its own channel; it is written into the message but
//     does not reroute it.
//   - Oxford commas, two spaces after periods.
package notify

import (
	"context"
	"errors"

	"github.com/yanizio/harvest/internal/config"
)

// ErrInvalidSettings reports a backend that cannot be built from Settings.
var ErrInvalidSettings = errors.New("invalid notification settings")

// Message is one notification.
type Message struct {
	Subject string
	Content string
	Channel string // optional override recorded with the message
}

// ChannelOr returns m.Channel, or def when unset.
func (m Message) ChannelOr(def string) string {
	if m.Channel != "" {
		return m.Channel
	}
	return def
}

// Settings is the delivery configuration shared by all backends.
type Settings struct {
	Channel      string
	Destination  []string
	OutputDir    string
	Sender       string
	ServerToken  string
	AccountToken string
}

// SettingsFrom maps the `notifications` configuration section.
func SettingsFrom(n config.Notifications) Settings {
	return Settings{
		Channel:      n.Channel,
		Destination:  n.Destination,
		OutputDir:    n.OutputDir,
		Sender:       n.Sender,
		ServerToken:  n.ServerToken,
		AccountToken: n.AccountToken,
	}
}

// Backend delivers a Message.
type Backend interface {
	Send(ctx context.Context, msg Message, s Settings) error
}
