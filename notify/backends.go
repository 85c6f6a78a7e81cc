package notify

import (
	"fmt"
	"log"
	"strings"
	"sync"

	fcm "github.com/NaySoftware/go-fcm"
	"github.com/bwmarrin/discordgo"
	altmath "github.com/pkg/math"
	"github.com/railops/fleetcrisis/dataobjects"
)

// LogBackend writes messages to a logger
type LogBackend struct {
	log *log.Logger
}

// NewLogBackend returns a LogBackend writing to logger
func NewLogBackend(logger *log.Logger) *LogBackend {
	return &LogBackend{log: logger}
}

// Channel implements Backend
func (b *LogBackend) Channel() Channel { return ChannelLog }

// Deliver implements Backend
func (b *LogBackend) Deliver(msg Message) error {
	audience := "operators"
	if msg.Public {
		audience = "public"
	} else if len(msg.Recipients) > 0 {
		audience = strings.Join(msg.Recipients, ",")
	}
	b.log.Printf("[%s] [%s] %s: %s", msg.Severity, audience, msg.Title, msg.Body)
	return nil
}

// PushBackend sends FCM topic messages
type PushBackend struct {
	// the FCM client keeps the message being built, so sends are serialized
	mu          sync.Mutex
	client      *fcm.FcmClient
	topicPrefix string
}

// NewPushBackend returns a PushBackend sending through client to topics named
// topicPrefix + "announcements" and topicPrefix + "operators"
func NewPushBackend(client *fcm.FcmClient, topicPrefix string) *PushBackend {
	return &PushBackend{
		client:      client,
		topicPrefix: topicPrefix,
	}
}

// Channel implements Backend
func (b *PushBackend) Channel() Channel { return ChannelPush }

// Topic returns the topic a message is sent to
func (b *PushBackend) Topic(msg Message) string {
	if msg.Public {
		return b.topicPrefix + "announcements"
	}
	return b.topicPrefix + "operators"
}

// Deliver implements Backend
func (b *PushBackend) Deliver(msg Message) error {
	data := map[string]string{
		"severity": string(msg.Severity),
		"title":    msg.Title,
		"body":     msg.Body,
		"time":     msg.Time.UTC().Format("2006-01-02T15:04:05Z"),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.client.NewFcmMsgTo(b.Topic(msg), data)
	if msg.Severity == dataobjects.SeverityCritical || msg.Severity == dataobjects.SeverityHigh || msg.Public {
		b.client.SetPriority(fcm.Priority_HIGH)
	} else {
		b.client.SetPriority(fcm.Priority_NORMAL)
	}
	status, err := b.client.Send()
	if err != nil {
		return err
	}
	if status != nil && status.Fail > 0 {
		return fmt.Errorf("FCM reported %d failures: %v", status.Fail, status.Err)
	}
	return nil
}

// DiscordMessageLimit is the maximum length of a Discord message
const DiscordMessageLimit = 2000

// DiscordBackend posts messages on a Discord channel
type DiscordBackend struct {
	channelID string
	send      func(channelID, content string) error
}

// NewDiscordBackend returns a DiscordBackend posting on channelID through session
func NewDiscordBackend(session *discordgo.Session, channelID string) *DiscordBackend {
	return &DiscordBackend{
		channelID: channelID,
		send: func(channelID, content string) error {
			_, err := session.ChannelMessageSend(channelID, content)
			return err
		},
	}
}

// Channel implements Backend
func (b *DiscordBackend) Channel() Channel { return ChannelDiscord }

// Deliver implements Backend
func (b *DiscordBackend) Deliver(msg Message) error {
	return b.send(b.channelID, FormatDiscordMessage(msg))
}

// FormatDiscordMessage renders a message in Discord markdown
func FormatDiscordMessage(msg Message) string {
	var icon string
	switch msg.Severity {
	case dataobjects.SeverityCritical:
		icon = "🚨"
	case dataobjects.SeverityHigh:
		icon = "⚠️"
	case dataobjects.SeverityMedium:
		icon = "🔶"
	default:
		icon = "ℹ️"
	}
	content := fmt.Sprintf("%s **%s**\n%s", icon, msg.Title, msg.Body)
	if len(msg.Recipients) > 0 {
		content += "\n_to: " + strings.Join(msg.Recipients, ", ") + "_"
	}
	runes := []rune(content)
	return string(runes[:altmath.Min(len(runes), DiscordMessageLimit)])
}
