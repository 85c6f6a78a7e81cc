// Package notify delivers operator alerts and public announcements over several channels
package notify

import (
	"io/ioutil"
	"log"
	"strings"
	"sync"
	"time"
	"unicode"

	cache "github.com/patrickmn/go-cache"
	"github.com/railops/fleetcrisis/dataobjects"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Channel is a delivery channel
type Channel string

const (
	// ChannelLog writes messages to the log
	ChannelLog Channel = "log"
	// ChannelPush sends push notifications to mobile devices
	ChannelPush Channel = "push"
	// ChannelDiscord posts messages on the operators' Discord channel
	ChannelDiscord Channel = "discord"
	// ChannelFeed publishes messages on the public announcement feed
	ChannelFeed Channel = "feed"
)

// AllChannels lists every channel
var AllChannels = []Channel{ChannelLog, ChannelPush, ChannelDiscord, ChannelFeed}

// AnnouncementDedupWindow is how long an identical public announcement is suppressed for
const AnnouncementDedupWindow = 5 * time.Minute

// Message is what backends deliver
type Message struct {
	Time       time.Time
	Severity   dataobjects.Severity
	Title      string
	Body       string
	Recipients []string
	Public     bool
}

// Backend delivers messages over one channel
type Backend interface {
	Channel() Channel
	Deliver(msg Message) error
}

// Counter receives counts of delivered and failed messages. A *statsd.Client satisfies it
type Counter interface {
	Increment(bucket string)
}

type nopCounter struct{}

func (nopCounter) Increment(string) {}

// Notifier sends messages through the backends of the requested channels.
// Delivery failures are logged and counted, never returned
type Notifier struct {
	backends map[Channel]Backend
	log      *log.Logger
	sent     *cache.Cache
	statsMu  sync.RWMutex
	stats    Counter
	now      func() time.Time
}

// NewNotifier returns a Notifier delivering through the given backends
func NewNotifier(logger *log.Logger, backends ...Backend) *Notifier {
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	n := &Notifier{
		backends: make(map[Channel]Backend),
		log:      logger,
		sent:     cache.New(AnnouncementDedupWindow, 2*AnnouncementDedupWindow),
		stats:    nopCounter{},
		now:      time.Now,
	}
	for _, backend := range backends {
		n.backends[backend.Channel()] = backend
	}
	return n
}

// SetCounter sets where delivery counts are sent
func (n *Notifier) SetCounter(c Counter) {
	n.statsMu.Lock()
	defer n.statsMu.Unlock()
	n.stats = c
}

func (n *Notifier) count(bucket string) {
	n.statsMu.RLock()
	defer n.statsMu.RUnlock()
	n.stats.Increment(bucket)
}

// Channels returns the channels that have a backend
func (n *Notifier) Channels() []Channel {
	channels := []Channel{}
	for _, c := range AllChannels {
		if _, ok := n.backends[c]; ok {
			channels = append(channels, c)
		}
	}
	return channels
}

// SendCriticalAlert sends an alert to operators
func (n *Notifier) SendCriticalAlert(severity dataobjects.Severity, title, message string, recipients []string, channels []Channel) {
	n.deliver(Message{
		Time:       n.now(),
		Severity:   severity,
		Title:      title,
		Body:       message,
		Recipients: recipients,
	}, channels)
}

// SendPublicAnnouncement sends an announcement to passengers.
// An announcement identical to one sent within AnnouncementDedupWindow is suppressed
func (n *Notifier) SendPublicAnnouncement(message string, channels []Channel) {
	key := announcementKey(message)
	if err := n.sent.Add(key, true, cache.DefaultExpiration); err != nil {
		n.log.Println("Suppressed repeated announcement:", message)
		n.count("announcements.suppressed")
		return
	}
	n.deliver(Message{
		Time:     n.now(),
		Severity: dataobjects.SeverityLow,
		Title:    "Service announcement",
		Body:     message,
		Public:   true,
	}, channels)
}

func (n *Notifier) deliver(msg Message, channels []Channel) {
	for _, channel := range channels {
		backend, ok := n.backends[channel]
		if !ok {
			continue
		}
		if err := backend.Deliver(msg); err != nil {
			n.log.Printf("Delivery of %q through %s failed: %s", msg.Title, channel, err)
			n.count("notify.failed." + string(channel))
			continue
		}
		n.count("notify.sent." + string(channel))
	}
}

// announcementKey normalizes a message so that announcements differing only in case,
// spacing or diacritics are considered identical
func announcementKey(message string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(t, message)
	if err != nil {
		normalized = message
	}
	return strings.Join(strings.Fields(strings.ToLower(normalized)), " ")
}
