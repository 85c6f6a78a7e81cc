package notify

import (
	"sync"
	"time"

	"github.com/gorilla/feeds"
	uuid "github.com/satori/go.uuid"
)

// FeedBackend keeps the latest messages and publishes them as an Atom feed
type FeedBackend struct {
	mu       sync.RWMutex
	title    string
	link     string
	maxItems int
	items    []*feeds.Item
}

// NewFeedBackend returns a FeedBackend keeping up to maxItems messages
func NewFeedBackend(title, link string, maxItems int) *FeedBackend {
	return &FeedBackend{
		title:    title,
		link:     link,
		maxItems: maxItems,
	}
}

// Channel implements Backend
func (b *FeedBackend) Channel() Channel { return ChannelFeed }

// Deliver implements Backend
func (b *FeedBackend) Deliver(msg Message) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	item := &feeds.Item{
		Id:          "urn:uuid:" + id.String(),
		Title:       msg.Title,
		Link:        &feeds.Link{Href: b.link},
		Description: msg.Body,
		Created:     msg.Time,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append([]*feeds.Item{item}, b.items...)
	if len(b.items) > b.maxItems {
		b.items = b.items[:b.maxItems]
	}
	return nil
}

// Len returns the number of items in the feed
func (b *FeedBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// Atom renders the feed, most recent items first
func (b *FeedBackend) Atom() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	feed := &feeds.Feed{
		Title:       b.title,
		Link:        &feeds.Link{Href: b.link},
		Description: "Service announcements",
		Updated:     time.Now(),
		Items:       append([]*feeds.Item{}, b.items...),
	}
	if len(b.items) > 0 {
		feed.Updated = b.items[0].Created
	}
	return feed.ToAtom()
}
