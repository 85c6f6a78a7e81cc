package notify

import (
	"io/ioutil"
	"log"
	"strings"
	"sync"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
)

// Sender is what a Dispatcher hands events to. *Notifier satisfies it
type Sender interface {
	SendCriticalAlert(severity dataobjects.Severity, title, message string, recipients []string, channels []Channel)
	SendPublicAnnouncement(message string, channels []Channel)
}

// Dispatcher is an emergency.Emitter that delivers events from its own goroutine.
// Emit never blocks: when the queue is full the event is dropped and logged
type Dispatcher struct {
	sender  Sender
	queue   chan emergency.Event
	quit    chan struct{}
	wg      sync.WaitGroup
	log     *log.Logger
	stats   Counter
	started bool
	stopped bool
	// mu is held for reading while Emit queues an event
	mu sync.RWMutex
}

var _ emergency.Emitter = (*Dispatcher)(nil)

// NewDispatcher returns a Dispatcher with a queue of the given size. Call Start to begin delivery
func NewDispatcher(sender Sender, queueSize int, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	return &Dispatcher{
		sender: sender,
		queue:  make(chan emergency.Event, queueSize),
		quit:   make(chan struct{}),
		log:    logger,
		stats:  nopCounter{},
	}
}

// SetCounter sets where event counts are sent. It must be called before Start
func (d *Dispatcher) SetCounter(c Counter) {
	d.stats = c
}

// Start launches the delivery goroutine
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	d.wg.Add(1)
	go d.run()
}

// Stop delivers the events already queued and stops the delivery goroutine
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.quit)
	d.mu.Unlock()
	d.wg.Wait()
}

// Emit queues an event for delivery. Events emitted after Stop are dropped
func (d *Dispatcher) Emit(event emergency.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.log.Println("Dispatcher stopped, dropped event", event.Kind)
		return
	}
	select {
	case d.queue <- event:
		d.stats.Increment("events." + strings.ToLower(string(event.Kind)))
	default:
		d.log.Println("Dispatch queue full, dropped event", event.Kind, event.Title)
		d.stats.Increment("events.dropped")
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.dispatch(event)
		case <-d.quit:
			for {
				select {
				case event := <-d.queue:
					d.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) dispatch(event emergency.Event) {
	channels := ChannelsFor(event)
	if event.Audience == emergency.AudiencePublic {
		d.sender.SendPublicAnnouncement(event.Title+". "+event.Message, channels)
		return
	}
	d.sender.SendCriticalAlert(event.Severity, event.Title, event.Message, RecipientsFor(event), channels)
}

// ChannelsFor returns the channels an event is delivered through
func ChannelsFor(event emergency.Event) []Channel {
	switch {
	case event.AllChannels:
		return AllChannels
	case event.Audience == emergency.AudiencePublic:
		return []Channel{ChannelLog, ChannelFeed, ChannelPush}
	case event.Severity == dataobjects.SeverityCritical || event.Severity == dataobjects.SeverityHigh:
		return []Channel{ChannelLog, ChannelDiscord, ChannelPush}
	}
	return []Channel{ChannelLog, ChannelDiscord}
}

// RecipientsFor returns the operator groups an event is addressed to
func RecipientsFor(event emergency.Event) []string {
	switch event.Kind {
	case emergency.EventCrisisActivated, emergency.EventCrisisEscalated, emergency.EventCrisisReoptimized, emergency.EventCrisisResolved:
		return []string{"control-room", "fleet-management", "maintenance"}
	case emergency.EventBreakdownHandled, emergency.EventReplanned, emergency.EventEmergencyResolved:
		return []string{"control-room", "maintenance"}
	}
	return []string{"control-room"}
}
