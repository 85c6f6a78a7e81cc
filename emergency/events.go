package emergency

import (
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
)

// EventKind identifies a domain event
type EventKind string

const (
	// EventBreakdownHandled summarizes the outcome of a breakdown
	EventBreakdownHandled EventKind = "BREAKDOWN_HANDLED"
	// EventReplanned announces a new plan made for an existing breakdown
	EventReplanned EventKind = "REPLANNED"
	// EventCrisisActivated announces a new crisis
	EventCrisisActivated EventKind = "CRISIS_ACTIVATED"
	// EventCrisisEscalated announces more withdrawals during an active crisis
	EventCrisisEscalated EventKind = "CRISIS_ESCALATED"
	// EventCrisisReoptimized announces the result of a fleet-wide reoptimization
	EventCrisisReoptimized EventKind = "CRISIS_REOPTIMIZED"
	// EventCrisisResolved announces the end of a crisis
	EventCrisisResolved EventKind = "CRISIS_RESOLVED"
	// EventPlanExecuted announces the deployment of a replacement train
	EventPlanExecuted EventKind = "PLAN_EXECUTED"
	// EventPlanRejected announces the rejection of a plan
	EventPlanRejected EventKind = "PLAN_REJECTED"
	// EventEmergencyResolved announces the resolution of a breakdown
	EventEmergencyResolved EventKind = "EMERGENCY_RESOLVED"
	// EventFrequencyReduced announces a reduction of the service frequency of a route
	EventFrequencyReduced EventKind = "FREQUENCY_REDUCED"
)

// Audience is who an event is meant for
type Audience string

const (
	// AudienceOperators are control room staff and maintenance supervisors
	AudienceOperators Audience = "OPERATORS"
	// AudiencePublic are passengers
	AudiencePublic Audience = "PUBLIC"
)

// Event is a domain event emitted after an operation commits
type Event struct {
	Kind           EventKind
	Time           time.Time
	Severity       dataobjects.Severity
	Title          string
	Message        string
	Audience       Audience
	TrainIDs       []string
	EmergencyLogID string
	PlanID         string
	CrisisID       string
	RouteID        string
	// AllChannels requests delivery through every configured channel
	AllChannels bool
}

// Emitter receives the events of a Handler. Emit must not block for long
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to the Emitter interface
type EmitterFunc func(event Event)

// Emit calls f(event)
func (f EmitterFunc) Emit(event Event) {
	f(event)
}

type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}
