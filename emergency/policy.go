package emergency

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/thoas/go-funk"
)

// EligibilityPolicy holds the emergency-mode rules used to accept replacement trains
// and the constants of the readiness estimate
type EligibilityPolicy struct {
	// CertificateMargin is how long a certificate must remain valid past the evaluation time.
	// A train is ineligible if any of its certificates expires before now + CertificateMargin
	CertificateMargin time.Duration
	// MaxOpenCriticalJobCards is the largest number of open critical job cards an eligible train may have
	MaxOpenCriticalJobCards int
	// RequireCertificate makes trains without any fitness certificate ineligible
	RequireCertificate bool

	CrewNotificationMinutes int
	// DefaultShuntingMinutes is used when a train has no stabling record
	DefaultShuntingMinutes int
	SafetyCheckMinutes     int
}

// DefaultEligibilityPolicy returns the relaxed rules used during emergencies
func DefaultEligibilityPolicy() EligibilityPolicy {
	return EligibilityPolicy{
		CertificateMargin:       0,
		MaxOpenCriticalJobCards: 3,
		RequireCertificate:      false,
		CrewNotificationMinutes: 5,
		DefaultShuntingMinutes:  10,
		SafetyCheckMinutes:      4,
	}
}

// Validate checks the policy for values that make no sense
func (p EligibilityPolicy) Validate() error {
	if p.CertificateMargin < 0 {
		return errors.New("certificate margin must not be negative")
	}
	if p.MaxOpenCriticalJobCards < 0 {
		return errors.New("maximum open critical job cards must not be negative")
	}
	if p.CrewNotificationMinutes < 0 || p.DefaultShuntingMinutes < 0 || p.SafetyCheckMinutes < 0 {
		return errors.New("readiness constants must not be negative")
	}
	return nil
}

// CrisisPolicy holds the configuration of crisis detection and fleet reoptimization
type CrisisPolicy struct {
	// CriticalRoutes are the routes to protect during a crisis, most important first
	CriticalRoutes []string
	// LowDemandRoutes are the routes trains may be taken from during a crisis
	LowDemandRoutes []string
	// MinimumFleetFraction is the fraction of the fleet that must be available for service
	MinimumFleetFraction float64
	// CascadeThreshold is the number of active breakdowns within CascadeWindow that makes a cascading crisis
	CascadeThreshold int
	CascadeWindow    time.Duration
	// AutoReoptimize runs a fleet-wide reoptimization whenever a crisis is activated by a breakdown
	AutoReoptimize bool
}

// DefaultCrisisPolicy returns a policy with the standard thresholds, automatic reoptimization
// and no route designations
func DefaultCrisisPolicy() CrisisPolicy {
	return CrisisPolicy{
		MinimumFleetFraction: 0.6,
		CascadeThreshold:     3,
		CascadeWindow:        30 * time.Minute,
		AutoReoptimize:       true,
	}
}

// Validate checks the policy for values that make no sense
func (p CrisisPolicy) Validate() error {
	if p.MinimumFleetFraction <= 0 || p.MinimumFleetFraction > 1 {
		return errors.Errorf("minimum fleet fraction %v out of range (0, 1]", p.MinimumFleetFraction)
	}
	if p.CascadeThreshold < 1 {
		return errors.New("cascade threshold must be at least 1")
	}
	if p.CascadeWindow <= 0 {
		return errors.New("cascade window must be positive")
	}
	for _, route := range p.LowDemandRoutes {
		if funk.ContainsString(p.CriticalRoutes, route) {
			return errors.Errorf("route %s is both critical and low-demand", route)
		}
	}
	return nil
}

// MinimumRequired returns the number of trains that must be available for a fleet of the given size
func (p CrisisPolicy) MinimumRequired(fleetSize int) int {
	// the epsilon keeps products like 5 × 0.6 from rounding up to the next integer
	return int(math.Ceil(float64(fleetSize)*p.MinimumFleetFraction - 1e-9))
}

// IsRoute returns whether route is designated as either critical or low-demand
func (p CrisisPolicy) IsRoute(route string) bool {
	return funk.ContainsString(p.CriticalRoutes, route) || funk.ContainsString(p.LowDemandRoutes, route)
}

// Policy groups the configuration of a Handler
type Policy struct {
	Eligibility EligibilityPolicy
	Crisis      CrisisPolicy
}

// DefaultPolicy returns the default eligibility and crisis policies
func DefaultPolicy() Policy {
	return Policy{
		Eligibility: DefaultEligibilityPolicy(),
		Crisis:      DefaultCrisisPolicy(),
	}
}

// Validate checks both policies
func (p Policy) Validate() error {
	if err := p.Eligibility.Validate(); err != nil {
		return errors.Wrap(err, "eligibility policy")
	}
	return errors.Wrap(p.Crisis.Validate(), "crisis policy")
}
