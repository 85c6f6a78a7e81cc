package resource

import (
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/ulule/deepcopier"
	"github.com/yarf-framework/yarf"
)

// Crisis composites resource
type Crisis struct {
	resource
}

type apiCrisisState struct {
	ID               string                    `msgpack:"id" json:"id"`
	ActivatedAt      time.Time                 `msgpack:"activatedAt" json:"activatedAt"`
	WithdrawalCount  int                       `msgpack:"withdrawalCount" json:"withdrawalCount"`
	TriggeringTrains []string                  `msgpack:"triggeringTrains" json:"triggeringTrains"`
	FleetSize        int                       `msgpack:"fleetSize" json:"fleetSize"`
	MinimumRequired  int                       `msgpack:"minimumRequired" json:"minimumRequired"`
	ServiceDeficit   int                       `msgpack:"serviceDeficit" json:"serviceDeficit"`
	Actions          dataobjects.CrisisActions `msgpack:"actions" json:"actions"`
	Status           dataobjects.CrisisStatus  `msgpack:"status" json:"status"`
	Resolved         bool                      `msgpack:"resolved" json:"resolved"`
	ResolvedAt       time.Time                 `msgpack:"resolvedAt" json:"resolvedAt"`
	ResolvedBy       string                    `msgpack:"resolvedBy" json:"resolvedBy"`
	ResolutionNotes  string                    `msgpack:"resolutionNotes" json:"resolutionNotes"`
	UpdatedAt        time.Time                 `msgpack:"updatedAt" json:"updatedAt"`
}

type apiFleetCounts struct {
	Total            int `msgpack:"total" json:"total"`
	InService        int `msgpack:"inService" json:"inService"`
	Available        int `msgpack:"available" json:"available"`
	Withdrawn        int `msgpack:"withdrawn" json:"withdrawn"`
	UnderMaintenance int `msgpack:"underMaintenance" json:"underMaintenance"`
}

type apiCrisisStatus struct {
	Active           bool              `msgpack:"active" json:"active"`
	Crisis           *apiCrisisState   `msgpack:"crisis" json:"crisis"`
	Fleet            apiFleetCounts    `msgpack:"fleet" json:"fleet"`
	MinimumRequired  int               `msgpack:"minimumRequired" json:"minimumRequired"`
	ServiceDeficit   int               `msgpack:"serviceDeficit" json:"serviceDeficit"`
	RecentBreakdowns []apiEmergencyLog `msgpack:"recentBreakdowns" json:"recentBreakdowns"`
	CascadeDetected  bool              `msgpack:"cascadeDetected" json:"cascadeDetected"`
	GeneratedAt      time.Time         `msgpack:"generatedAt" json:"generatedAt"`
}

type apiOptimizationPlan struct {
	CrisisID         string                    `msgpack:"crisisId" json:"crisisId"`
	Actions          dataobjects.CrisisActions `msgpack:"actions" json:"actions"`
	DeployedTrains   []string                  `msgpack:"deployedTrains" json:"deployedTrains"`
	ReassignedTrains []string                  `msgpack:"reassignedTrains" json:"reassignedTrains"`
	InitialDeficit   int                       `msgpack:"initialDeficit" json:"initialDeficit"`
	RemainingDeficit int                       `msgpack:"remainingDeficit" json:"remainingDeficit"`
	GeneratedAt      time.Time                 `msgpack:"generatedAt" json:"generatedAt"`
}

func newAPICrisisState(state *dataobjects.CrisisState) *apiCrisisState {
	a := &apiCrisisState{}
	deepcopier.Copy(*state).To(a)
	return a
}

// WithHandler associates an emergency handler with this resource
func (r *Crisis) WithHandler(handler *emergency.Handler) *Crisis {
	r.handler = handler
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Crisis) Get(c *yarf.Context) error {
	view, err := r.handler.CrisisStatus()
	if err != nil {
		return translateError(err)
	}
	data := apiCrisisStatus{
		Active:           view.Active,
		MinimumRequired:  view.MinimumRequired,
		ServiceDeficit:   view.ServiceDeficit,
		RecentBreakdowns: make([]apiEmergencyLog, len(view.RecentBreakdowns)),
		CascadeDetected:  view.CascadeDetected,
		GeneratedAt:      view.GeneratedAt,
	}
	deepcopier.Copy(view.Fleet).To(&data.Fleet)
	if view.Crisis != nil {
		data.Crisis = newAPICrisisState(view.Crisis)
	}
	for i := range view.RecentBreakdowns {
		data.RecentBreakdowns[i] = newAPIEmergencyLog(view.RecentBreakdowns[i])
	}
	RenderData(c, data)
	return nil
}

// CrisisReoptimization composites resource
type CrisisReoptimization struct {
	resource
}

// WithHandler associates an emergency handler with this resource
func (r *CrisisReoptimization) WithHandler(handler *emergency.Handler) *CrisisReoptimization {
	r.handler = handler
	return r
}

// Post serves HTTP POST requests on this resource
func (r *CrisisReoptimization) Post(c *yarf.Context) error {
	plan, err := r.handler.FullFleetReoptimization()
	if err != nil {
		return translateError(err)
	}
	data := apiOptimizationPlan{}
	deepcopier.Copy(*plan).To(&data)
	RenderData(c, data)
	return nil
}

// CrisisResolution composites resource
type CrisisResolution struct {
	resource
}

type apiCrisisResolutionRequest struct {
	ResolvedBy string `msgpack:"resolvedBy" json:"resolvedBy"`
	Notes      string `msgpack:"notes" json:"notes"`
}

// WithHandler associates an emergency handler with this resource
func (r *CrisisResolution) WithHandler(handler *emergency.Handler) *CrisisResolution {
	r.handler = handler
	return r
}

// Post serves HTTP POST requests on this resource
func (r *CrisisResolution) Post(c *yarf.Context) error {
	var request apiCrisisResolutionRequest
	if err := r.DecodeRequest(c, &request); err != nil {
		return err
	}
	state, err := r.handler.ResolveCrisis(request.ResolvedBy, request.Notes)
	if err != nil {
		return translateError(err)
	}
	RenderData(c, newAPICrisisState(state))
	return nil
}
