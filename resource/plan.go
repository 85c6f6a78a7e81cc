package resource

import (
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/ulule/deepcopier"
	"github.com/yarf-framework/yarf"
)

// Plan composites resource
type Plan struct {
	resource
}

type apiPlan struct {
	ID                 string                      `msgpack:"id" json:"id"`
	EmergencyLogID     string                      `msgpack:"emergencyLogId" json:"emergencyLogId"`
	WithdrawnTrainID   string                      `msgpack:"withdrawnTrain" json:"withdrawnTrain"`
	ReplacementTrainID string                      `msgpack:"replacementTrain" json:"replacementTrain"`
	RouteID            string                      `msgpack:"route" json:"route"`
	DeploymentMinutes  int                         `msgpack:"deploymentMinutes" json:"deploymentMinutes"`
	Readiness          dataobjects.Readiness       `msgpack:"readiness" json:"readiness"`
	Reasoning          []string                    `msgpack:"reasoning" json:"reasoning"`
	Steps              dataobjects.ExecutionSteps  `msgpack:"steps" json:"steps"`
	Fallbacks          dataobjects.FallbackOptions `msgpack:"fallbacks" json:"fallbacks"`
	Status             dataobjects.PlanStatus      `msgpack:"status" json:"status"`
	CreatedAt          time.Time                   `msgpack:"createdAt" json:"createdAt"`
	Decided            bool                        `msgpack:"decided" json:"decided"`
	DecidedAt          time.Time                   `msgpack:"decidedAt" json:"decidedAt"`
	DecidedBy          string                      `msgpack:"decidedBy" json:"decidedBy"`
	Notes              string                      `msgpack:"notes" json:"notes"`
}

type apiPlanWrapper struct {
	apiPlan      `msgpack:",inline"`
	EmergencyLog apiEmergencyLog `msgpack:"emergency" json:"emergency"`
}

func newAPIPlan(plan *dataobjects.EmergencyPlan) apiPlan {
	a := apiPlan{}
	deepcopier.Copy(*plan).To(&a)
	return a
}

// WithHandler associates an emergency handler with this resource
func (r *Plan) WithHandler(handler *emergency.Handler) *Plan {
	r.handler = handler
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Plan) Get(c *yarf.Context) error {
	view, err := r.handler.GetPlan(c.Param("id"))
	if err != nil {
		return translateError(err)
	}
	RenderData(c, apiPlanWrapper{
		apiPlan:      newAPIPlan(view.Plan),
		EmergencyLog: newAPIEmergencyLog(view.EmergencyLog),
	})
	return nil
}

// PlanDecision composites resource
type PlanDecision struct {
	resource
}

type apiPlanDecisionRequest struct {
	Approved   bool   `msgpack:"approved" json:"approved"`
	ApprovedBy string `msgpack:"approvedBy" json:"approvedBy"`
	Notes      string `msgpack:"notes" json:"notes"`
}

// WithHandler associates an emergency handler with this resource
func (r *PlanDecision) WithHandler(handler *emergency.Handler) *PlanDecision {
	r.handler = handler
	return r
}

// Post serves HTTP POST requests on this resource
func (r *PlanDecision) Post(c *yarf.Context) error {
	var request apiPlanDecisionRequest
	if err := r.DecodeRequest(c, &request); err != nil {
		return err
	}
	plan, err := r.handler.ApprovePlan(c.Param("id"), request.Approved, request.ApprovedBy, request.Notes)
	if err != nil {
		return translateError(err)
	}
	RenderData(c, newAPIPlan(plan))
	return nil
}
