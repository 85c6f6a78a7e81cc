package resource

import (
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/ulule/deepcopier"
	"github.com/yarf-framework/yarf"
)

// TrainEligibility composites resource
type TrainEligibility struct {
	resource
}

type apiEligibility struct {
	TrainID              string                   `msgpack:"train" json:"train"`
	Eligible             bool                     `msgpack:"eligible" json:"eligible"`
	ReadinessMinutes     int                      `msgpack:"readinessMinutes" json:"readinessMinutes"`
	Readiness            dataobjects.Readiness    `msgpack:"readiness" json:"readiness"`
	Reasons              []string                 `msgpack:"reasons" json:"reasons"`
	ExpiringCertificates []dataobjects.Department `msgpack:"expiringCertificates" json:"expiringCertificates"`
	OpenCriticalJobCards int                      `msgpack:"openCriticalJobCards" json:"openCriticalJobCards"`
}

// WithHandler associates an emergency handler with this resource
func (r *TrainEligibility) WithHandler(handler *emergency.Handler) *TrainEligibility {
	r.handler = handler
	return r
}

// Get serves HTTP GET requests on this resource
func (r *TrainEligibility) Get(c *yarf.Context) error {
	eligibility, err := r.handler.EvaluateTrain(c.Param("id"))
	if err != nil {
		return translateError(err)
	}
	data := apiEligibility{}
	deepcopier.Copy(*eligibility).To(&data)
	if data.Reasons == nil {
		data.Reasons = []string{}
	}
	RenderData(c, data)
	return nil
}

// TrainAssignment composites resource
type TrainAssignment struct {
	resource
}

type apiAssignmentRequest struct {
	RouteID string                     `msgpack:"route" json:"route"`
	Type    dataobjects.AssignmentType `msgpack:"type" json:"type"`
}

type apiRouteAssignment struct {
	ID        string                       `msgpack:"id" json:"id"`
	TrainID   string                       `msgpack:"train" json:"train"`
	RouteID   string                       `msgpack:"route" json:"route"`
	Type      dataobjects.AssignmentType   `msgpack:"type" json:"type"`
	StartTime time.Time                    `msgpack:"start" json:"start"`
	Status    dataobjects.AssignmentStatus `msgpack:"status" json:"status"`
}

// WithHandler associates an emergency handler with this resource
func (r *TrainAssignment) WithHandler(handler *emergency.Handler) *TrainAssignment {
	r.handler = handler
	return r
}

// Post serves HTTP POST requests on this resource
func (r *TrainAssignment) Post(c *yarf.Context) error {
	var request apiAssignmentRequest
	if err := r.DecodeRequest(c, &request); err != nil {
		return err
	}
	if request.Type == "" {
		request.Type = dataobjects.AssignmentReassigned
	}
	assignment, err := r.handler.ReassignRoute(c.Param("id"), request.RouteID, request.Type)
	if err != nil {
		return translateError(err)
	}
	data := apiRouteAssignment{}
	deepcopier.Copy(*assignment).To(&data)
	RenderData(c, data)
	return nil
}
