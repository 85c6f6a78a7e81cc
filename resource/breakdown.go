package resource

import (
	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/ulule/deepcopier"
	"github.com/yarf-framework/yarf"
)

// Breakdown composites resource
type Breakdown struct {
	resource
}

type apiBreakdownRequest struct {
	TrainID       string               `msgpack:"train" json:"train"`
	FaultCode     string               `msgpack:"faultCode" json:"faultCode"`
	Severity      dataobjects.Severity `msgpack:"severity" json:"severity"`
	Location      string               `msgpack:"location" json:"location"`
	Description   string               `msgpack:"description" json:"description"`
	ReportedBy    string               `msgpack:"reportedBy" json:"reportedBy"`
	AffectedRoute string               `msgpack:"affectedRoute" json:"affectedRoute"`
}

type apiBreakdownResult struct {
	EmergencyLogID  string `msgpack:"emergencyLogId" json:"emergencyLogId"`
	PlanGenerated   bool   `msgpack:"planGenerated" json:"planGenerated"`
	PlanID          string `msgpack:"planId" json:"planId"`
	CrisisMode      bool   `msgpack:"crisisMode" json:"crisisMode"`
	CrisisActivated bool   `msgpack:"crisisActivated" json:"crisisActivated"`
	CrisisID        string `msgpack:"crisisId" json:"crisisId"`
}

func newAPIBreakdownResult(result *emergency.BreakdownResult) apiBreakdownResult {
	a := apiBreakdownResult{}
	deepcopier.Copy(*result).To(&a)
	return a
}

// WithHandler associates an emergency handler with this resource
func (r *Breakdown) WithHandler(handler *emergency.Handler) *Breakdown {
	r.handler = handler
	return r
}

// Post serves HTTP POST requests on this resource
func (r *Breakdown) Post(c *yarf.Context) error {
	var request apiBreakdownRequest
	if err := r.DecodeRequest(c, &request); err != nil {
		return err
	}

	alert := emergency.BreakdownAlert{}
	deepcopier.Copy(request).To(&alert)
	result, err := r.handler.HandleBreakdown(alert)
	if err != nil {
		return translateError(err)
	}
	RenderData(c, newAPIBreakdownResult(result))
	return nil
}
