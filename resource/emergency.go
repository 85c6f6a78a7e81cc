package resource

import (
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/ulule/deepcopier"
	"github.com/yarf-framework/yarf"
)

// Emergency composites resource
type Emergency struct {
	resource
}

type apiEmergencyLog struct {
	ID          string                      `msgpack:"id" json:"id"`
	TrainID     string                      `msgpack:"train" json:"train"`
	FaultCode   string                      `msgpack:"faultCode" json:"faultCode"`
	Severity    dataobjects.Severity        `msgpack:"severity" json:"severity"`
	Location    string                      `msgpack:"location" json:"location"`
	Description string                      `msgpack:"description" json:"description"`
	ReportedBy  string                      `msgpack:"reportedBy" json:"reportedBy"`
	Time        time.Time                   `msgpack:"time" json:"time"`
	Status      dataobjects.EmergencyStatus `msgpack:"status" json:"status"`
	Resolved    bool                        `msgpack:"resolved" json:"resolved"`
	ResolvedAt  time.Time                   `msgpack:"resolvedAt" json:"resolvedAt"`
	ResolvedBy  string                      `msgpack:"resolvedBy" json:"resolvedBy"`
	Resolution  string                      `msgpack:"resolution" json:"resolution"`
}

type apiEmergencyWrapper struct {
	apiEmergencyLog `msgpack:",inline"`
	Plans           []apiPlan `msgpack:"plans" json:"plans"`
}

func newAPIEmergencyLog(elog *dataobjects.EmergencyLog) apiEmergencyLog {
	a := apiEmergencyLog{}
	deepcopier.Copy(*elog).To(&a)
	return a
}

// WithHandler associates an emergency handler with this resource
func (r *Emergency) WithHandler(handler *emergency.Handler) *Emergency {
	r.handler = handler
	return r
}

// Get serves HTTP GET requests on this resource
func (r *Emergency) Get(c *yarf.Context) error {
	if c.Param("id") != "" {
		view, err := r.handler.GetEmergency(c.Param("id"))
		if err != nil {
			return translateError(err)
		}
		data := apiEmergencyWrapper{
			apiEmergencyLog: newAPIEmergencyLog(view.EmergencyLog),
			Plans:           make([]apiPlan, len(view.Plans)),
		}
		for i := range view.Plans {
			data.Plans[i] = newAPIPlan(view.Plans[i])
		}
		RenderData(c, data)
		return nil
	}

	logs, err := r.handler.ListEmergencies(c.Request.URL.Query().Get("filter") == "active")
	if err != nil {
		return translateError(err)
	}
	apilogs := make([]apiEmergencyLog, len(logs))
	for i := range logs {
		apilogs[i] = newAPIEmergencyLog(logs[i])
	}
	RenderData(c, apilogs)
	return nil
}

// EmergencyResolution composites resource
type EmergencyResolution struct {
	resource
}

type apiResolutionRequest struct {
	ResolvedBy string `msgpack:"resolvedBy" json:"resolvedBy"`
	Resolution string `msgpack:"resolution" json:"resolution"`
}

// WithHandler associates an emergency handler with this resource
func (r *EmergencyResolution) WithHandler(handler *emergency.Handler) *EmergencyResolution {
	r.handler = handler
	return r
}

// Post serves HTTP POST requests on this resource
func (r *EmergencyResolution) Post(c *yarf.Context) error {
	var request apiResolutionRequest
	if err := r.DecodeRequest(c, &request); err != nil {
		return err
	}
	elog, err := r.handler.ResolveEmergency(c.Param("id"), request.ResolvedBy, request.Resolution)
	if err != nil {
		return translateError(err)
	}
	RenderData(c, newAPIEmergencyLog(elog))
	return nil
}

// Replan composites resource
type Replan struct {
	resource
}

// WithHandler associates an emergency handler with this resource
func (r *Replan) WithHandler(handler *emergency.Handler) *Replan {
	r.handler = handler
	return r
}

// Post serves HTTP POST requests on this resource
func (r *Replan) Post(c *yarf.Context) error {
	result, err := r.handler.Replan(c.Param("id"))
	if err != nil {
		return translateError(err)
	}
	RenderData(c, newAPIBreakdownResult(result))
	return nil
}
