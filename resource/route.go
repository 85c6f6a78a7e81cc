package resource

import (
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/yarf-framework/yarf"
)

// RouteFrequency composites resource
type RouteFrequency struct {
	resource
}

type apiFrequencyRequest struct {
	Headway dataobjects.Duration `msgpack:"headway" json:"headway"`
	Reason  string               `msgpack:"reason" json:"reason"`
}

type apiFrequencyAdjustment struct {
	ID       string               `msgpack:"id" json:"id"`
	RouteID  string               `msgpack:"route" json:"route"`
	Time     time.Time            `msgpack:"time" json:"time"`
	Headway  dataobjects.Duration `msgpack:"headway" json:"headway"`
	Reason   string               `msgpack:"reason" json:"reason"`
	CrisisID string               `msgpack:"crisisId" json:"crisisId"`
}

// WithHandler associates an emergency handler with this resource
func (r *RouteFrequency) WithHandler(handler *emergency.Handler) *RouteFrequency {
	r.handler = handler
	return r
}

// Post serves HTTP POST requests on this resource
func (r *RouteFrequency) Post(c *yarf.Context) error {
	var request apiFrequencyRequest
	if err := r.DecodeRequest(c, &request); err != nil {
		return err
	}
	adjustment, err := r.handler.ReduceFrequency(c.Param("id"), time.Duration(request.Headway), request.Reason)
	if err != nil {
		return translateError(err)
	}
	RenderData(c, apiFrequencyAdjustment{
		ID:       adjustment.ID,
		RouteID:  adjustment.RouteID,
		Time:     adjustment.Time,
		Headway:  adjustment.Headway,
		Reason:   adjustment.Reason,
		CrisisID: adjustment.CrisisID,
	})
	return nil
}
