package main

import (
	"github.com/railops/fleetcrisis/resource"
	"github.com/yarf-framework/yarf"
)

// RequestCounter is a middleware that reports every served API request for telemetry
type RequestCounter struct {
	yarf.Middleware
}

// PreDispatch implements yarf.MiddlewareHandler
func (m *RequestCounter) PreDispatch(c *yarf.Context) error {
	select {
	case APIrequestTelemetry <- true:
	default:
	}
	return nil
}

// APIserver registers the API resources and serves them, blocking
func APIserver() {
	y := yarf.New()

	v1 := yarf.RouteGroup("/v1")

	v1.Add("/breakdowns", new(resource.Breakdown).WithHandler(handler))

	v1.Add("/emergencies", new(resource.Emergency).WithHandler(handler))
	v1.Add("/emergencies/:id", new(resource.Emergency).WithHandler(handler))
	v1.Add("/emergencies/:id/resolve", new(resource.EmergencyResolution).WithHandler(handler))
	v1.Add("/emergencies/:id/replan", new(resource.Replan).WithHandler(handler))

	v1.Add("/plans/:id", new(resource.Plan).WithHandler(handler))
	v1.Add("/plans/:id/decision", new(resource.PlanDecision).WithHandler(handler))

	v1.Add("/crisis", new(resource.Crisis).WithHandler(handler))
	v1.Add("/crisis/reoptimize", new(resource.CrisisReoptimization).WithHandler(handler))
	v1.Add("/crisis/resolve", new(resource.CrisisResolution).WithHandler(handler))

	v1.Add("/trains/:id/eligibility", new(resource.TrainEligibility).WithHandler(handler))
	v1.Add("/trains/:id/assignment", new(resource.TrainAssignment).WithHandler(handler))

	v1.Add("/routes/:id/frequency", new(resource.RouteFrequency).WithHandler(handler))

	v1.Add("/announcements", new(resource.Announcements).WithFeed(feed))

	v1.Insert(new(RequestCounter))
	y.AddGroup(v1)

	y.Logger = webLog
	y.Start(APIAddress)
}
