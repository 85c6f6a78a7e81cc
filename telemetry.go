package main

import (
	"time"

	statsd "gopkg.in/alexcesaro/statsd.v2"
)

// APIrequestTelemetry is a channel where something should be sent whenever an API
// request is served
var APIrequestTelemetry = make(chan interface{}, 10)

// newStatsClient returns a statsd client for the server in the keybox, or nil if none is configured
func newStatsClient() *statsd.Client {
	statsdAddress, present := secrets.Get("statsdAddress")
	statsdPrefix, present2 := secrets.Get("statsdPrefix")
	if !present || !present2 {
		return nil
	}

	c, err := statsd.New(statsd.Address(statsdAddress), statsd.Prefix(statsdPrefix))
	if err != nil {
		// If nothing is listening on the target port, an error is returned and
		// the returned client does nothing but is still usable. So we can
		// just log the error and go on.
		mainLog.Println(err)
	}
	return c
}

// StatsSender is meant to be called as a goroutine that handles sending telemetry
// to a statsd (or compatible) server
func StatsSender(c *statsd.Client) {
	defer c.Close()

	ticker := time.NewTicker(1 * time.Minute)

	for {
		select {
		case <-ticker.C:
			status, err := handler.CrisisStatus()
			if err != nil {
				mainLog.Println(err)
				continue
			}
			c.Gauge("fleet.total", status.Fleet.Total)
			c.Gauge("fleet.in_service", status.Fleet.InService)
			c.Gauge("fleet.available", status.Fleet.Available)
			c.Gauge("fleet.withdrawn", status.Fleet.Withdrawn)
			c.Gauge("fleet.under_maintenance", status.Fleet.UnderMaintenance)
			c.Gauge("crisis.deficit", status.ServiceDeficit)
			c.Gauge("crisis.recent_breakdowns", len(status.RecentBreakdowns))
			if status.Active {
				c.Gauge("crisis.active", 1)
			} else {
				c.Gauge("crisis.active", 0)
			}
		case <-APIrequestTelemetry:
			c.Increment("apicalls")
		}
	}
}
