//go:build release
// +build release

package main

const (
	DEBUG                   = false
	SecretsPath             = "secrets.json"
	APIAddress              = ":12000"
	MaxDBconnectionPoolSize = 50
	EventQueueSize          = 1000
	FeedMaxItems            = 50
)
