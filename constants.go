//go:build !release
// +build !release

package main

const (
	DEBUG                   = true
	SecretsPath             = "secrets-debug.json"
	APIAddress              = ":12000"
	MaxDBconnectionPoolSize = 30
	EventQueueSize          = 100
	FeedMaxItems            = 50
)
