// Package timeouts defines the timeout constants shared by reverify
// commands and services.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 10 * time.Second

// Persist caps one photo upload from the headless client. The controller
// itself never times out a persist.
const Persist = 30 * time.Second

// HealthCheck caps a single gRPC health check call.
const HealthCheck = time.Second
