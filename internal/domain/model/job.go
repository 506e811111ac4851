package model

import "time"

// RecomputeJob asks a worker to replay one configuration from scratch.
type RecomputeJob struct {
	JobID       string    // unique id, logged and returned to the caller
	ConfigHash  string    // full configuration hash
	Force       bool      // replay even when the source data is unchanged
	RequestedAt time.Time // enqueue time
}
