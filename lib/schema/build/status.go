// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package build

// Status is the lifecycle state of one build run as seen by a client.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ParseStatus converts a wire value to a Status. The second result is
// false for values outside the four known states.
func ParseStatus(value string) (Status, bool) {
	switch status := Status(value); status {
	case StatusIdle, StatusRunning, StatusSuccess, StatusError:
		return status, true
	}
	return "", false
}

// IsTerminal reports whether the run has finished.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError
}

// DeploymentStatus is the summary outcome recorded with categorized
// output.
type DeploymentStatus string

const (
	DeploymentSuccess DeploymentStatus = "success"
	DeploymentError   DeploymentStatus = "error"
	DeploymentWarning DeploymentStatus = "warning"
)

// Deployment maps a build status to the summary outcome: success and
// error carry over, anything else is a warning.
func (s Status) Deployment() DeploymentStatus {
	switch s {
	case StatusSuccess:
		return DeploymentSuccess
	case StatusError:
		return DeploymentError
	}
	return DeploymentWarning
}
