// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package build

import "time"

// EventType discriminates StreamEvent.
type EventType string

const (
	EventStart       EventType = "start"
	EventOutput      EventType = "output"
	EventError       EventType = "error"
	EventStatus      EventType = "status"
	EventHeartbeat   EventType = "heartbeat"
	EventComplete    EventType = "complete"
	EventCategorized EventType = "categorized"
)

// StreamEvent is one frame of the build event stream. Which fields are
// meaningful depends on Type:
//
//   - start: Message
//   - output, error: Data
//   - status: Status
//   - heartbeat: none
//   - complete: Success, optionally CategorizedData, Error, Duration
//   - categorized: CategorizedData
//
// BuildID and Timestamp are informational and may appear on any frame.
type StreamEvent struct {
	Type            EventType    `json:"type"`
	Message         string       `json:"message,omitempty"`
	Data            string       `json:"data,omitempty"`
	Status          string       `json:"status,omitempty"`
	Success         bool         `json:"success,omitempty"`
	Error           string       `json:"error,omitempty"`
	CategorizedData *Categorized `json:"categorizedData,omitempty"`
	Duration        int64        `json:"duration,omitempty"`
	BuildID         string       `json:"buildId,omitempty"`
	Timestamp       *time.Time   `json:"timestamp,omitempty"`
}
