// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Log is one historical build record. Timestamp and Duration (in
// milliseconds) are set by the server; the formatted fields are filled
// only in /logs and /meta responses.
type Log struct {
	ID                 string       `json:"id"`
	Timestamp          time.Time    `json:"timestamp"`
	Config             Config       `json:"config"`
	Success            bool         `json:"success"`
	Output             string       `json:"output"`
	Error              string       `json:"error,omitempty"`
	Duration           int64        `json:"duration"`
	TriggeredBy        string       `json:"triggeredBy,omitempty"`
	Categorized        *Categorized `json:"categorizedData,omitempty"`
	TimestampFormatted string       `json:"timestampFormatted,omitempty"`
	DurationFormatted  string       `json:"durationFormatted,omitempty"`
}

// Rate is a percentage with one decimal, such as "66.7". It encodes
// as a JSON string, except that zero encodes as the number 0, and it
// decodes from either form.
type Rate string

func (r Rate) String() string {
	if r == "" {
		return "0"
	}
	return string(r)
}

func (r Rate) MarshalJSON() ([]byte, error) {
	if r == "" || r == "0" {
		return []byte("0"), nil
	}
	return json.Marshal(string(r))
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("successRate: %w", err)
	}
	*r = Rate(number)
	return nil
}

// Meta is the aggregate over the whole history. SuccessRate is 0 for
// an empty history.
type Meta struct {
	TotalBuilds              int         `json:"totalBuilds"`
	SuccessfulBuilds         int         `json:"successfulBuilds"`
	FailedBuilds             int         `json:"failedBuilds"`
	SuccessRate              Rate        `json:"successRate"`
	AverageDuration          int64       `json:"averageDuration"`
	AverageDurationFormatted string      `json:"averageDurationFormatted"`
	LastBuild                *Log        `json:"lastBuild"`
}

// ComputeMeta aggregates a history in any order. LastBuild is the
// record with the newest timestamp, with its formatted fields set.
func ComputeMeta(logs []Log) Meta {
	meta := Meta{TotalBuilds: len(logs), SuccessRate: "0", AverageDurationFormatted: FormatDuration(0)}
	if len(logs) == 0 {
		return meta
	}
	var totalDuration int64
	newest := 0
	for i, log := range logs {
		if log.Success {
			meta.SuccessfulBuilds++
		}
		totalDuration += log.Duration
		if log.Timestamp.After(logs[newest].Timestamp) {
			newest = i
		}
	}
	meta.FailedBuilds = meta.TotalBuilds - meta.SuccessfulBuilds
	meta.SuccessRate = Rate(fmt.Sprintf("%.1f", float64(meta.SuccessfulBuilds)/float64(meta.TotalBuilds)*100))
	meta.AverageDuration = int64(math.Round(float64(totalDuration) / float64(meta.TotalBuilds)))
	meta.AverageDurationFormatted = FormatDuration(meta.AverageDuration)
	last := logs[newest].Formatted()
	meta.LastBuild = &last
	return meta
}

// FormatDuration renders milliseconds the way the console shows them:
// "850ms", "12.3s", "2m 5s".
func FormatDuration(milliseconds int64) string {
	switch {
	case milliseconds < 1000:
		return fmt.Sprintf("%dms", milliseconds)
	case milliseconds < 60000:
		return fmt.Sprintf("%.1fs", float64(milliseconds)/1000)
	}
	minutes := milliseconds / 60000
	seconds := (milliseconds % 60000) / 1000
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// Formatted returns a copy with TimestampFormatted and
// DurationFormatted filled in.
func (l Log) Formatted() Log {
	l.TimestampFormatted = l.Timestamp.Local().Format("2006-01-02 15:04:05")
	l.DurationFormatted = FormatDuration(l.Duration)
	return l
}
