// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate(DefaultConfig()) = %v", err)
	}
	data, err := json.Marshal(config)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"mode":"full","memory":4096,"installPackage":"","legacyPeerDeps":true,"skipInstall":false,"dryRun":false}`
	if string(data) != want {
		t.Errorf("json = %s\nwant  %s", data, want)
	}
}

func TestConfigValidateReportsAllProblems(t *testing.T) {
	t.Parallel()
	err := Config{Mode: "partial", Memory: 64}.Validate()
	if err == nil {
		t.Fatal("Validate succeeded for bad config")
	}
	for _, fragment := range []string{`unsupported mode "partial"`, "memory 64 MB"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q missing %q", err, fragment)
		}
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()
	for _, test := range []struct {
		value string
		want  Status
		ok    bool
	}{
		{"idle", StatusIdle, true},
		{"running", StatusRunning, true},
		{"success", StatusSuccess, true},
		{"error", StatusError, true},
		{"SUCCESS", "", false},
		{"", "", false},
	} {
		got, ok := ParseStatus(test.value)
		if got != test.want || ok != test.ok {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", test.value, got, ok, test.want, test.ok)
		}
	}
}

func TestStatusDeployment(t *testing.T) {
	t.Parallel()
	for status, want := range map[Status]DeploymentStatus{
		StatusSuccess: DeploymentSuccess,
		StatusError:   DeploymentError,
		StatusRunning: DeploymentWarning,
		StatusIdle:    DeploymentWarning,
	} {
		if got := status.Deployment(); got != want {
			t.Errorf("%s.Deployment() = %s, want %s", status, got, want)
		}
	}
}

func TestCategorizedRecountAndCheck(t *testing.T) {
	t.Parallel()
	var data Categorized
	data.Append(Entry{Type: EntryBug, Message: "FIX: a"})
	data.Append(Entry{Type: EntryTest, Message: "test b"})
	data.Append(Entry{Type: EntryTest, Message: "test c"})
	data.Append(Entry{Type: EntryOther, Message: "d"})

	if err := data.CheckSummary(); err == nil {
		t.Fatal("CheckSummary passed before Recount")
	}
	data.Recount()
	if err := data.CheckSummary(); err != nil {
		t.Fatalf("CheckSummary after Recount: %v", err)
	}
	if data.Summary.TestsRun != 2 || data.Summary.BugsFixed != 1 {
		t.Errorf("summary = %+v", data.Summary)
	}
	if got := data.Total(); got != 4 {
		t.Errorf("Total = %d, want 4", got)
	}
}

func TestStreamEventDecode(t *testing.T) {
	t.Parallel()
	var event StreamEvent
	frame := `{"type":"complete","success":true,"categorizedData":{"summary":{"bugsFixed":1},"bugsFixed":[{"type":"bug","message":"FIX: x"}]}}`
	if err := json.Unmarshal([]byte(frame), &event); err != nil {
		t.Fatal(err)
	}
	if event.Type != EventComplete || !event.Success {
		t.Fatalf("event = %+v", event)
	}
	if event.CategorizedData == nil || event.CategorizedData.Summary.BugsFixed != 1 {
		t.Fatalf("categorizedData = %+v", event.CategorizedData)
	}
	if got := event.CategorizedData.BugsFixed[0].Message; got != "FIX: x" {
		t.Errorf("message = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	for milliseconds, want := range map[int64]string{
		0:      "0ms",
		999:    "999ms",
		1000:   "1.0s",
		12345:  "12.3s",
		59999:  "60.0s",
		60000:  "1m 0s",
		125000: "2m 5s",
	} {
		if got := FormatDuration(milliseconds); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", milliseconds, got, want)
		}
	}
}

func TestComputeMeta(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logs := []Log{
		{ID: "a", Timestamp: base, Success: true, Duration: 1000},
		{ID: "c", Timestamp: base.Add(2 * time.Hour), Success: false, Duration: 2000},
		{ID: "b", Timestamp: base.Add(time.Hour), Success: true, Duration: 4000},
	}
	meta := ComputeMeta(logs)
	if meta.TotalBuilds != 3 || meta.SuccessfulBuilds != 2 || meta.FailedBuilds != 1 {
		t.Errorf("counts = %+v", meta)
	}
	if meta.SuccessRate != "66.7" {
		t.Errorf("SuccessRate = %q, want 66.7", meta.SuccessRate)
	}
	if meta.AverageDuration != 2333 {
		t.Errorf("AverageDuration = %d, want 2333", meta.AverageDuration)
	}
	if meta.LastBuild == nil || meta.LastBuild.ID != "c" {
		t.Fatalf("LastBuild = %+v, want c", meta.LastBuild)
	}
	if meta.LastBuild.DurationFormatted != "2.0s" {
		t.Errorf("LastBuild.DurationFormatted = %q", meta.LastBuild.DurationFormatted)
	}
}

func TestComputeMetaEmpty(t *testing.T) {
	t.Parallel()
	meta := ComputeMeta(nil)
	if meta.SuccessRate != "0" || meta.LastBuild != nil {
		t.Errorf("ComputeMeta(nil) = %+v", meta)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"successRate":0`) {
		t.Errorf("json = %s, want numeric zero successRate", data)
	}
}

func TestMetaAcceptsStringSuccessRate(t *testing.T) {
	t.Parallel()
	var meta Meta
	if err := json.Unmarshal([]byte(`{"totalBuilds":4,"successRate":"75.0"}`), &meta); err != nil {
		t.Fatal(err)
	}
	if meta.SuccessRate != "75.0" {
		t.Errorf("SuccessRate = %q", meta.SuccessRate)
	}
}

func TestSuccessRateEncodesAsString(t *testing.T) {
	t.Parallel()
	meta := ComputeMeta([]Log{{ID: "a", Success: true}, {ID: "b"}, {ID: "c", Success: true}})
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"successRate":"66.7"`) {
		t.Errorf("json = %s, want string successRate", data)
	}

	var decoded Meta
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.SuccessRate != "66.7" {
		t.Errorf("decoded SuccessRate = %q", decoded.SuccessRate)
	}
	if err := json.Unmarshal([]byte(`{"successRate":"high"}`), &decoded); err == nil {
		t.Error("non-numeric successRate accepted")
	}
}
