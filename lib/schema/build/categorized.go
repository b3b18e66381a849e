// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"errors"
	"fmt"
)

// EntryType is a category of the build output taxonomy.
type EntryType string

const (
	EntryBug          EntryType = "bug"
	EntryFeature      EntryType = "feature"
	EntryIntelligence EntryType = "intelligence"
	EntryPackage      EntryType = "package"
	EntryTest         EntryType = "test"
	EntryDeploy       EntryType = "deploy"
	EntryComment      EntryType = "comment"
	EntryOther        EntryType = "other"
)

// EntryTypes lists the categories in classification precedence order.
var EntryTypes = []EntryType{
	EntryBug, EntryFeature, EntryIntelligence, EntryPackage,
	EntryTest, EntryDeploy, EntryComment, EntryOther,
}

// Entry is one classified output line.
type Entry struct {
	Type    EntryType `json:"type"`
	Message string    `json:"message"`
}

// Summary holds per-category counts plus the overall outcome.
// TotalTime is in milliseconds and is zero when unknown.
type Summary struct {
	BugsFixed           int              `json:"bugsFixed"`
	FeaturesAdded       int              `json:"featuresAdded"`
	IntelligenceUpdates int              `json:"intelligenceUpdates"`
	PackageUpdates      int              `json:"packageUpdates"`
	TestsRun            int              `json:"testsRun"`
	DeploymentDetails   int              `json:"deploymentDetails"`
	DeveloperComments   int              `json:"developerComments"`
	DeploymentStatus    DeploymentStatus `json:"deploymentStatus"`
	TotalTime           int64            `json:"totalTime"`
}

// Categorized is the classification of one build's output. Each list
// keeps encounter order. Lines that fit no category and are not noise
// land in Other.
type Categorized struct {
	Summary             Summary `json:"summary"`
	BugsFixed           []Entry `json:"bugsFixed"`
	FeaturesAdded       []Entry `json:"featuresAdded"`
	IntelligenceUpdates []Entry `json:"intelligenceUpdates"`
	PackageUpdates      []Entry `json:"packageUpdates"`
	TestResults         []Entry `json:"testResults"`
	DeploymentDetails   []Entry `json:"deploymentDetails"`
	DeveloperComments   []Entry `json:"developerComments"`
	Other               []Entry `json:"other"`
	RawOutput           string  `json:"rawOutput"`
}

// List returns the entries for one category.
func (c *Categorized) List(entryType EntryType) []Entry {
	switch entryType {
	case EntryBug:
		return c.BugsFixed
	case EntryFeature:
		return c.FeaturesAdded
	case EntryIntelligence:
		return c.IntelligenceUpdates
	case EntryPackage:
		return c.PackageUpdates
	case EntryTest:
		return c.TestResults
	case EntryDeploy:
		return c.DeploymentDetails
	case EntryComment:
		return c.DeveloperComments
	case EntryOther:
		return c.Other
	}
	return nil
}

// Count returns the summary count for a category. Other has no
// summary field and reports the length of its list.
func (c *Categorized) Count(entryType EntryType) int {
	switch entryType {
	case EntryBug:
		return c.Summary.BugsFixed
	case EntryFeature:
		return c.Summary.FeaturesAdded
	case EntryIntelligence:
		return c.Summary.IntelligenceUpdates
	case EntryPackage:
		return c.Summary.PackageUpdates
	case EntryTest:
		return c.Summary.TestsRun
	case EntryDeploy:
		return c.Summary.DeploymentDetails
	case EntryComment:
		return c.Summary.DeveloperComments
	}
	return len(c.Other)
}

// Append adds an entry to the list for its type. Summary counts are
// not touched; call Recount once all entries are in.
func (c *Categorized) Append(entry Entry) {
	switch entry.Type {
	case EntryBug:
		c.BugsFixed = append(c.BugsFixed, entry)
	case EntryFeature:
		c.FeaturesAdded = append(c.FeaturesAdded, entry)
	case EntryIntelligence:
		c.IntelligenceUpdates = append(c.IntelligenceUpdates, entry)
	case EntryPackage:
		c.PackageUpdates = append(c.PackageUpdates, entry)
	case EntryTest:
		c.TestResults = append(c.TestResults, entry)
	case EntryDeploy:
		c.DeploymentDetails = append(c.DeploymentDetails, entry)
	case EntryComment:
		c.DeveloperComments = append(c.DeveloperComments, entry)
	default:
		c.Other = append(c.Other, entry)
	}
}

// Recount sets every summary count to the length of its list.
func (c *Categorized) Recount() {
	c.Summary.BugsFixed = len(c.BugsFixed)
	c.Summary.FeaturesAdded = len(c.FeaturesAdded)
	c.Summary.IntelligenceUpdates = len(c.IntelligenceUpdates)
	c.Summary.PackageUpdates = len(c.PackageUpdates)
	c.Summary.TestsRun = len(c.TestResults)
	c.Summary.DeploymentDetails = len(c.DeploymentDetails)
	c.Summary.DeveloperComments = len(c.DeveloperComments)
}

// CheckSummary reports every category whose summary count disagrees
// with its list. Server payloads are not guaranteed to be consistent;
// callers decide whether to Recount or reject.
func (c *Categorized) CheckSummary() error {
	var errs []error
	for _, entryType := range EntryTypes {
		if entryType == EntryOther {
			continue
		}
		if count, length := c.Count(entryType), len(c.List(entryType)); count != length {
			errs = append(errs, fmt.Errorf("%s: summary count %d, list has %d entries", entryType, count, length))
		}
	}
	return errors.Join(errs...)
}

// Total returns the number of classified entries across all lists.
func (c *Categorized) Total() int {
	total := 0
	for _, entryType := range EntryTypes {
		total += len(c.List(entryType))
	}
	return total
}
