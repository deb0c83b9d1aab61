// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explainer

import (
	"log/slog"
	"sort"
	"strings"
)

// =============================================================================
// State Diff Types
// =============================================================================

// ChangeKind classifies a single variable change.
type ChangeKind string

const (
	// ChangeCreated means the name exists only in the current snapshot.
	ChangeCreated ChangeKind = "created"
	// ChangeModified means the name exists in both snapshots with
	// different canonical values.
	ChangeModified ChangeKind = "modified"
	// ChangeRemoved means the name exists only in the previous snapshot.
	ChangeRemoved ChangeKind = "removed"
)

// VariableChange is one atomic variable change between consecutive steps.
// Old is nil for created variables; New is nil for removed ones.
type VariableChange struct {
	Name string
	Kind ChangeKind
	Old  *Value
	New  *Value
}

// String renders a short human-readable form, mainly for logs and tests.
func (c VariableChange) String() string {
	switch c.Kind {
	case ChangeCreated:
		return c.Name + " created = " + c.New.String()
	case ChangeModified:
		return c.Name + " changed: " + c.Old.String() + " -> " + c.New.String()
	case ChangeRemoved:
		return c.Name + " removed (was " + c.Old.String() + ")"
	default:
		return c.Name + " " + string(c.Kind)
	}
}

// StateDiff aggregates the variable changes for one step transition.
// The three lists partition the union of names from the two snapshots;
// no name appears in more than one list. Within each list, changes are
// ordered by variable name for determinism.
type StateDiff struct {
	Created  []VariableChange
	Modified []VariableChange
	Removed  []VariableChange
}

// HasChanges reports whether any variable changed.
func (d *StateDiff) HasChanges() bool {
	return len(d.Created) > 0 || len(d.Modified) > 0 || len(d.Removed) > 0
}

// All returns every change as a single created-modified-removed list.
func (d *StateDiff) All() []VariableChange {
	all := make([]VariableChange, 0, len(d.Created)+len(d.Modified)+len(d.Removed))
	all = append(all, d.Created...)
	all = append(all, d.Modified...)
	all = append(all, d.Removed...)
	return all
}

// String renders all changes joined by "; ", or "No changes".
func (d *StateDiff) String() string {
	all := d.All()
	if len(all) == 0 {
		return "No changes"
	}
	parts := make([]string, len(all))
	for i, c := range all {
		parts[i] = c.String()
	}
	return strings.Join(parts, "; ")
}

// =============================================================================
// Diff Engine
// =============================================================================

// DiffEngine computes variable-state differences between execution steps.
// It is stateless and safe for concurrent use.
type DiffEngine struct {
	logger *slog.Logger
}

// NewDiffEngine creates a DiffEngine. A nil logger uses slog.Default().
func NewDiffEngine(logger *slog.Logger) *DiffEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiffEngine{logger: logger}
}

// ComputeDiff computes the difference between two canonical snapshots.
//
// When prev is nil or empty, every name in curr is classified created;
// this captures program start cleanly even for traces whose first
// snapshot is nonempty. Otherwise created/removed come from name set
// subtraction, and a common name is modified only when its canonical
// values differ, so incidental representation differences introduced
// upstream never surface as false modifications.
func (e *DiffEngine) ComputeDiff(prev, curr Snapshot) StateDiff {
	var diff StateDiff

	if len(prev) == 0 {
		for _, name := range sortedNames(curr) {
			v := curr[name]
			diff.Created = append(diff.Created, VariableChange{
				Name: name, Kind: ChangeCreated, New: &v,
			})
		}
		return diff
	}

	for _, name := range sortedNames(curr) {
		currVal := curr[name]
		prevVal, existed := prev[name]
		switch {
		case !existed:
			diff.Created = append(diff.Created, VariableChange{
				Name: name, Kind: ChangeCreated, New: &currVal,
			})
		case !prevVal.Equal(currVal):
			diff.Modified = append(diff.Modified, VariableChange{
				Name: name, Kind: ChangeModified, Old: &prevVal, New: &currVal,
			})
		}
	}

	for _, name := range sortedNames(prev) {
		if _, exists := curr[name]; !exists {
			prevVal := prev[name]
			diff.Removed = append(diff.Removed, VariableChange{
				Name: name, Kind: ChangeRemoved, Old: &prevVal,
			})
		}
	}

	e.logger.Debug("computed diff",
		"created", len(diff.Created),
		"modified", len(diff.Modified),
		"removed", len(diff.Removed),
	)
	return diff
}

// ComputeTraceDiffs folds ComputeDiff over consecutive step pairs,
// seeding "previous = none" for step 1. The output length always equals
// the input length.
func (e *DiffEngine) ComputeTraceDiffs(trace []ProcessedStep) []StateDiff {
	diffs := make([]StateDiff, 0, len(trace))
	var prev Snapshot
	for _, step := range trace {
		diffs = append(diffs, e.ComputeDiff(prev, step.Variables))
		prev = step.Variables
	}
	e.logger.Info("computed state diffs", "count", len(diffs))
	return diffs
}

// sortedNames returns the snapshot's variable names in sorted order.
func sortedNames(s Snapshot) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
