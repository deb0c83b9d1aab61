// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explainer

import (
	"errors"
	"fmt"
)

// ErrUnknownLevel indicates an explanation level outside the enum.
var ErrUnknownLevel = errors.New("unknown explanation level")

// AlignmentError reports parallel per-step sequences of mismatched length
// fed into a trace-level fold. This is a programmer-error class: the fold
// must fail loudly instead of silently zipping to the shorter length.
type AlignmentError struct {
	// Kind names the misaligned pair, e.g. "diffs" or "concepts".
	Kind string
	// Want is the expected length (the trace length).
	Want int
	// Got is the observed length.
	Got int
}

// Error implements the error interface.
func (e *AlignmentError) Error() string {
	return fmt.Sprintf("misaligned %s sequence: expected %d entries, got %d", e.Kind, e.Want, e.Got)
}

// IsAlignmentError reports whether err is (or wraps) an AlignmentError.
func IsAlignmentError(err error) bool {
	var ae *AlignmentError
	return errors.As(err, &ae)
}
