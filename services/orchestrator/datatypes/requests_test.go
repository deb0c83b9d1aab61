// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplainTraceRequest_Validate(t *testing.T) {
	tests := []struct {
		name      string
		req       ExplainTraceRequest
		wantErr   bool
		wantLevel string
	}{
		{
			name:      "defaults level to medium",
			req:       ExplainTraceRequest{Code: "x = 1"},
			wantLevel: "medium",
		},
		{
			name:      "normalizes level case",
			req:       ExplainTraceRequest{Code: "x = 1", Level: "BEGINNER"},
			wantLevel: "beginner",
		},
		{
			name:    "rejects empty code",
			req:     ExplainTraceRequest{Level: "medium"},
			wantErr: true,
		},
		{
			name:    "rejects unknown level",
			req:     ExplainTraceRequest{Code: "x = 1", Level: "expert"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, tt.req.Level)
		})
	}
}
