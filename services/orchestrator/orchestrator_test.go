// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "none", cfg.LLMBackend)
	assert.Equal(t, "localhost:4317", cfg.OTelEndpoint)
	assert.False(t, cfg.DisableMetrics, "metrics are on by default")
}

func TestApplyConfigDefaults_PreservesOptOuts(t *testing.T) {
	cfg := applyConfigDefaults(Config{Port: 9090, DisableMetrics: true})
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.DisableMetrics, "opting out must survive defaulting")
}
