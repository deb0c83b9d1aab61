// Copyright (C) 2025 StepSage AI (dev@stepsage.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stepsage-ai/stepsage/services/knowledge"
	"github.com/stepsage-ai/stepsage/services/llm"
	"github.com/stepsage-ai/stepsage/services/orchestrator/datatypes"
)

// Health handles GET /health. The service itself is always "ok" when it
// can answer; collaborator fields report what is wired.
func Health(store *knowledge.Client, analyzer *llm.StructureAnalyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := datatypes.HealthResponse{
			Status:    "ok",
			Knowledge: "disabled",
			LLM:       "disabled",
		}
		if store != nil {
			resp.Knowledge = "connected"
		}
		if analyzer != nil && analyzer.Enabled() {
			resp.LLM = "configured"
		}
		c.JSON(http.StatusOK, resp)
	}
}
