package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"realmsteward.io/steward/internal/lifecycle"
)

// PipelineResultResponse reports the outcome of every id in the batch.
type PipelineResultResponse struct {
	Results []lifecycle.ItemResult `json:"results"`
}

// PutPipelineResults handles PUT /pipeline/results. The response is 200
// whenever the batch was accepted, even when single items failed; callers
// inspect the per-item errors.
func (s *Server) PutPipelineResults(c *gin.Context) {
	var res lifecycle.PipelineResult
	if !bindJSON(c, &res) {
		return
	}
	items, err := s.lifecycle.HandlePipelineResult(c.Request.Context(), res)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PipelineResultResponse{Results: items})
}
