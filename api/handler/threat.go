package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hybridguard/filterengine/models"
)

// PostThreatAnalyze returns a handler for POST /threat/analyze: runs
// UrlThreatAnalyzer against a posted URL, surfacing the same report a
// live NavigationGuardian arbitration would see.
func PostThreatAnalyze(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ThreatAnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.APIResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidRule, Message: err.Error()},
			})
			return
		}

		report := a.Analyzer.GetSecurityAnalysis(req.URL, req.HasUserGesture)
		c.JSON(http.StatusOK, models.ThreatAnalyzeResponse{Report: report})
	}
}
