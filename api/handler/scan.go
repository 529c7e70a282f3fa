package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/html"

	"github.com/hybridguard/filterengine/dom"
	"github.com/hybridguard/filterengine/hybrid"
	"github.com/hybridguard/filterengine/models"
)

// PostScan returns a handler for POST /scan: runs the currently
// composed rule set against a posted HTML fragment without a live
// browser, for CI diffing against a known-good marker list.
func PostScan(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScanResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeInvalidRule, Message: err.Error()},
			})
			return
		}

		root, err := dom.ParseFragment(req.HTML)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ScanResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeParseFailure, Message: err.Error()},
			})
			return
		}

		documentURL := "https://" + req.Domain
		hybridExec := hybrid.New(root, documentURL, a.logger())

		settings := a.Settings()
		result := a.Coordinator.Run(c.Request.Context(), root, documentURL, req.Domain, settings, hybridExec)

		resp := models.ScanResponse{}
		if result.Whitelisted {
			resp.Warnings = append(resp.Warnings, "domain is whitelisted: no rules applied")
		}
		if result.Inactive {
			resp.Warnings = append(resp.Warnings, "engine is inactive: no rules applied")
		}

		counters := hybridExec.Counters()
		resp.Removed = int(counters.Removed) + result.SelectorRemoved
		resp.Hidden = int(counters.Hidden)
		resp.Markers = collectMarkers(root)

		c.JSON(http.StatusOK, resp)
	}
}

// collectMarkers walks the scanned tree and describes every element
// carrying the blocked-marker attribute, for CI diffing.
func collectMarkers(root *html.Node) []string {
	var markers []string
	dom.Walk(root, func(n *html.Node) bool {
		if dom.IsBlocked(n) {
			tag := dom.TagName(n)
			if id := dom.IDToken(n); id != "" {
				markers = append(markers, fmt.Sprintf("%s#%s", tag, id))
			} else {
				markers = append(markers, tag)
			}
		}
		return true
	})
	return markers
}
