package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hybridguard/filterengine/models"
)

// PostCustomRule returns a handler for POST /rules/custom: validates
// and persists a single user-authored rule via RuleParser.
func PostCustomRule(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CustomRuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.APIResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidRule, Message: err.Error()},
			})
			return
		}

		raw, err := json.Marshal(customRuleBody(req))
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.APIResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}

		_, err = a.CustomSrc.AddCustomRule(c.Request.Context(), raw)
		if err != nil {
			status, detail := ruleErrorResponse(err)
			c.JSON(status, models.APIResponse{Success: false, Error: detail})
			return
		}

		c.JSON(http.StatusOK, models.APIResponse{Success: true})
	}
}

// customRuleBody adapts the typed CustomRuleRequest into the loosely
// shaped object rules.ParseUserRule expects (selector, domains,
// enabled), where domains is either "all" or a host-pattern list.
func customRuleBody(req models.CustomRuleRequest) map[string]any {
	body := map[string]any{
		"selector": req.Selector,
		"enabled":  req.Enabled,
	}
	if req.DomainsAll {
		body["domains"] = "all"
	} else {
		body["domains"] = req.DomainsPatterns
	}
	return body
}

func ruleErrorResponse(err error) (int, *models.ErrorDetail) {
	if fe, ok := err.(*models.FilterError); ok {
		return http.StatusBadRequest, fe.ToDetail()
	}
	return http.StatusInternalServerError, &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

// GetRules returns a handler for GET /rules: the combined
// Default+Custom rule set currently in force.
func GetRules(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var all []models.Rule

		if a.DefaultSrc != nil {
			defaultRules, err := a.DefaultSrc.Fetch(ctx)
			if err != nil {
				a.logger().Warn("rules handler: default fetch failed", "error", err)
			}
			all = append(all, defaultRules...)
		}
		if a.CustomSrc != nil {
			customRules, err := a.CustomSrc.Fetch(ctx)
			if err != nil {
				a.logger().Warn("rules handler: custom fetch failed", "error", err)
			}
			all = append(all, customRules...)
		}

		c.JSON(http.StatusOK, models.RuleListResponse{
			Rules:   all,
			Version: models.SchemaVersion,
			Count:   len(all),
		})
	}
}
