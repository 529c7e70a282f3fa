package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/store"
)

// GetWhitelist returns a handler for GET /whitelist.
func GetWhitelist(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		hosts, err := loadWhitelist(c, a)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.APIResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}
		c.JSON(http.StatusOK, models.WhitelistResponse{Hosts: hosts})
	}
}

// PostWhitelist returns a handler for POST /whitelist: adds a host.
func PostWhitelist(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.WhitelistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.APIResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidRule, Message: err.Error()},
			})
			return
		}

		hosts, err := loadWhitelist(c, a)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.APIResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}

		for _, h := range hosts {
			if h == req.Host {
				c.JSON(http.StatusOK, models.APIResponse{Success: true})
				return
			}
		}
		hosts = append(hosts, req.Host)

		if err := a.Store.Set(c.Request.Context(), store.KeyWhitelist, hosts); err != nil {
			c.JSON(http.StatusInternalServerError, models.APIResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeStoreWriteFailure, Message: err.Error()},
			})
			return
		}
		c.JSON(http.StatusOK, models.APIResponse{Success: true})
	}
}

// DeleteWhitelist returns a handler for DELETE /whitelist: removes a host.
func DeleteWhitelist(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.WhitelistRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.APIResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInvalidRule, Message: err.Error()},
			})
			return
		}

		hosts, err := loadWhitelist(c, a)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.APIResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}

		out := hosts[:0]
		for _, h := range hosts {
			if h != req.Host {
				out = append(out, h)
			}
		}

		if err := a.Store.Set(c.Request.Context(), store.KeyWhitelist, out); err != nil {
			c.JSON(http.StatusInternalServerError, models.APIResponse{
				Success: false,
				Error:   &models.ErrorDetail{Code: models.ErrCodeStoreWriteFailure, Message: err.Error()},
			})
			return
		}
		c.JSON(http.StatusOK, models.APIResponse{Success: true})
	}
}

func loadWhitelist(c *gin.Context, a *App) ([]string, error) {
	var hosts []string
	_, err := a.Store.Get(c.Request.Context(), store.KeyWhitelist, &hosts)
	if err != nil {
		return nil, err
	}
	return hosts, nil
}
