package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hybridguard/filterengine/models"
)

// navTypes enumerates the navigation kinds NavigationGuardian tracks
// error records for, so GET /stats can report all of them.
var navTypes = []string{
	models.NavTypeWindowOpen,
	models.NavTypeLocationAssign,
	models.NavTypeLocationReplace,
	models.NavTypeLocationHrefSet,
}

// GetStats returns a handler for GET /stats: navigation and per-domain
// counters plus NavigationGuardian's bounded error records, when a
// Guardian is wired.
func GetStats(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.StatsResponse{
			Navigation: a.StatsStore.Navigation(),
			Domains:    a.StatsStore.AllDomains(),
		}

		if a.Guardian != nil {
			errs := make(map[string][]models.ErrorRecord, len(navTypes))
			for _, navType := range navTypes {
				if records := a.Guardian.ErrorsByType(navType); len(records) > 0 {
					errs[navType] = records
				}
			}
			resp.Errors = errs
		}

		c.JSON(http.StatusOK, resp)
	}
}
