// Analytics endpoint.
//
//   - GET /analytics/dashboard
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dashboard returns query-log aggregates: totals, average response time,
// per-service usage, and the most recent queries.
func (h *Handlers) Dashboard(c *gin.Context) {
	d, err := h.statsSvc.Dashboard(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, d)
}
