package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errGetStatus   = "failed to load gateway status"
	errGetReadings = "failed to load readings"
	errGetFaults   = "failed to load faults"
	errLimit       = "invalid 'limit'; use a positive integer"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Gateway status
// @Description  Packet counters, last RSSI and radio diagnostics of the running gateway
// @Tags         gateway
// @Produce      json
// @Success      200  {object}  models.GatewayStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Monitoring.GetStatus(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStatus, "gateway_get_status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Latest readings
// @Description  Last payload published on each topic
// @Tags         gateway
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, readings"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/readings [get]
// @Security     BearerAuth
func (h *Handler) getReadings(c *gin.Context) {
	readings, err := h.services.Monitoring.LatestReadings(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetReadings, "gateway_get_readings_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(readings),
		"readings": readings,
	})
}

// @Summary      Recent faults
// @Description  Faults journaled before past restarts, newest first
// @Tags         gateway
// @Produce      json
// @Param        limit  query  int  false  "Maximum number of records (default 20, max 100)"
// @Success      200  {object}  map[string]interface{}  "count, faults"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/faults [get]
// @Security     BearerAuth
func (h *Handler) getFaults(c *gin.Context) {
	limit := 0
	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimit})
			return
		}
		limit = n
	}
	faults, err := h.services.FaultLog.RecentFaults(limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetFaults, "gateway_get_faults_failed", err, "limit", limit)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(faults),
		"faults": faults,
	})
}
