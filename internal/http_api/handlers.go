package http_api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatsResponse is the panel snapshot returned by /stats.
type StatsResponse struct {
	TotalEarnings    int64  `json:"total_earnings"`
	TotalCreditsSold int64  `json:"total_credits_sold"`
	LastRestart      string `json:"last_restart"`
}

// health is a handler for the /health endpoint.
func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// stats is a handler for the /stats endpoint.
func (s *HTTPServer) stats(c *gin.Context) {
	stats, err := s.flow.Stats()
	if err != nil {
		s.logger.Error("Failed to get panel stats: ", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get stats",
		})
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		TotalEarnings:    stats.TotalEarnings,
		TotalCreditsSold: stats.TotalCreditsSold,
		LastRestart:      time.Unix(stats.LastRestart, 0).UTC().Format(time.RFC3339),
	})
}
