package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/bellhop-project/bellhop/internal/util"
)

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": Version})
}

func (s *Server) handleSysInfo(c *gin.Context) {
	c.JSON(http.StatusOK, util.GetSystemInfo())
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions := s.gw.Sessions().All()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (s *Server) handleInventory(c *gin.Context) {
	rooms := s.gw.View().Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handlePartitions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"partitions": s.cfg.GetGateway().Partitions,
	})
}

func (s *Server) handlePending(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"outstanding": s.gw.Pending().Outstanding(),
	})
}

// queryLimit parses the ?limit= query parameter, defaulting to 50.
func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 1000 {
		return 50
	}
	return limit
}

func (s *Server) handleAuditLogins(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit log disabled"})
		return
	}

	records, err := s.store.RecentLogins(queryLimit(c))
	if err != nil {
		log.Error().Err(err).Msg("failed to read audit logins")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logins": records})
}

func (s *Server) handleAuditRequests(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit log disabled"})
		return
	}

	records, err := s.store.RecentRequests(queryLimit(c))
	if err != nil {
		log.Error().Err(err).Msg("failed to read audit requests")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": records})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"gateway":          s.cfg.GetGateway(),
		"application_data": s.cfg.GetApplicationData(),
	})
}

// handleSetAppData updates application-data fields by dotted key, e.g.
// {"logging.level": "debug"}. Gateway topology is immutable at runtime.
func (s *Server) handleSetAppData(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	for key, value := range updates {
		if err := s.cfg.UpdateAppField(key, value); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": key})
			return
		}
	}

	if err := s.cfg.Save(); err != nil {
		log.Error().Err(err).Msg("failed to save config")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save config"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(updates)})
}
