package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/rilctl/internal/auth"
	"github.com/danmuck/rilctl/internal/ril"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type powerRequest struct {
	On *bool `json:"on" binding:"required"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": "rilctl",
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"client":  s.radio.Status(),
			"pending": s.radio.Pending(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/radio/power", auth.RequireBearer(s.guard), s.handleRadioPower)
}

func (s *Server) handleRadioPower(c *gin.Context) {
	var body powerRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	on := *body.On

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.RequestTimeout)
	defer cancel()
	results := make(chan ril.Result, 1)
	s.radio.SetRadioPower(on, func(r ril.Result) { results <- r })

	select {
	case r := <-results:
		if r.Err != nil {
			s.log.Warn().Err(r.Err).Bool("on", on).Msg("radio power request failed")
			c.JSON(errorStatus(r.Err), gin.H{"error": r.Err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "on": on, "serial": r.Serial})
	case <-ctx.Done():
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "radio power request still outstanding"})
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ril.ErrChannelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ril.ErrRemoteStatus):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
