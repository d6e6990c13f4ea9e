package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports readiness of the storage tier
type HealthCheck func() error

// NewRouter wires the statistics routes, health check and metrics endpoint
func NewRouter(handler *StatisticsHandler, health HealthCheck) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if health != nil {
			if err := health(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.GET("/statistics/:n", handler.GetTable)
		api.GET("/statistics/:n/rows/:partition", handler.GetRow)
		api.GET("/summary/:statistic", handler.GetSummary)
		api.POST("/analyze", handler.Analyze)
		api.POST("/test", handler.Test)
		api.GET("/moe", handler.MarginsOfError)
	}

	return router
}
