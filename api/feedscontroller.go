package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"healthbrief/feedwatch"
)

// FeedsController triggers health-publisher feed scans over HTTP.
type FeedsController struct {
	watcher *feedwatch.Watcher
}

// NewFeedsController wires the feed endpoints to a configured watcher.
func NewFeedsController(watcher *feedwatch.Watcher) *FeedsController {
	return &FeedsController{watcher: watcher}
}

// RegisterFeedRoutes registers feed watcher endpoints.
func RegisterFeedRoutes(rg *gin.RouterGroup, ctrl *FeedsController) {
	g := rg.Group("/feeds")
	g.GET("/presets", ctrl.handlePresets)
	g.POST("/scan", ctrl.handleScan)
}

func (ctrl *FeedsController) handlePresets(c *gin.Context) {
	c.JSON(http.StatusOK, feedwatch.FeedPresets)
}

// handleScan runs one scan over the configured feeds and returns the
// coverage report. The scan fetches and classifies synchronously, so the
// request runs for as long as the slowest feed.
func (ctrl *FeedsController) handleScan(c *gin.Context) {
	report, err := ctrl.watcher.Scan(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed scan failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
