package polls

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jimdaga/friend-frenzy/internal/insights"
)

// InsightsService answers insights requests; *insights.Orchestrator
// implements it.
type InsightsService interface {
	Insights(ctx context.Context, pollID string, force bool) (insights.Response, error)
}

// InsightsHandler handles GET /api/polls/:id/ai-insights. force=true starts
// a new generation whatever the cached state.
func InsightsHandler(svc InsightsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		pollID := c.Param("id")
		force := c.Query("force") == "true"

		resp, err := svc.Insights(c.Request.Context(), pollID, force)
		if errors.Is(err, insights.ErrPollNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Poll not found"})
			return
		}
		if err != nil {
			c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to process AI insights",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}
