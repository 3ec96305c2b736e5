package http

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
)

type ProgressHandler struct {
	svc  *services.ProgressService
	days DayResolver
}

func NewProgressHandler(svc *services.ProgressService, days DayResolver) *ProgressHandler {
	return &ProgressHandler{svc: svc, days: days}
}

func (h *ProgressHandler) RegisterRoutes(router *gin.RouterGroup) {
	p := router.Group("/progress")
	{
		p.GET("/series", h.Series)
		p.GET("/stats", h.Stats)
	}
}

// engineError reports a negative count that slipped past the stores as a
// server fault rather than bad input.
func engineError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNegativeCount) {
		log.Printf("[PROGRESS] Negative count inside stored data: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	handleError(c, err)
}

// Series godoc
// @Summary  Reconciled per-day series
// @Tags     progress
// @Produce  json
// @Param    from query string false "YYYY-MM-DD, defaults to the plan start"
// @Param    to   query string false "YYYY-MM-DD, defaults to and is capped at today"
// @Param    tz   query string false "IANA timezone"
// @Success  200 {object} services.SeriesResult
// @Failure  400 {object} map[string]string
// @Router   /progress/series [get]
func (h *ProgressHandler) Series(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	from, err := parseDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, use YYYY-MM-DD"})
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, use YYYY-MM-DD"})
		return
	}

	today, err := h.days.Today(c)
	if err != nil {
		handleError(c, err)
		return
	}

	res, err := h.svc.GetReconciledSeries(c.Request.Context(), services.SeriesInput{
		UserID: userID,
		From:   from,
		To:     to,
		Today:  today,
	})
	if err != nil {
		engineError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Stats godoc
// @Summary  Cumulative statistics
// @Tags     progress
// @Produce  json
// @Param    as_of query string false "YYYY-MM-DD, defaults to and is capped at today"
// @Param    tz    query string false "IANA timezone"
// @Success  200 {object} services.StatsResult
// @Router   /progress/stats [get]
func (h *ProgressHandler) Stats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	asOf, err := parseDate(c.Query("as_of"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid as_of date, use YYYY-MM-DD"})
		return
	}
	today, err := h.days.Today(c)
	if err != nil {
		handleError(c, err)
		return
	}
	if asOf.IsZero() || asOf.After(today) {
		asOf = today
	}

	res, err := h.svc.GetStatistics(c.Request.Context(), userID, asOf)
	if err != nil {
		engineError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
