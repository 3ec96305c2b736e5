package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
)

const (
	warnSaveDeferred = "remote store unavailable: check-in kept as draft"
	warnQueueFull    = "commit queue full: check-in kept as draft"
)

type CheckinHandler struct {
	svc  *services.CheckinService
	days DayResolver
}

func NewCheckinHandler(svc *services.CheckinService, days DayResolver) *CheckinHandler {
	return &CheckinHandler{svc: svc, days: days}
}

type checkinRequest struct {
	ActualCigarettes *int   `json:"actual_cigarettes" binding:"required"`
	Notes            string `json:"notes"`
}

type commitResponse struct {
	Record   *domain.CheckinRecord `json:"record"`
	Queued   bool                  `json:"queued"`
	Warnings []string              `json:"warnings"`
}

func (h *CheckinHandler) RegisterRoutes(router *gin.RouterGroup) {
	checkins := router.Group("/checkins")
	{
		checkins.GET("/:date", h.Get)
		checkins.PUT("/:date", h.Record)
		checkins.POST("/:date/commit", h.Commit)
	}
}

func (h *CheckinHandler) dateParam(c *gin.Context) (domain.CalendarDate, bool) {
	date, err := domain.ParseCalendarDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format, use YYYY-MM-DD"})
		return domain.CalendarDate{}, false
	}
	return date, true
}

// Get godoc
// @Summary  Local check-in for a day
// @Tags     checkins
// @Produce  json
// @Param    date path string true "YYYY-MM-DD"
// @Success  200 {object} domain.CheckinRecord
// @Failure  404 {object} map[string]string
// @Router   /checkins/{date} [get]
func (h *CheckinHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	date, ok := h.dateParam(c)
	if !ok {
		return
	}

	record, err := h.svc.Get(c.Request.Context(), userID, date)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Record godoc
// @Summary  Enter or edit the day's count as a draft
// @Tags     checkins
// @Accept   json
// @Produce  json
// @Param    date path string true "YYYY-MM-DD"
// @Success  200 {object} domain.CheckinRecord
// @Failure  400 {object} map[string]string
// @Router   /checkins/{date} [put]
func (h *CheckinHandler) Record(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	date, ok := h.dateParam(c)
	if !ok {
		return
	}

	var req checkinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	today, err := h.days.Today(c)
	if err != nil {
		handleError(c, err)
		return
	}

	record, err := h.svc.RecordInput(c.Request.Context(), services.CheckinInput{
		UserID: userID,
		Date:   date,
		Actual: *req.ActualCigarettes,
		Notes:  req.Notes,
		Today:  today,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Commit godoc
// @Summary  Save the day's draft to the remote store
// @Tags     checkins
// @Produce  json
// @Param    date  path  string true  "YYYY-MM-DD"
// @Param    async query bool   false "queue the save instead of waiting"
// @Success  200 {object} commitResponse
// @Success  202 {object} commitResponse
// @Failure  404 {object} map[string]string
// @Router   /checkins/{date}/commit [post]
func (h *CheckinHandler) Commit(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	date, ok := h.dateParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	if c.Query("async") == "true" {
		record, queued, err := h.svc.SaveAsync(ctx, userID, date)
		if err != nil {
			handleError(c, err)
			return
		}

		resp := commitResponse{Record: record, Queued: queued, Warnings: []string{}}
		switch {
		case record.IsCommitted():
			c.JSON(http.StatusOK, resp)
		case !queued:
			resp.Warnings = append(resp.Warnings, warnQueueFull)
			c.JSON(http.StatusAccepted, resp)
		default:
			c.JSON(http.StatusAccepted, resp)
		}
		return
	}

	record, err := h.svc.Save(ctx, userID, date)
	if errors.Is(err, domain.ErrRemoteUnavailable) && record != nil {
		c.JSON(http.StatusAccepted, commitResponse{Record: record, Warnings: []string{warnSaveDeferred}})
		return
	}
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, commitResponse{Record: record, Warnings: []string{}})
}
