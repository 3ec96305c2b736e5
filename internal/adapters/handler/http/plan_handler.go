package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
)

type PlanHandler struct {
	svc  *services.PlanService
	days DayResolver
}

func NewPlanHandler(svc *services.PlanService, days DayResolver) *PlanHandler {
	return &PlanHandler{svc: svc, days: days}
}

type phaseRequest struct {
	Index                 int  `json:"index" binding:"min=1"`
	TargetDailyCigarettes *int `json:"target_daily_cigarettes" binding:"omitempty,min=0"`
}

type savePlanRequest struct {
	StartDate              domain.CalendarDate `json:"start_date"`
	InitialDailyCigarettes int                 `json:"initial_daily_cigarettes" binding:"min=0"`
	PackPrice              float64             `json:"pack_price" binding:"min=0"`
	Currency               string              `json:"currency"`
	Phases                 []phaseRequest      `json:"phases" binding:"required,min=1,dive"`
	Version                int                 `json:"version"`
}

func (h *PlanHandler) RegisterRoutes(router *gin.RouterGroup) {
	plan := router.Group("/plan")
	{
		plan.GET("", h.Get)
		plan.PUT("", h.Save)
	}
}

// Get godoc
// @Summary  Active quit plan
// @Tags     plan
// @Produce  json
// @Success  200 {object} domain.Plan
// @Failure  404 {object} map[string]string
// @Router   /plan [get]
func (h *PlanHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	plan, err := h.svc.GetActive(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// Save godoc
// @Summary  Create or replace the quit plan
// @Tags     plan
// @Accept   json
// @Produce  json
// @Success  200 {object} domain.Plan
// @Failure  400 {object} map[string]string
// @Failure  409 {object} map[string]string
// @Router   /plan [put]
func (h *PlanHandler) Save(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req savePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	phases := make([]domain.WeekPhase, len(req.Phases))
	for i, p := range req.Phases {
		phases[i] = domain.WeekPhase{Index: p.Index, TargetDailyCigarettes: p.TargetDailyCigarettes}
	}

	today, err := h.days.Today(c)
	if err != nil {
		handleError(c, err)
		return
	}

	plan, err := h.svc.Save(c.Request.Context(), services.SavePlanInput{
		UserID:                 userID,
		StartDate:              req.StartDate,
		InitialDailyCigarettes: req.InitialDailyCigarettes,
		PackPrice:              req.PackPrice,
		Currency:               req.Currency,
		Phases:                 phases,
		Version:                req.Version,
		Today:                  today,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}
