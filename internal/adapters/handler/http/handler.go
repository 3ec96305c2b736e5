package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
)

const (
	timezoneHeader = "X-Timezone"
	timezoneQuery  = "tz"
)

var errInvalidTimezone = errors.New("unknown timezone")

// DayResolver decides what "today" is for a request. The caller's timezone
// comes from the X-Timezone header or the tz query parameter, falling back to
// Default.
type DayResolver struct {
	Default *time.Location
	Now     func() time.Time
}

func NewDayResolver(def *time.Location) DayResolver {
	if def == nil {
		def = time.UTC
	}
	return DayResolver{Default: def, Now: time.Now}
}

func (r DayResolver) Today(c *gin.Context) (domain.CalendarDate, error) {
	loc := r.Default
	if loc == nil {
		loc = time.UTC
	}

	name := c.GetHeader(timezoneHeader)
	if name == "" {
		name = c.Query(timezoneQuery)
	}
	if name != "" {
		l, err := time.LoadLocation(name)
		if err != nil {
			return domain.CalendarDate{}, fmt.Errorf("%w: %s", errInvalidTimezone, name)
		}
		loc = l
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	return domain.DateOf(now(), loc), nil
}

// parseDate reads an optional YYYY-MM-DD value; empty yields the zero date.
func parseDate(raw string) (domain.CalendarDate, error) {
	if raw == "" {
		return domain.CalendarDate{}, nil
	}
	return domain.ParseCalendarDate(raw)
}

func requireUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return "", false
	}
	return userID, true
}

func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized access"})

	case errors.Is(err, domain.ErrPlanMissing) || errors.Is(err, domain.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active plan"})

	case errors.Is(err, domain.ErrCheckinNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "check-in not found"})

	case errors.Is(err, domain.ErrPlanConflict) || errors.Is(err, domain.ErrCheckinConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "version conflict",
			"message": "data has been modified elsewhere, please reload",
		})

	case errors.Is(err, domain.ErrInvalidPlan),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrRangeTooLarge),
		errors.Is(err, domain.ErrFutureDate),
		errors.Is(err, domain.ErrNegativeCount),
		errors.Is(err, domain.ErrNotesTooLong),
		errors.Is(err, errInvalidTimezone):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, domain.ErrRemoteUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "remote store unavailable"})

	default:
		log.Printf("[ERROR] Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)

		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
