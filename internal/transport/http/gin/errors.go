package httpgin

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/service/booking"
)

var kindStatus = map[domain.Kind]int{
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindInvalidRange:      http.StatusBadRequest,
	domain.KindCapacityExceeded:  http.StatusBadRequest,
	domain.KindNoAvailability:    http.StatusConflict,
	domain.KindForbidden:         http.StatusForbidden,
	domain.KindInvalidTransition: http.StatusConflict,
	domain.KindInternal:          http.StatusInternalServerError,
	domain.KindInvalidArgument:   http.StatusBadRequest,
	domain.KindConflict:          http.StatusConflict,
	domain.KindRateLimited:       http.StatusTooManyRequests,
}

func statusFor(kind domain.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// respondErr maps a service error to its status. Internal errors are attached
// to the context for the logging middleware and never echoed.
func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	kind, msg := domain.Describe(err)
	if kind == domain.KindInternal {
		_ = c.Error(err)
	}

	var rl booking.RateLimitedError
	if errors.As(err, &rl) {
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
	}

	c.AbortWithStatusJSON(statusFor(kind), ErrorResponse{Error: msg, Kind: kind.String()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: domain.KindInvalidArgument.String()})
}
