package httpgin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/service"
)

// @Summary  List all reservations
// @Security BearerAuth
// @Param    status  query  string  false  "pending | confirmed | cancelled | completed"
// @Param    limit   query  int     false  "page size (default 100, max 500)"
// @Param    offset  query  int     false  "offset"
// @Success  200  {array}  domain.Reservation
// @Router   /admin/reservations [get]
func handleListAllReservations(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svcs.Query.ListAll(
			c.Request.Context(),
			domain.ReservationStatus(c.Query("status")),
			parseIntDefault(c.Query("limit"), 0),
			parseIntDefault(c.Query("offset"), 0),
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Confirm a pending reservation
// @Security BearerAuth
// @Param    id  path  int  true  "Reservation ID"
// @Success  200  {object}  domain.Reservation
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "invalid transition"
// @Router   /admin/reservations/{id}/confirm [patch]
func handleConfirmReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		r, err := svcs.Lifecycle.Confirm(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// @Summary  Cancel any reservation
// @Security BearerAuth
// @Param    id  path  int  true  "Reservation ID"
// @Success  200  {object}  domain.Reservation
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "invalid transition"
// @Router   /admin/reservations/{id} [delete]
func handleAdminCancel(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		userID, role := actor(c)
		r, err := svcs.Lifecycle.Cancel(c.Request.Context(), id, userID, role)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// @Summary  Complete ended stays now
// @Security BearerAuth
// @Success  200  {object}  CompleteResponse
// @Router   /admin/reservations/complete [post]
func handleCompleteStays(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := svcs.Lifecycle.CompleteEnded(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CompleteResponse{Completed: n})
	}
}

// @Summary  Reservation statistics
// @Security BearerAuth
// @Success  200  {object}  domain.ReservationStats
// @Router   /admin/stats [get]
func handleStats(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := svcs.Query.Stats(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// @Summary  Bookings per check-in day
// @Security BearerAuth
// @Param    year   query  int  false  "defaults to the current year"
// @Param    month  query  int  false  "1-12, defaults to the current month"
// @Success  200  {array}  domain.DayDemand
// @Failure  400  {object}  ErrorResponse
// @Router   /admin/analytics/heatmap [get]
func handleHeatmap(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		year, ok := queryInt(c, "year", now.Year())
		if !ok {
			return
		}
		month, ok := queryInt(c, "month", int(now.Month()))
		if !ok {
			return
		}
		days, err := svcs.Query.DemandHeatmap(c.Request.Context(), year, time.Month(month))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, days)
	}
}

// @Summary  Create room type
// @Security BearerAuth
// @Param    req  body  CreateRoomRequest  true  "payload"
// @Success  201  {object}  domain.RoomType
// @Failure  400  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "name taken"
// @Router   /admin/rooms [post]
func handleCreateRoom(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		rt, err := svcs.Catalogue.Create(c.Request.Context(), req.input())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, rt)
	}
}

// @Summary  Update room type (partial)
// @Security BearerAuth
// @Param    id   path  int                true  "Room type ID"
// @Param    req  body  UpdateRoomRequest  true  "fields to change"
// @Success  200  {object}  domain.RoomType
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "name taken / units below bookings"
// @Router   /admin/rooms/{id} [put]
func handleUpdateRoom(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req UpdateRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		rt, err := svcs.Catalogue.Update(c.Request.Context(), id, req.patch())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rt)
	}
}

// @Summary  Record a pricing snapshot
// @Security BearerAuth
// @Param    id   path  int                 true  "Room type ID"
// @Param    req  body  RecordPriceRequest  true  "payload"
// @Success  201  {object}  domain.PricingSnapshot
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /admin/rooms/{id}/pricing [post]
func handleRecordPrice(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req RecordPriceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		date, err := domain.ParseDate(req.Date)
		if err != nil {
			respondErr(c, err)
			return
		}
		snap, err := svcs.Pricing.RecordSnapshot(c.Request.Context(), id, date, req.RecordedPrice, req.DemandFactor)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, snap)
	}
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	s := c.Query(name)
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}
