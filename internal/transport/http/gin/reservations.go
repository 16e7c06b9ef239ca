package httpgin

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/staygo/internal/domain"
	redisrepo "github.com/kirinyoku/staygo/internal/repository/redis"
	"github.com/kirinyoku/staygo/internal/service"
	"github.com/kirinyoku/staygo/internal/service/booking"
)

const idemLockTTL = 60 * time.Second

// @Summary  Book a room (idempotent with Idempotency-Key)
// @Security BearerAuth
// @Param    req  body  CreateReservationRequest  true  "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201  {object}  domain.Reservation
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "no availability / idem in progress"
// @Failure  429  {object}  ErrorResponse  "rate limited"
// @Router   /reservations [post]
func handleCreateReservation(svcs *service.Services, idem *redisrepo.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateReservationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		in, err := domain.ParseDate(req.CheckIn)
		if err != nil {
			respondErr(c, err)
			return
		}
		out, err := domain.ParseDate(req.CheckOut)
		if err != nil {
			respondErr(c, err)
			return
		}

		userID, _ := actor(c)
		ctx := c.Request.Context()

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemBooking(userID, idemKey)

			if payload, ok, _ := idem.GetResult(ctx, idemStorageKey); ok {
				replay(c, idemKey, payload)
				return
			}

			locked, err := idem.AcquireLock(ctx, idemStorageKey, idemLockTTL)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				if payload, ok, _ := idem.GetResult(ctx, idemStorageKey); ok {
					replay(c, idemKey, payload)
					return
				}
				c.Header("Retry-After", "1")
				c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
					Error: "idempotency key in progress",
					Kind:  domain.KindConflict.String(),
				})
				return
			}
		}

		res, err := svcs.Booking.Book(ctx, booking.Request{
			UserID:     userID,
			RoomTypeID: req.RoomTypeID,
			CheckIn:    in,
			CheckOut:   out,
			Guests:     req.Guests,
			Notes:      req.Notes,
		})
		if err != nil {
			if idemStorageKey != "" {
				_ = idem.Release(ctx, idemStorageKey)
			}
			respondErr(c, err)
			return
		}

		if idemStorageKey != "" {
			b, _ := json.Marshal(res)
			_ = idem.SaveResult(ctx, idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, res)
	}
}

func replay(c *gin.Context, idemKey, payload string) {
	c.Header("Idempotency-Key", idemKey)
	c.Header("Idempotent-Replayed", "true")
	c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
}

// @Summary  My reservations, newest first
// @Security BearerAuth
// @Param    limit   query  int  false  "page size"
// @Param    offset  query  int  false  "offset"
// @Success  200  {array}  domain.Reservation
// @Router   /reservations [get]
func handleMyReservations(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := actor(c)
		out, err := svcs.Query.ListForUser(
			c.Request.Context(),
			userID,
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

// @Summary  Get reservation
// @Security BearerAuth
// @Param    id  path  int  true  "Reservation ID"
// @Success  200  {object}  domain.Reservation
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /reservations/{id} [get]
func handleGetReservation(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		userID, role := actor(c)
		r, err := svcs.Query.GetReservation(c.Request.Context(), id, userID, role)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// @Summary  Get reservation by reference code
// @Security BearerAuth
// @Param    code  path  string  true  "Reference code"
// @Success  200  {object}  domain.Reservation
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /reservations/ref/{code} [get]
func handleGetReservationByRef(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role := actor(c)
		r, err := svcs.Query.GetByReference(c.Request.Context(), c.Param("code"), userID, role)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// @Summary  Cancel my reservation
// @Security BearerAuth
// @Param    id  path  int  true  "Reservation ID"
// @Success  200  {object}  domain.Reservation
// @Failure  403  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Failure  409  {object}  ErrorResponse  "invalid transition"
// @Router   /reservations/{id}/cancel [patch]
func handleCancelReservation(svcs *service.Services) gin.HandlerFunc {
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
